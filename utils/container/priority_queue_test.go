package container_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/container"
)

func TestPriorityQueueInit(t *testing.T) {
	q := container.NewPriorityQueue[string]()
	assert.Equal(t, 0, q.Len())
	values, priorities := q.PopN(3)
	assert.Empty(t, values)
	assert.Empty(t, priorities)
}

func TestPriorityQueueOrder(t *testing.T) {
	q := container.NewPriorityQueue[string]()
	q.Push("c", 3)
	q.Push("a", 1)
	q.Push("nan", math.NaN())
	q.Push("inf", math.Inf(1))
	q.Push("b", 2)
	q.Heapify()
	assert.Equal(t, "a", q.First())

	values, priorities := q.PopN(10)
	assert.Equal(t, []string{"a", "b", "c", "inf", "nan"}, values)
	assert.Equal(t, 1.0, priorities[0])
	assert.True(t, math.IsNaN(priorities[4]))
	assert.Equal(t, 0, q.Len())
}

func TestPriorityQueueStableTies(t *testing.T) {
	q := container.NewPriorityQueue[int]()
	for i := range 20 {
		q.HeapPush(i, float64(i%2))
	}
	values, _ := q.PopN(20)
	// 偶数（优先级0）在前，且保持入队顺序
	assert.Equal(t, []int{0, 2, 4, 6, 8, 10, 12, 14, 16, 18}, values[:10])
	assert.Equal(t, []int{1, 3, 5, 7, 9, 11, 13, 15, 17, 19}, values[10:])
}

func TestPriorityQueuePopNPartial(t *testing.T) {
	q := container.NewPriorityQueue[int]()
	for _, v := range []int{5, 4, 3, 2, 1} {
		q.HeapPush(v, float64(v))
	}
	values, _ := q.PopN(2)
	assert.Equal(t, []int{1, 2}, values)
	assert.Equal(t, 3, q.Len())
}
