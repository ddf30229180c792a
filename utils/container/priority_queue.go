package container

import (
	"container/heap"
	"math"
)

// item 优先队列中单个元素
// 功能：保存值、优先级以及入队序号
// 说明：优先级相同时按入队序号出队，保证排序稳定、结果可复现
type item[T any] struct {
	Value    T       // 元素的值（任意类型）
	Priority float64 // 元素在队列中的优先级（越小越优先）
	seq      int     // 入队序号
	index    int     // 项在堆中的索引
}

// priorityQueue 实现了 heap.Interface
type priorityQueue[T any] []*item[T]

func (pq priorityQueue[T]) Len() int { return len(pq) }

// Less 比较两个元素的优先级
// 说明：NaN视为比任何数都大，排在所有有限值与+Inf之后；同优先级比较入队序号
func (pq priorityQueue[T]) Less(i, j int) bool {
	pi, pj := rankKey(pq[i].Priority), rankKey(pq[j].Priority)
	if pi.nan != pj.nan {
		return !pi.nan
	}
	if !pi.nan && pi.v != pj.v {
		return pi.v < pj.v
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue[T]) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue[T]) Push(x any) {
	n := len(*pq)
	item := x.(*item[T])
	item.index = n
	*pq = append(*pq, item)
}

func (pq *priorityQueue[T]) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // 避免内存泄漏
	item.index = -1 // 为了安全起见
	*pq = old[0 : n-1]
	return item
}

type key struct {
	v   float64
	nan bool
}

func rankKey(p float64) key {
	return key{v: p, nan: math.IsNaN(p)}
}

// PriorityQueue 稳定最小优先队列
// 功能：按优先级从小到大取出元素，用于按适应度（RMSE）给个体排序
// 说明：支持任意类型的元素；相同优先级保持入队顺序
type PriorityQueue[T any] struct {
	queue priorityQueue[T] // 内部优先队列实现
	next  int              // 下一个入队序号
}

// NewPriorityQueue 创建优先队列
func NewPriorityQueue[T any]() *PriorityQueue[T] {
	return &PriorityQueue[T]{queue: make(priorityQueue[T], 0)}
}

// Len 获取当前队列长度
func (q *PriorityQueue[T]) Len() int {
	return len(q.queue)
}

// First 获取第一个元素（优先级数值最小的元素）
// 说明：不移除元素；调用前需保证队列已经Heapify
func (q *PriorityQueue[T]) First() T {
	return q.queue[0].Value
}

// Push 加入元素（简单添加）
// 说明：添加后需要调用Heapify()来重新构建堆结构
func (q *PriorityQueue[T]) Push(value T, priority float64) {
	q.queue = append(q.queue, &item[T]{
		Value:    value,
		Priority: priority,
		seq:      q.next,
	})
	q.next++
}

// Heapify 重新构建堆
func (q *PriorityQueue[T]) Heapify() {
	heap.Init(&q.queue)
}

// HeapPush 加入元素（堆操作）
func (q *PriorityQueue[T]) HeapPush(value T, priority float64) {
	heap.Push(&q.queue, &item[T]{
		Value:    value,
		Priority: priority,
		seq:      q.next,
	})
	q.next++
}

// HeapPop 弹出元素（堆操作）
// 返回：value-元素值，priority-元素优先级
func (q *PriorityQueue[T]) HeapPop() (value T, priority float64) {
	item := heap.Pop(&q.queue).(*item[T])
	return item.Value, item.Priority
}

// PopN 依次弹出至多n个元素
// 功能：按优先级从小到大取出前n个元素及其优先级
// 说明：n大于队列长度时取出全部元素；队列需已满足堆性质
func (q *PriorityQueue[T]) PopN(n int) (values []T, priorities []float64) {
	n = min(n, q.Len())
	values = make([]T, 0, n)
	priorities = make([]float64, 0, n)
	for range n {
		v, p := q.HeapPop()
		values = append(values, v)
		priorities = append(priorities, p)
	}
	return
}
