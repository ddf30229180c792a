package ga

import (
	"context"
	"errors"
)

var (
	// 配置不合法，运行开始前返回
	ErrInvalidConfig = errors.New("ga: invalid config")
	// 父代个体少于2个，无法交叉
	ErrParentPoolTooSmall = errors.New("ga: parent pool needs at least 2 individuals")
)

// Interrupted 判断Run是否因ctx取消或超时而提前结束
// 说明：此时Run同时返回截至当时的最优结果，调用方应继续使用该结果
func Interrupted(res *Result, err error) bool {
	return res != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled))
}
