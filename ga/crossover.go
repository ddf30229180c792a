package ga

import (
	"fmt"

	"github.com/tsinghua-fib-lab/gipps-calibration/gipps"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/randengine"
)

// Crossover 交叉
// 功能：从父代中生成n个子代
// 参数：parents-父代（至少2个），n-子代个数，e-随机数引擎
// 返回：子代，父代不足2个时返回ErrParentPoolTooSmall
// 算法说明：
// 1. 随机选两个不同的父代（相同则重选）
// 2. 每个参数独立取随机数r：r<1/3取父本，r<2/3取母本，否则取两者均值并保留一位小数
func Crossover(parents Population, n int, e *randengine.Engine) (Population, error) {
	if len(parents) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrParentPoolTooSmall, len(parents))
	}
	children := make(Population, 0, n)
	for len(children) < n {
		male := e.Intn(len(parents))
		female := e.Intn(len(parents))
		if male == female {
			continue
		}
		children = append(children, mate(parents[male], parents[female], e))
	}
	return children, nil
}

func mate(male, female gipps.Params, e *randengine.Engine) gipps.Params {
	var child gipps.Params
	for _, k := range gipps.Kinds() {
		r := e.Float64()
		switch {
		case r < 1.0/3:
			child = child.With(k, male.Get(k))
		case r < 2.0/3:
			child = child.With(k, female.Get(k))
		default:
			child = child.With(k, randengine.Round((male.Get(k)+female.Get(k))/2, 1))
		}
	}
	return child
}
