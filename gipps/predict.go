package gipps

import (
	"math"

	"git.fiblab.net/general/common/v2/mathutil"
)

// HasLead 判断前车速度是否表示存在前车
// 说明：NaN或±Inf表示没有前车
func HasLead(vLead float64) bool {
	return !math.IsNaN(vLead) && !math.IsInf(vLead, 0)
}

// accelerationBranch 自由流加速分支
// v_acc = v + 2.5*a*T*(1-v/V)*sqrt(0.025+v/V)
func accelerationBranch(p Params, vFollow float64) float64 {
	return vFollow + 2.5*p.ADes*p.TRxn*(1-vFollow/p.VDes)*math.Sqrt(0.025+vFollow/p.VDes)
}

// decelerationBranch 安全减速分支
// v_dec = b*T + sqrt(b^2*T^2 - b*(2*(s+g) - v*T - v_l^2/b_l))
// 说明：没有前车、根号下为负或结果为NaN时返回+Inf，由加速分支决定
func decelerationBranch(p Params, vFollow, vLead, spacing float64) float64 {
	if !HasLead(vLead) {
		return mathutil.INF
	}
	b, t := p.DDes, p.TRxn
	v := b*t + math.Sqrt((b*b)*(t*t)-b*(2*(spacing+p.GMin)-vFollow*t-(vLead*vLead)/p.DLead))
	if math.IsNaN(v) {
		return mathutil.INF
	}
	return v
}

// PredictNextVelocity Gipps跟车模型
// 功能：预测反应时间t_rxn之后的跟驰车速度
// 参数：p-模型参数，vFollow-跟驰车当前速度，vLead-前车当前速度（NaN表示无前车），spacing-当前车距
// 返回：预测速度（米/秒）
// 算法说明：
// 1. 加速分支：车辆在自由流中向期望速度加速
// 2. 减速分支：保证前车以d_lead紧急制动时仍能在g_min之外停车
// 3. 取两者的较小值
// 说明：纯函数，相同输入得到相同输出
func PredictNextVelocity(p Params, vFollow, vLead, spacing float64) float64 {
	return math.Min(accelerationBranch(p, vFollow), decelerationBranch(p, vFollow, vLead, spacing))
}
