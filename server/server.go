// Connect RPC服务：预测、评价与标定
package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/gipps-calibration/fitness"
	"github.com/tsinghua-fib-lab/gipps-calibration/ga"
	"github.com/tsinghua-fib-lab/gipps-calibration/gipps"
	"github.com/tsinghua-fib-lab/gipps-calibration/trajectory"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/randengine"
	"google.golang.org/protobuf/types/known/structpb"
)

var log = logrus.WithField("module", "server")

const (
	ServiceName         = "gipps.v1.CalibrationService"
	PredictProcedure    = "/" + ServiceName + "/Predict"
	ScoreProcedure      = "/" + ServiceName + "/Score"
	CalibrateProcedure  = "/" + ServiceName + "/Calibrate"
	maxCalibrateTimeout = 30 * time.Minute
)

type (
	request  = connect.Request[structpb.Struct]
	response = connect.Response[structpb.Struct]
)

// Server 标定服务
type Server struct {
	defaults ga.Config
}

// NewServer 创建服务，defaults为Calibrate请求未指定时使用的遗传算法参数
func NewServer(defaults ga.Config) *Server {
	return &Server{defaults: defaults}
}

// Handler 注册全部过程
func (s *Server) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(PredictProcedure, connect.NewUnaryHandler(PredictProcedure, s.Predict, opts...))
	mux.Handle(ScoreProcedure, connect.NewUnaryHandler(ScoreProcedure, s.Score, opts...))
	mux.Handle(CalibrateProcedure, connect.NewUnaryHandler(CalibrateProcedure, s.Calibrate, opts...))
	return "/" + ServiceName + "/", mux
}

// RunServer 启动服务
func RunServer(address string, defaults ga.Config) error {
	mux := http.NewServeMux()
	path, handler := NewServer(defaults).Handler()
	mux.Handle(path, handler)

	log.Infof("Server listening at %v", address)
	return http.ListenAndServe(address, mux)
}

func invalid(format string, args ...any) error {
	return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf(format, args...))
}

// number 读取数值字段，缺失或为null时返回NaN
func number(s *structpb.Struct, key string) (float64, bool) {
	v, ok := s.GetFields()[key]
	if !ok {
		return math.NaN(), false
	}
	if _, null := v.GetKind().(*structpb.Value_NullValue); null {
		return math.NaN(), false
	}
	n, isNumber := v.GetKind().(*structpb.Value_NumberValue)
	if !isNumber {
		return math.NaN(), false
	}
	return n.NumberValue, true
}

// numbers 读取数值列表字段，null元素为NaN
func numbers(s *structpb.Struct, key string) ([]float64, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%s must be a list of numbers", key)
	}
	out := make([]float64, len(list.GetValues()))
	for i, x := range list.GetValues() {
		switch k := x.GetKind().(type) {
		case *structpb.Value_NumberValue:
			out[i] = k.NumberValue
		case *structpb.Value_NullValue:
			out[i] = math.NaN()
		default:
			return nil, fmt.Errorf("%s[%d] is not a number", key, i)
		}
	}
	return out, nil
}

// value 非有限数编码为null（JSON无法表示NaN与±Inf）
func value(x float64) *structpb.Value {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return structpb.NewNullValue()
	}
	return structpb.NewNumberValue(x)
}

func paramsValue(p gipps.Params) *structpb.Value {
	return structpb.NewListValue(&structpb.ListValue{
		Values: lo.Map(p.Values(), func(x float64, _ int) *structpb.Value { return value(x) }),
	})
}

func params(s *structpb.Struct) (gipps.Params, error) {
	values, err := numbers(s, "params")
	if err != nil {
		return gipps.Params{}, err
	}
	p, err := gipps.FromValues(values)
	if err != nil {
		return gipps.Params{}, err
	}
	return p, p.Validate()
}

func trajectoryOf(s *structpb.Struct) (*trajectory.Trajectory, error) {
	t := s.GetFields()["trajectory"].GetStructValue()
	if t == nil {
		return nil, errors.New("trajectory is required")
	}
	var cols trajectory.Columns
	for key, col := range map[string]*[]float64{
		"time":     &cols.Time,
		"v_follow": &cols.VFollow,
		"v_lead":   &cols.VLead,
		"spacing":  &cols.Spacing,
		"dv":       &cols.DV,
	} {
		values, err := numbers(t, key)
		if err != nil {
			return nil, err
		}
		*col = values
	}
	return trajectory.New(cols)
}

// Predict 预测一个反应时间后的跟驰车速度
// 请求：{params: [6], v_follow, v_lead（缺省或null表示无前车）, spacing}
// 响应：{v_next, steps}
func (s *Server) Predict(_ context.Context, req *request) (*response, error) {
	p, err := params(req.Msg)
	if err != nil {
		return nil, invalid("params: %w", err)
	}
	vf, ok := number(req.Msg, "v_follow")
	if !ok {
		return nil, invalid("v_follow is required")
	}
	spacing, ok := number(req.Msg, "spacing")
	if !ok {
		return nil, invalid("spacing is required")
	}
	vl, _ := number(req.Msg, "v_lead")
	return connect.NewResponse(&structpb.Struct{Fields: map[string]*structpb.Value{
		"v_next": value(gipps.PredictNextVelocity(p, vf, vl, spacing)),
		"steps":  structpb.NewNumberValue(float64(gipps.Steps(p.TRxn))),
	}}), nil
}

// Score 在轨迹上评价一组参数
// 请求：{params: [6], trajectory: {v_follow, v_lead, spacing, [time], [dv]}}
// 响应：{score, velocity_rmse, velocity_rmspe, spacing_rmse, spacing_rmspe, pairs}
func (s *Server) Score(_ context.Context, req *request) (*response, error) {
	p, err := params(req.Msg)
	if err != nil {
		return nil, invalid("params: %w", err)
	}
	traj, err := trajectoryOf(req.Msg)
	if err != nil {
		return nil, invalid("trajectory: %w", err)
	}
	d := fitness.Evaluate(p, traj)
	return connect.NewResponse(&structpb.Struct{Fields: map[string]*structpb.Value{
		"score":          value(d.Score()),
		"velocity_rmse":  value(d.VelocityRMSE),
		"velocity_rmspe": value(d.VelocityRMSpE),
		"spacing_rmse":   value(d.SpacingRMSE),
		"spacing_rmspe":  value(d.SpacingRMSpE),
		"pairs":          structpb.NewNumberValue(float64(d.SpacingPairs)),
	}}), nil
}

// gaConfig 请求中的遗传算法参数覆盖默认值
func (s *Server) gaConfig(msg *structpb.Struct) ga.Config {
	cfg := s.defaults
	c := msg.GetFields()["config"].GetStructValue()
	ints := map[string]*int{
		"pop_size":          &cfg.PopSize,
		"degrade_threshold": &cfg.DegradeThreshold,
		"restart_threshold": &cfg.RestartThreshold,
	}
	for key, field := range ints {
		if v, ok := number(c, key); ok {
			*field = int(v)
		}
	}
	floats := map[string]*float64{
		"retain_fraction":        &cfg.RetainFraction,
		"random_select_fraction": &cfg.RandomSelectFraction,
		"mutate_fraction":        &cfg.MutateFraction,
	}
	for key, field := range floats {
		if v, ok := number(c, key); ok {
			*field = v
		}
	}
	return cfg
}

// Calibrate 在请求的轨迹上运行一次遗传算法
// 请求：{trajectory, [config], [seed], [timeout_seconds]}
// 响应：{best_score, best_individual, best_individual_score, generations, restarts, canceled}
// 说明：超时后返回截至当时的最优结果，canceled为true
func (s *Server) Calibrate(ctx context.Context, req *request) (*response, error) {
	traj, err := trajectoryOf(req.Msg)
	if err != nil {
		return nil, invalid("trajectory: %w", err)
	}
	cfg := s.gaConfig(req.Msg)
	if err := cfg.Validate(); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	seed, _ := number(req.Msg, "seed")
	if math.IsNaN(seed) || seed < 0 {
		seed = 0
	}
	timeout := maxCalibrateTimeout
	if sec, ok := number(req.Msg, "timeout_seconds"); ok && sec > 0 {
		timeout = min(timeout, time.Duration(sec*float64(time.Second)))
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := ga.NewController(cfg, trajectory.Static(traj), nil, randengine.New(uint64(seed))).Run(ctx)
	if err != nil && !ga.Interrupted(res, err) {
		if errors.Is(err, ga.ErrInvalidConfig) {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("failed to calibrate: %w", err))
	}
	fields := map[string]*structpb.Value{
		"best_score":  value(res.BestScore),
		"generations": structpb.NewNumberValue(float64(res.Generations)),
		"restarts":    structpb.NewNumberValue(float64(res.Restarts)),
		"canceled":    structpb.NewBoolValue(res.Canceled),
	}
	if best, score, ok := res.BestPopulation.Best(traj); ok {
		fields["best_individual"] = paramsValue(best)
		fields["best_individual_score"] = value(score)
	}
	log.Infof("calibrated %d samples: score %.4f after %d generations", traj.Len(), res.BestScore, res.Generations)
	return connect.NewResponse(&structpb.Struct{Fields: fields}), nil
}
