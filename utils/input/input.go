// 标定轨迹的数据源：文件、原始传感器日志、MongoDB
package input

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/gipps-calibration/entity"
	"github.com/tsinghua-fib-lab/gipps-calibration/gipps"
	"github.com/tsinghua-fib-lab/gipps-calibration/trajectory"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/config"
)

var log = logrus.WithField("module", "input")

var ErrUnknownFormat = errors.New("input: unknown format")

// NewSource 根据配置创建轨迹数据源
// 功能：选择数据格式对应的数据源，并按需在外层套一层卡尔曼滤波
// 参数：cfg-输入配置，cacheDir-MongoDB数据的本地缓存目录（为空则不缓存）
// 返回：数据源，格式不支持时返回ErrUnknownFormat
func NewSource(cfg config.Input, cacheDir string) (entity.ITrajectorySource, error) {
	var src entity.ITrajectorySource
	files := cfg.Files
	if cfg.File != "" {
		files = append([]string{cfg.File}, files...)
	}
	switch cfg.Format {
	case config.FormatSynthetic, config.FormatFHWAIRV, config.FormatProcessed:
		if cfg.Format == config.FormatSynthetic && len(files) == 0 {
			s, err := newSimulatedSource(cfg.Synthetic)
			if err != nil {
				return nil, err
			}
			src = s
			break
		}
		s, err := NewFileSource(cfg.Format, files...)
		if err != nil {
			return nil, err
		}
		src = s
	case config.FormatNDS:
		src = NewNDSSource(files, cfg.Event, cfg.Episode, Thresholds(cfg.Extraction), cfg.Extraction.Smoothing).WithRadar(cfg.Radar)
	case config.FormatMongo:
		if cfg.Episodes == nil {
			return nil, fmt.Errorf("input: mongo format needs an episodes collection")
		}
		src = NewMongoSource(cfg.URI, *cfg.Episodes, cacheDir, cfg.Event, cfg.Episode)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, cfg.Format)
	}
	if cfg.Extraction.Kalman {
		src = &kalmanSource{src: src}
	}
	return src, nil
}

// kalmanSource 对数据源的轨迹再做一次卡尔曼滤波
type kalmanSource struct {
	src entity.ITrajectorySource
}

func (k *kalmanSource) Trajectory(ctx context.Context) (*trajectory.Trajectory, error) {
	traj, err := k.src.Trajectory(ctx)
	if err != nil {
		return nil, err
	}
	return traj.KalmanFilter(trajectory.DefaultProcessVariance, trajectory.DefaultMeasurementVariance)
}

func (k *kalmanSource) String() string {
	return "kalman(" + k.src.String() + ")"
}

// newSimulatedSource 用Gipps模型生成合成轨迹
// 说明：前车速度在lead_speed附近按正弦波动，振幅2米/秒
func newSimulatedSource(cfg *config.Synthetic) (*trajectory.StaticSource, error) {
	if cfg == nil {
		return nil, fmt.Errorf("input: synthetic format needs a file or generator settings")
	}
	p, err := gipps.FromValues(cfg.Params)
	if err != nil {
		return nil, err
	}
	traj, err := gipps.Simulate(p, sineLead(cfg.LeadSpeed), gipps.State{VFollow: cfg.VFollow, Spacing: cfg.Spacing}, cfg.Samples)
	if err != nil {
		return nil, err
	}
	log.Infof("generated %d synthetic samples with %v", traj.Len(), p)
	return trajectory.Static(traj), nil
}
