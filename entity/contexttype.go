package entity

import (
	"context"

	"github.com/tsinghua-fib-lab/gipps-calibration/trajectory"
)

// 轨迹数据源接口
// utils/input与trajectory.StaticSource的依赖倒置
type ITrajectorySource interface {
	// 加载轨迹，同一次运行中结果只读
	Trajectory(ctx context.Context) (*trajectory.Trajectory, error)
	// 数据源描述，写入运行记录
	String() string
}

// 逐代记录接口
// ga.LogRecorder的依赖倒置，遗传算法控制器通过它输出每一代的信息
type IGenerationRecorder interface {
	RecordGeneration(rec *GenerationRecord) // 每一代结束时调用
	RecordFinish(rec *FinishRecord)         // 运行结束时调用
}

// 运行结果存储接口
// store/sqlite.go与store/mongo.go的依赖倒置
type IRunStore interface {
	SaveRun(ctx context.Context, run *RunSummary) error
	Close() error
}
