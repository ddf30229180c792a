package ga

import (
	"io"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/gipps-calibration/entity"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/randengine"
)

// NopRecorder 不做任何记录
type NopRecorder struct{}

func (NopRecorder) RecordGeneration(*entity.GenerationRecord) {}
func (NopRecorder) RecordFinish(*entity.FinishRecord)         {}

// LogRecorder 单次运行的日志
// 功能：每一代写一行种群得分与计数器，再为每个个体写一行诊断信息
// 说明：行格式不是兼容性约定，字段齐全即可
type LogRecorder struct {
	logger *logrus.Logger
	entry  *logrus.Entry
}

// NewLogRecorder 创建写入w的运行日志
// 参数：w-输出（通常是<output>/<run>.log文件），run-运行标识
func NewLogRecorder(w io.Writer, run string) *LogRecorder {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%run%] [%time%] %msg%\n",
	})
	return &LogRecorder{logger: logger, entry: logger.WithField("run", run)}
}

// RecordGeneration 记录一代
func (r *LogRecorder) RecordGeneration(rec *entity.GenerationRecord) {
	r.entry.Infof("Generation: %d Pop Score: %.4f Current Degrade: %d Current Restart: %d Low Pop Score: %.4f",
		rec.Generation, rec.Score, rec.Degrade, rec.Restart, rec.BestScore)
	if rec.NaNScores > 0 {
		r.entry.Warnf("Generation: %d has %d individuals with undefined (NaN) score", rec.Generation, rec.NaNScores)
		log.Warnf("generation %d: %d of %d individuals scored NaN, population score is NaN",
			rec.Generation, rec.NaNScores, len(rec.Individuals))
	}
	for _, d := range rec.Individuals {
		r.entry.Debugf("%v RMSE_v: %v m/s & RMSpE_v: %v%% RMSE_dx: %v m & RMSpE_dx: %v%%",
			d.Params,
			randengine.Round(d.VelocityRMSE, 2), randengine.Round(d.VelocityRMSpE, 2),
			randengine.Round(d.SpacingRMSE, 2), randengine.Round(d.SpacingRMSpE, 2))
	}
}

// RecordFinish 记录运行结束
func (r *LogRecorder) RecordFinish(rec *entity.FinishRecord) {
	r.entry.Infof("Low Population Score: %.4f", rec.BestScore)
	r.entry.Infof("Total Run Time: %.0f min (%v), generations: %d, restarts: %d, canceled: %v",
		rec.Elapsed.Minutes(), rec.Elapsed, rec.Generations, rec.Restarts, rec.Canceled)
}
