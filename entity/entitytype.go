package entity

import (
	"time"

	"github.com/tsinghua-fib-lab/gipps-calibration/fitness"
	"github.com/tsinghua-fib-lab/gipps-calibration/gipps"
)

// GenerationRecord 一代的记录
type GenerationRecord struct {
	Generation  int                   // 代数（从1开始）
	Score       float64               // 种群得分（个体车距RMSE的均值）
	BestScore   float64               // 截至本代的最优种群得分
	Improved    bool                  // 本代是否刷新最优
	Degrade     int                   // 连续未改进的代数
	Restart     int                   // 已重启次数
	NaNScores   int                   // 得分为NaN的个体数
	Individuals []fitness.Diagnostics // 每个个体的诊断信息
}

// FinishRecord 运行结束时的记录
type FinishRecord struct {
	BestScore   float64
	Elapsed     time.Duration
	Generations int
	Restarts    int
	Canceled    bool // 被调用方取消（超时等）
}

// GAConfig 一次运行使用的遗传算法参数
type GAConfig struct {
	PopSize              int     `json:"pop_size" bson:"pop_size"`
	DegradeThreshold     int     `json:"degrade_threshold" bson:"degrade_threshold"`
	RestartThreshold     int     `json:"restart_threshold" bson:"restart_threshold"`
	RetainFraction       float64 `json:"retain_fraction" bson:"retain_fraction"`
	RandomSelectFraction float64 `json:"random_select_fraction" bson:"random_select_fraction"`
	MutateFraction       float64 `json:"mutate_fraction" bson:"mutate_fraction"`
}

// RunSummary 一次标定运行的汇总
// 说明：对应summary表中的一行，外加逐代得分曲线
type RunSummary struct {
	ID        string    `json:"id" bson:"_id"`
	Test      int       `json:"test" bson:"test"`     // 测试编号（参数组合序号）
	Run       int       `json:"run" bson:"run"`       // 同一参数组合下的重复序号
	Source    string    `json:"source" bson:"source"` // 轨迹数据源
	CreatedAt time.Time `json:"created_at" bson:"created_at"`

	GAConfig `bson:"inline"`
	Seed     uint64 `json:"seed" bson:"seed"`

	ElapsedMinutes      int            `json:"elapsed_minutes" bson:"elapsed_minutes"`
	ElapsedSeconds      float64        `json:"elapsed_seconds" bson:"elapsed_seconds"`
	Generations         int            `json:"generations" bson:"generations"`
	Restarts            int            `json:"restarts" bson:"restarts"`
	BestPopulationScore float64        `json:"best_population_score" bson:"best_population_score"`
	BestIndividualScore float64        `json:"best_individual_score" bson:"best_individual_score"`
	UniqueIndividuals   int            `json:"unique_individuals" bson:"unique_individuals"`
	BestIndividual      gipps.Params   `json:"best_individual" bson:"best_individual"`
	BestPopulation      []gipps.Params `json:"best_population" bson:"best_population"`
	ScoreHistory        []float64      `json:"score_history" bson:"score_history"`
	Canceled            bool           `json:"canceled" bson:"canceled"`
}
