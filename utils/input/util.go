package input

import (
	"math"
	"os"

	"github.com/tsinghua-fib-lab/gipps-calibration/episode"
	"github.com/tsinghua-fib-lab/gipps-calibration/gipps"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/config"
)

// Thresholds 配置转换为片段切分阈值
func Thresholds(e config.Extraction) episode.Thresholds {
	return episode.Thresholds{
		MinDuration: e.MinDuration,
		MaxDistance: e.MaxDistance,
		MinSpeed:    e.MinSpeed,
		GapMs:       e.GapMs,
	}
}

func sineLead(v float64) gipps.LeadProfile {
	return func(i int) float64 { return v + 2*math.Sin(float64(i)/20) }
}

// preCheckCache 预检查缓存目录
// 功能：验证输入缓存目录的有效性，决定是否启用缓存功能
// 参数：cacheDir-缓存目录路径
// 返回：true表示启用缓存，false表示禁用缓存
func preCheckCache(cacheDir string) bool {
	if cacheDir == "" {
		log.Info("disable input cache")
		return false
	}
	if stat, err := os.Stat(cacheDir); err == nil && stat.IsDir() {
		log.Infof("enable input cache at %s", cacheDir)
		return true
	}
	log.Errorf("disable input cache because invalid dir %s (not exist or file)", cacheDir)
	return false
}
