package task

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/tsinghua-fib-lab/gipps-calibration/episode"
	"github.com/tsinghua-fib-lab/gipps-calibration/report"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/config"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/input"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Extract 从原始传感器日志中提取跟车片段并导出
// 功能：片段提取模式的入口
// 参数：c-上下文，cfg-配置（使用input.files、input.extraction与output）
// 返回：提取出的片段
// 算法说明：
// 1. 逐个文件解析数据点并切分跟车片段
// 2. 每个片段导出为processed格式CSV，按需输出HTML图
// 3. 配置了input.episodes时把片段写入MongoDB（按_id覆盖）
func Extract(c context.Context, cfg config.Config) ([]*episode.Episode, error) {
	in := cfg.Input
	files := in.Files
	if in.File != "" {
		files = append([]string{in.File}, files...)
	}
	src := input.NewNDSSource(files, in.Event, "", input.Thresholds(in.Extraction), in.Extraction.Smoothing).WithRadar(in.Radar)
	episodes, err := src.Episodes(c)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("task: create output dir: %w", err)
	}
	for _, ep := range episodes {
		log.Infof("Episode %s: lead %d, %.1f s, mean speed %.1f km/h, min distance %.2f m",
			ep.ID, ep.LeadTarget, ep.Points.TimeElapsed(), ep.Points.MeanSpeed(), ep.Points.MinLeadDistance())
		if err := writeFile(filepath.Join(cfg.Output.Dir, ep.ID+".csv"), func(f *os.File) error {
			return report.WriteTrajectoryCSV(f, ep.ID, ep.Trajectory)
		}); err != nil {
			return nil, err
		}
		if cfg.Output.Plot {
			if err := writeFile(filepath.Join(cfg.Output.Dir, ep.ID+".html"), func(f *os.File) error {
				return report.EpisodeHTML(f, ep.ID, ep.Trajectory)
			}); err != nil {
				return nil, err
			}
		}
	}
	if in.Episodes != nil && in.URI != "" {
		if err := uploadEpisodes(c, in.URI, *in.Episodes, episodes); err != nil {
			return episodes, err
		}
	}
	log.Infof("extracted %d episodes from %d files", len(episodes), len(files))
	return episodes, nil
}

func uploadEpisodes(c context.Context, uri string, path config.InputPath, episodes []*episode.Episode) error {
	client := mongoutil.NewClient(uri)
	defer client.Disconnect(context.Background())
	coll := mongoutil.GetMongoColl(client, path)
	for _, ep := range episodes {
		doc := input.NewEpisodeDoc(ep.ID, ep.Event, ep.LeadTarget, ep.Trajectory)
		if _, err := coll.ReplaceOne(c, bson.M{"_id": ep.ID}, doc, options.Replace().SetUpsert(true)); err != nil {
			return fmt.Errorf("task: upload episode %s: %w", ep.ID, err)
		}
	}
	log.Infof("uploaded %d episodes to %s.%s", len(episodes), path.DB, path.Col)
	return nil
}
