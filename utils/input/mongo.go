package input

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"git.fiblab.net/general/common/v2/mongoutil"
	"git.fiblab.net/general/common/v2/protoutil"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/gipps-calibration/trajectory"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// EpisodeDoc MongoDB中的跟车片段文档
type EpisodeDoc struct {
	ID         string    `bson:"_id"`
	Event      string    `bson:"event"`
	LeadTarget int       `bson:"lead_target"`
	Time       []float64 `bson:"time"`
	Stamp      []float64 `bson:"stamp,omitempty"`
	VFollow    []float64 `bson:"v_follow"`
	VLead      []float64 `bson:"v_lead"`
	Spacing    []float64 `bson:"spacing"`
	DV         []float64 `bson:"dv"`
	AFollow    []float64 `bson:"a_follow,omitempty"`
	ALead      []float64 `bson:"a_lead,omitempty"`
}

// NewEpisodeDoc 把轨迹转换为文档
func NewEpisodeDoc(id, event string, leadTarget int, traj *trajectory.Trajectory) EpisodeDoc {
	c := traj.Columns()
	return EpisodeDoc{
		ID: id, Event: event, LeadTarget: leadTarget,
		Time: c.Time, Stamp: c.Stamp, VFollow: c.VFollow, VLead: c.VLead,
		Spacing: c.Spacing, DV: c.DV, AFollow: c.AFollow, ALead: c.ALead,
	}
}

// Trajectory 文档转换为轨迹
func (d EpisodeDoc) Trajectory() (*trajectory.Trajectory, error) {
	traj, err := trajectory.New(trajectory.Columns{
		Time: d.Time, Stamp: d.Stamp, VFollow: d.VFollow, VLead: d.VLead,
		Spacing: d.Spacing, DV: d.DV, AFollow: d.AFollow, ALead: d.ALead,
	})
	if err != nil {
		return nil, fmt.Errorf("episode %s: %w", d.ID, err)
	}
	return traj, nil
}

// MongoSource 从MongoDB读取跟车片段
// 说明：启用缓存时优先读取本地protobuf缓存，下载后写入缓存
type MongoSource struct {
	uri      string
	path     config.InputPath
	cacheDir string
	event    string
	episode  string
}

// NewMongoSource 创建MongoDB数据源
// 参数：uri-连接字符串，path-集合，cacheDir-缓存目录，event-只读取该事件的片段，episodeID-只读取该片段
func NewMongoSource(uri string, path config.InputPath, cacheDir, event, episodeID string) *MongoSource {
	return &MongoSource{uri: uri, path: path, cacheDir: cacheDir, event: event, episode: episodeID}
}

// Trajectory 加载并合并跟车片段
// 算法说明：
// 1. 缓存检查：缓存目录有效且缓存文件存在时直接读取缓存
// 2. 仅缓存模式下缓存缺失则报错
// 3. 否则按事件或片段编号查询集合，按_id排序
// 4. 下载成功且启用缓存时写入缓存文件
func (s *MongoSource) Trajectory(ctx context.Context) (*trajectory.Trajectory, error) {
	useCache := preCheckCache(s.cacheDir)
	cacheFile := filepath.Join(s.cacheDir, s.path.GetCachePath())
	var docs []EpisodeDoc
	var err error
	if useCache {
		docs, err = ReadCache(cacheFile)
		if err == nil {
			log.Infof("loaded %d episodes from cache %s", len(docs), cacheFile)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if docs == nil {
		if s.path.OnlyCache {
			return nil, fmt.Errorf("input: cache %s not available and only_cache is set", cacheFile)
		}
		if docs, err = s.download(ctx); err != nil {
			return nil, err
		}
		if useCache {
			if err := WriteCache(cacheFile, docs); err != nil {
				log.Errorf("failed to write cache %s: %v", cacheFile, err)
			}
		}
	}
	docs = lo.Filter(docs, func(d EpisodeDoc, _ int) bool {
		return (s.event == "" || d.Event == s.event) && (s.episode == "" || d.ID == s.episode)
	})
	if len(docs) == 0 {
		return nil, fmt.Errorf("input: no episode in %s.%s: %w", s.path.DB, s.path.Col, trajectory.ErrEmpty)
	}
	trajs := make([]*trajectory.Trajectory, len(docs))
	for i, d := range docs {
		if trajs[i], err = d.Trajectory(); err != nil {
			return nil, err
		}
	}
	return trajs[0].Merge(trajs[1:]...), nil
}

func (s *MongoSource) download(ctx context.Context) ([]EpisodeDoc, error) {
	client := mongoutil.NewClient(s.uri)
	defer client.Disconnect(context.Background())
	coll := mongoutil.GetMongoColl(client, s.path)
	filter := bson.M{}
	if s.episode != "" {
		filter["_id"] = s.episode
	} else if s.event != "" {
		filter["event"] = s.event
	}
	log.Infof("start fetching from %s.%s", s.path.DB, s.path.Col)
	cursor, err := coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("input: find episodes: %w", err)
	}
	var docs []EpisodeDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("input: decode episodes: %w", err)
	}
	log.Infof("finish fetching %d episodes from %s.%s", len(docs), s.path.DB, s.path.Col)
	return docs, nil
}

func (s *MongoSource) String() string {
	return fmt.Sprintf("mongo(%s.%s)", s.path.DB, s.path.Col)
}

func floatsValue(xs []float64) *structpb.Value {
	return structpb.NewListValue(&structpb.ListValue{
		Values: lo.Map(xs, func(x float64, _ int) *structpb.Value { return structpb.NewNumberValue(x) }),
	})
}

func valueFloats(v *structpb.Value) []float64 {
	if len(v.GetListValue().GetValues()) == 0 {
		return nil
	}
	return lo.Map(v.GetListValue().GetValues(), func(x *structpb.Value, _ int) float64 { return x.GetNumberValue() })
}

// WriteCache 把片段文档写入本地protobuf缓存
func WriteCache(file string, docs []EpisodeDoc) error {
	list := &structpb.ListValue{
		Values: lo.Map(docs, func(d EpisodeDoc, _ int) *structpb.Value {
			return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
				"id":          structpb.NewStringValue(d.ID),
				"event":       structpb.NewStringValue(d.Event),
				"lead_target": structpb.NewNumberValue(float64(d.LeadTarget)),
				"time":        floatsValue(d.Time),
				"stamp":       floatsValue(d.Stamp),
				"v_follow":    floatsValue(d.VFollow),
				"v_lead":      floatsValue(d.VLead),
				"spacing":     floatsValue(d.Spacing),
				"dv":          floatsValue(d.DV),
				"a_follow":    floatsValue(d.AFollow),
				"a_lead":      floatsValue(d.ALead),
			}})
		}),
	}
	data, err := proto.Marshal(list)
	if err != nil {
		return err
	}
	return os.WriteFile(file, data, 0o644)
}

// ReadCache 读取本地protobuf缓存
func ReadCache(file string) ([]EpisodeDoc, error) {
	if _, err := os.Stat(file); err != nil {
		return nil, err
	}
	var list structpb.ListValue
	if err := protoutil.UnmarshalFromFile(&list, file); err != nil {
		return nil, fmt.Errorf("input: read cache %s: %w", file, err)
	}
	return lo.Map(list.GetValues(), func(v *structpb.Value, _ int) EpisodeDoc {
		f := v.GetStructValue().GetFields()
		return EpisodeDoc{
			ID:         f["id"].GetStringValue(),
			Event:      f["event"].GetStringValue(),
			LeadTarget: int(f["lead_target"].GetNumberValue()),
			Time:       valueFloats(f["time"]),
			Stamp:      valueFloats(f["stamp"]),
			VFollow:    valueFloats(f["v_follow"]),
			VLead:      valueFloats(f["v_lead"]),
			Spacing:    valueFloats(f["spacing"]),
			DV:         valueFloats(f["dv"]),
			AFollow:    valueFloats(f["a_follow"]),
			ALead:      valueFloats(f["a_lead"]),
		}
	}), nil
}
