package store

import (
	"context"
	"fmt"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/tsinghua-fib-lab/gipps-calibration/entity"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/config"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoStore 把运行汇总写入MongoDB集合，每次运行一个文档
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore 连接MongoDB
func NewMongoStore(uri string, path config.InputPath) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("store: empty mongo uri for %s.%s", path.DB, path.Col)
	}
	client := mongoutil.NewClient(uri)
	log.Infof("writing run summaries to %s.%s", path.DB, path.Col)
	return &MongoStore{client: client, coll: mongoutil.GetMongoColl(client, path)}, nil
}

// SaveRun 插入一个运行汇总文档
// 说明：NaN与±Inf按BSON double原样保存
func (s *MongoStore) SaveRun(ctx context.Context, run *entity.RunSummary) error {
	prepare(run)
	if _, err := s.coll.InsertOne(ctx, run); err != nil {
		return fmt.Errorf("store: insert run %s: %w", run.ID, err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}
