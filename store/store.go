// 标定运行汇总的持久化：SQLite与MongoDB
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/gipps-calibration/entity"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/config"
)

var log = logrus.WithField("module", "store")

// Open 根据输出配置打开运行汇总存储
// 功能：配置了SQLite和/或MongoDB时分别打开，同时配置时写入两者
// 返回：存储，未配置任何后端时返回Nop
func Open(cfg config.Output) (entity.IRunStore, error) {
	var stores Multi
	if cfg.SQLite != "" {
		s, err := OpenSQLite(cfg.SQLite)
		if err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}
	if cfg.Runs != nil {
		s, err := NewMongoStore(cfg.URI, *cfg.Runs)
		if err != nil {
			stores.Close()
			return nil, err
		}
		stores = append(stores, s)
	}
	switch len(stores) {
	case 0:
		log.Info("no run store configured")
		return Nop{}, nil
	case 1:
		return stores[0], nil
	}
	return stores, nil
}

// prepare 补全运行编号与创建时间
func prepare(run *entity.RunSummary) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
}

// Nop 不保存任何内容
type Nop struct{}

func (Nop) SaveRun(_ context.Context, run *entity.RunSummary) error {
	prepare(run)
	return nil
}

func (Nop) Close() error { return nil }

// Multi 依次写入多个存储
type Multi []entity.IRunStore

func (m Multi) SaveRun(ctx context.Context, run *entity.RunSummary) error {
	prepare(run)
	var errs []error
	for _, s := range m {
		errs = append(errs, s.SaveRun(ctx, run))
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
