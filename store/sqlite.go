package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/tsinghua-fib-lab/gipps-calibration/entity"
	"github.com/tsinghua-fib-lab/gipps-calibration/gipps"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore 基于SQLite的运行汇总存储
// 说明：runs表对应每次运行的汇总行，score_history保存逐代种群得分，best_population保存最优种群
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite 打开数据库并迁移到最新版本
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// 单连接，避免并发写时的database is locked
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	log.Infof("opened run database %s", path)
	return &SQLiteStore{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("store: load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("store: create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("store: create migrate instance: %w", err)
	}
	// m不关闭，关闭会连带关闭db
	m.Log = migrateLogger{}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: migration up failed: %w", err)
	}
	return nil
}

// migrateLogger 把迁移日志转到logrus
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...any) {
	log.Debugf("[migrate] "+strings.TrimSpace(format), v...)
}

func (migrateLogger) Verbose() bool { return false }

// nullable NaN存为NULL
func nullable(x float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: x, Valid: !math.IsNaN(x)}
}

func fromNullable(x sql.NullFloat64) float64 {
	if !x.Valid {
		return math.NaN()
	}
	return x.Float64
}

// SaveRun 在一个事务中写入汇总行、逐代得分与最优种群
func (s *SQLiteStore) SaveRun(ctx context.Context, run *entity.RunSummary) error {
	prepare(run)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	b := run.BestIndividual
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, test, run, source, created_at,
			pop_size, degrade_threshold, restart_threshold, retain_fraction, random_select_fraction, mutate_fraction,
			seed, elapsed_minutes, elapsed_seconds, generations, restarts,
			best_population_score, best_individual_score, unique_individuals,
			t_rxn, v_des, a_des, d_des, d_lead, g_min, canceled
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Test, run.Run, run.Source, run.CreatedAt.UTC().Format(time.RFC3339Nano),
		run.PopSize, run.DegradeThreshold, run.RestartThreshold, run.RetainFraction, run.RandomSelectFraction, run.MutateFraction,
		int64(run.Seed), run.ElapsedMinutes, run.ElapsedSeconds, run.Generations, run.Restarts,
		nullable(run.BestPopulationScore), nullable(run.BestIndividualScore), run.UniqueIndividuals,
		b.TRxn, b.VDes, b.ADes, b.DDes, b.DLead, b.GMin, run.Canceled,
	)
	if err != nil {
		return fmt.Errorf("store: insert run %s: %w", run.ID, err)
	}
	for i, score := range run.ScoreHistory {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO score_history (run_id, generation, score) VALUES (?, ?, ?)",
			run.ID, i+1, nullable(score)); err != nil {
			return fmt.Errorf("store: insert history of %s: %w", run.ID, err)
		}
	}
	for i, p := range run.BestPopulation {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO best_population (run_id, idx, t_rxn, v_des, a_des, d_des, d_lead, g_min) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			run.ID, i, p.TRxn, p.VDes, p.ADes, p.DDes, p.DLead, p.GMin); err != nil {
			return fmt.Errorf("store: insert population of %s: %w", run.ID, err)
		}
	}
	return tx.Commit()
}

// ListRuns 按测试编号与重复序号列出所有运行汇总
// 说明：不包含逐代得分与最优种群，需要时用History、BestPopulation查询
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]entity.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, test, run, source, created_at,
			pop_size, degrade_threshold, restart_threshold, retain_fraction, random_select_fraction, mutate_fraction,
			seed, elapsed_minutes, elapsed_seconds, generations, restarts,
			best_population_score, best_individual_score, unique_individuals,
			t_rxn, v_des, a_des, d_des, d_lead, g_min, canceled
		FROM runs ORDER BY test, run, created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []entity.RunSummary
	for rows.Next() {
		var r entity.RunSummary
		var created string
		var seed int64
		var bestPop, bestInd sql.NullFloat64
		var b [gipps.NumKinds]sql.NullFloat64
		if err := rows.Scan(
			&r.ID, &r.Test, &r.Run, &r.Source, &created,
			&r.PopSize, &r.DegradeThreshold, &r.RestartThreshold, &r.RetainFraction, &r.RandomSelectFraction, &r.MutateFraction,
			&seed, &r.ElapsedMinutes, &r.ElapsedSeconds, &r.Generations, &r.Restarts,
			&bestPop, &bestInd, &r.UniqueIndividuals,
			&b[0], &b[1], &b[2], &b[3], &b[4], &b[5], &r.Canceled,
		); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("store: run %s: %w", r.ID, err)
		}
		r.Seed = uint64(seed)
		r.BestPopulationScore = fromNullable(bestPop)
		r.BestIndividualScore = fromNullable(bestInd)
		r.BestIndividual = gipps.Params{
			TRxn: fromNullable(b[0]), VDes: fromNullable(b[1]), ADes: fromNullable(b[2]),
			DDes: fromNullable(b[3]), DLead: fromNullable(b[4]), GMin: fromNullable(b[5]),
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// History 一次运行的逐代种群得分
func (s *SQLiteStore) History(ctx context.Context, id string) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT score FROM score_history WHERE run_id = ? ORDER BY generation", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var scores []float64
	for rows.Next() {
		var score sql.NullFloat64
		if err := rows.Scan(&score); err != nil {
			return nil, err
		}
		scores = append(scores, fromNullable(score))
	}
	return scores, rows.Err()
}

// BestPopulation 一次运行的最优种群
func (s *SQLiteStore) BestPopulation(ctx context.Context, id string) ([]gipps.Params, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT t_rxn, v_des, a_des, d_des, d_lead, g_min FROM best_population WHERE run_id = ? ORDER BY idx", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pop []gipps.Params
	for rows.Next() {
		var p gipps.Params
		if err := rows.Scan(&p.TRxn, &p.VDes, &p.ADes, &p.DDes, &p.DLead, &p.GMin); err != nil {
			return nil, err
		}
		pop = append(pop, p)
	}
	return pop, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
