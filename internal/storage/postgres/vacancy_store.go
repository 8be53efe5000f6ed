// Package postgres persists crawl results in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/vacancy-crawler/internal/crawler"
)

const defaultTable = "vacancies"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for vacancy rows.
type Config struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type txBeginner interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// VacancyStore writes one row per vacancy, keyed by run ID and position.
type VacancyStore struct {
	pool  txBeginner
	table string
}

// NewVacancyStore connects to Postgres and returns a store for cfg.Table.
func NewVacancyStore(ctx context.Context, cfg Config) (*VacancyStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &VacancyStore{pool: pool, table: table}, nil
}

// NewVacancyStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewVacancyStoreWithPool(pool txBeginner, table string) (*VacancyStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &VacancyStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// EnsureSchema creates the vacancies table when it is missing.
func (s *VacancyStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id       TEXT        NOT NULL,
	position     INTEGER     NOT NULL,
	title        TEXT        NOT NULL,
	company      TEXT        NOT NULL,
	technologies TEXT[]      NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, position)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// SaveVacancies inserts every vacancy of a run in a single transaction.
// Either all rows land or none do.
func (s *VacancyStore) SaveVacancies(ctx context.Context, runID string, vacancies []crawler.Vacancy) (err error) {
	if s == nil || s.pool == nil {
		return fmt.Errorf("vacancy store is not configured")
	}
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if len(vacancies) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	query := fmt.Sprintf(
		`INSERT INTO %s (run_id, position, title, company, technologies) VALUES ($1, $2, $3, $4, $5)`,
		s.table)
	for i, v := range vacancies {
		technologies := v.Technologies
		if technologies == nil {
			technologies = []string{}
		}
		if _, err = tx.Exec(ctx, query, runID, i, v.Title, v.Company, technologies); err != nil {
			return fmt.Errorf("insert vacancy %d: %w", i, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *VacancyStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
