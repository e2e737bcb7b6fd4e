package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/cortexai/cortexbi/internal/models"
	"github.com/cortexai/cortexbi/internal/security"
)

type ExecutorOptions struct {
	MaxParallel int
	MaxRows     int
	Timeout     time.Duration
	Validator   *security.SQLValidator
	Masker      *security.DataMasker
	Audit       *security.AuditLogger
}

// Executor runs batches of named queries on a Backend.
type Executor struct {
	backend Backend
	opts    ExecutorOptions
}

func NewExecutor(backend Backend, opts ExecutorOptions) *Executor {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 1
	}
	if opts.Validator == nil {
		opts.Validator = security.NewSQLValidator()
	}
	return &Executor{backend: backend, opts: opts}
}

func (e *Executor) Backend() Backend { return e.backend }

// ExecuteQueries runs every query and returns results in input order. The
// whole batch is validated before anything runs, and the first failure
// cancels the rest: callers get all results or an error.
func (e *Executor) ExecuteQueries(ctx context.Context, queries []models.SQLQuery) ([]models.QueryResult, error) {
	for _, q := range queries {
		if err := e.opts.Validator.Validate(q.SQL); err != nil {
			e.opts.Audit.LogQuery(q.QueryName, q.SQL, e.backend.Name(), 0, 0, false, err.Error())
			return nil, fmt.Errorf("query %q: %w", q.QueryName, err)
		}
	}

	results := make([]models.QueryResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.MaxParallel)
	for i, q := range queries {
		g.Go(func() error {
			res, err := e.run(gctx, q)
			if err != nil {
				return fmt.Errorf("query %q: %w", q.QueryName, err)
			}
			results[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Execute runs one ad-hoc query through the same filter, cap and masking.
func (e *Executor) Execute(ctx context.Context, name, sql string) (*models.QueryResult, error) {
	if err := e.opts.Validator.Validate(sql); err != nil {
		e.opts.Audit.LogQuery(name, sql, e.backend.Name(), 0, 0, false, err.Error())
		return nil, err
	}
	return e.run(ctx, models.SQLQuery{QueryName: name, SQL: sql})
}

func (e *Executor) run(ctx context.Context, q models.SQLQuery) (*models.QueryResult, error) {
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := e.backend.Query(ctx, q.SQL)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		e.opts.Audit.LogQuery(q.QueryName, q.SQL, e.backend.Name(), elapsed, 0, false, err.Error())
		return nil, err
	}

	rows := raw.Rows
	if rows == nil {
		rows = []models.Row{}
	}
	if e.opts.MaxRows > 0 && len(rows) > e.opts.MaxRows {
		log.Debug().Str("query_name", q.QueryName).Int("rows", len(rows)).Int("max_rows", e.opts.MaxRows).Msg("truncating result")
		rows = rows[:e.opts.MaxRows]
	}
	rows = e.opts.Masker.MaskRows(raw.Columns, rows)

	e.opts.Audit.LogQuery(q.QueryName, q.SQL, e.backend.Name(), elapsed, len(rows), true, "")
	return &models.QueryResult{
		QueryName:        q.QueryName,
		QueryDescription: q.QueryDescription,
		Data:             rows,
		Columns:          raw.Columns,
	}, nil
}
