package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cortexai/cortexbi/internal/models"
)

const postgresSchemaQuery = `SELECT table_schema || '.' || table_name, column_name, data_type
	FROM information_schema.columns
	WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
	ORDER BY table_schema, table_name, ordinal_position`

// PostgresService runs queries on a pgx connection pool.
type PostgresService struct {
	pool *pgxpool.Pool
}

func NewPostgresService(ctx context.Context, dsn string) (*PostgresService, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresService{pool: pool}, nil
}

func (s *PostgresService) Name() string { return "postgres" }

func (s *PostgresService) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresService) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresService) Query(ctx context.Context, sql string) (*RawResult, error) {
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	res := &RawResult{Columns: make([]string, len(fields)), Rows: []models.Row{}}
	for i, f := range fields {
		res.Columns[i] = f.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read values: %w", err)
		}
		row := make(models.Row, len(values))
		for i, v := range values {
			row[res.Columns[i]] = normalizeValue(v)
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return res, nil
}

func (s *PostgresService) DescribeSchema(ctx context.Context) (string, error) {
	rows, err := s.pool.Query(ctx, postgresSchemaQuery)
	if err != nil {
		return "", fmt.Errorf("describe schema: %w", err)
	}
	defer rows.Close()

	var triples [][3]string
	for rows.Next() {
		var t [3]string
		if err := rows.Scan(&t[0], &t[1], &t[2]); err != nil {
			return "", fmt.Errorf("scan schema: %w", err)
		}
		triples = append(triples, t)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return formatSchema(triples), nil
}
