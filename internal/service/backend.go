package service

import (
	"context"
	"fmt"

	"github.com/cortexai/cortexbi/internal/config"
	"github.com/cortexai/cortexbi/internal/models"
	"github.com/cortexai/cortexbi/internal/security"
)

// Backend is one warehouse the executor can run read-only SQL on.
type Backend interface {
	Name() string
	Query(ctx context.Context, sql string) (*RawResult, error)
	// DescribeSchema renders the tables and columns visible to queries as
	// plain text for the generation prompt.
	DescribeSchema(ctx context.Context) (string, error)
	Ping(ctx context.Context) error
	Close() error
}

// RawResult is the backend output before row capping and masking.
type RawResult struct {
	Columns        []string
	Rows           []models.Row
	BytesProcessed int64
}

// Open connects to the backend selected in cfg.
func Open(ctx context.Context, cfg *config.Config, cost *security.CostTracker) (Backend, error) {
	switch cfg.Backend {
	case config.BackendBigQuery:
		return NewBigQueryService(ctx, BigQueryOptions{
			ProjectID:       cfg.GCPProjectID,
			CredentialsFile: cfg.GoogleApplicationCredentials,
			Location:        cfg.BigQueryLocation,
			Dataset:         cfg.BigQueryDataset,
			Cost:            cost,
		})
	case config.BackendPostgres:
		return NewPostgresService(ctx, cfg.DatabaseURL)
	case config.BackendSQLServer:
		return NewSQLDatabaseService(ctx, DriverSQLServer, cfg.DatabaseURL)
	case config.BackendSQLite:
		return NewSQLDatabaseService(ctx, DriverSQLite, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
