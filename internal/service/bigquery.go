package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/cortexai/cortexbi/internal/models"
	"github.com/cortexai/cortexbi/internal/security"
)

type BigQueryOptions struct {
	ProjectID       string
	CredentialsFile string
	Location        string
	// Dataset limits schema discovery; empty means every dataset in the project.
	Dataset string
	Cost    *security.CostTracker
}

// BigQueryService wraps the BigQuery SDK client
type BigQueryService struct {
	client  *bigquery.Client
	dataset string
	cost    *security.CostTracker
}

// NewBigQueryService creates a new BigQuery client
func NewBigQueryService(ctx context.Context, opts BigQueryOptions) (*BigQueryService, error) {
	var copts []option.ClientOption
	if opts.CredentialsFile != "" {
		copts = append(copts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	client, err := bigquery.NewClient(ctx, opts.ProjectID, copts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}
	client.Location = opts.Location

	return &BigQueryService{
		client:  client,
		dataset: opts.Dataset,
		cost:    opts.Cost,
	}, nil
}

func (s *BigQueryService) Name() string { return "bigquery" }

// Close releases the BigQuery client
func (s *BigQueryService) Close() error {
	return s.client.Close()
}

// Ping verifies BigQuery connectivity
func (s *BigQueryService) Ping(ctx context.Context) error {
	q := s.client.Query("SELECT 1")
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("query run: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("job wait: %w", err)
	}
	return status.Err()
}

func (s *BigQueryService) datasets(ctx context.Context) ([]string, error) {
	if s.dataset != "" {
		return []string{s.dataset}, nil
	}
	var out []string
	it := s.client.Datasets(ctx)
	for {
		ds, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list datasets: %w", err)
		}
		out = append(out, ds.DatasetID)
	}
	return out, nil
}

// DescribeSchema lists every table with its columns and row count.
func (s *BigQueryService) DescribeSchema(ctx context.Context) (string, error) {
	datasets, err := s.datasets(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, datasetID := range datasets {
		it := s.client.Dataset(datasetID).Tables(ctx)
		for {
			tbl, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return "", fmt.Errorf("list tables: %w", err)
			}
			meta, err := tbl.Metadata(ctx)
			if err != nil {
				log.Warn().Err(err).Str("table", tbl.TableID).Msg("failed to get table metadata")
				continue
			}
			fmt.Fprintf(&sb, "### %s.%s (%d rows)\n", datasetID, tbl.TableID, meta.NumRows)
			sb.WriteString(SchemaToString(meta.Schema))
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

// Query runs sql. With a cost tracker configured the query is dry-run
// first and refused when it would scan more than the limit.
func (s *BigQueryService) Query(ctx context.Context, sql string) (*RawResult, error) {
	if s.cost != nil {
		dry := s.client.Query(sql)
		dry.DryRun = true
		job, err := dry.Run(ctx)
		if err != nil {
			return nil, fmt.Errorf("dry run: %w", err)
		}
		if stats := job.LastStatus().Statistics; stats != nil {
			if err := s.cost.Check(stats.TotalBytesProcessed); err != nil {
				return nil, err
			}
		}
	}

	start := time.Now()
	job, err := s.client.Query(sql).Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("job wait: %w", err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	var bytesProcessed int64
	if stats := job.LastStatus().Statistics; stats != nil {
		bytesProcessed = stats.TotalBytesProcessed
	}

	it, err := job.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("job read: %w", err)
	}

	res := &RawResult{BytesProcessed: bytesProcessed}
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if res.Columns == nil && it.Schema != nil {
			for _, f := range it.Schema {
				res.Columns = append(res.Columns, f.Name)
			}
		}
		m := make(models.Row, len(row))
		for k, v := range row {
			m[k] = normalizeValue(v)
		}
		res.Rows = append(res.Rows, m)
	}

	s.cost.Record("", sql, bytesProcessed, time.Since(start).Milliseconds())
	return res, nil
}

// SchemaToString formats a BigQuery schema as a human-readable string for LLM context
func SchemaToString(schema bigquery.Schema) string {
	var sb strings.Builder
	for _, f := range schema {
		fmt.Fprintf(&sb, "  %s %s\n", f.Name, f.Type)
	}
	return sb.String()
}
