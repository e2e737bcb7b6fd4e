package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"github.com/cortexai/cortexbi/internal/models"
)

// database/sql driver names.
const (
	DriverSQLServer = "sqlserver"
	DriverSQLite    = "sqlite"
)

// schemaQueries list (table, column, type) triples per driver.
var schemaQueries = map[string]string{
	DriverSQLServer: `SELECT TABLE_SCHEMA + '.' + TABLE_NAME, COLUMN_NAME, DATA_TYPE
		FROM INFORMATION_SCHEMA.COLUMNS
		ORDER BY TABLE_SCHEMA, TABLE_NAME, ORDINAL_POSITION`,
	DriverSQLite: `SELECT m.name, p.name, p.type
		FROM sqlite_master m JOIN pragma_table_info(m.name) p
		WHERE m.type IN ('table', 'view') AND m.name NOT LIKE 'sqlite_%'
		ORDER BY m.name, p.cid`,
}

// SQLDatabaseService runs queries through database/sql. It backs SQL Server
// and SQLite.
type SQLDatabaseService struct {
	db     *sql.DB
	driver string
}

// NewSQLDatabaseService opens and pings dsn with driver.
func NewSQLDatabaseService(ctx context.Context, driver, dsn string) (*SQLDatabaseService, error) {
	if _, ok := schemaQueries[driver]; !ok {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// An in-memory database exists per connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return &SQLDatabaseService{db: db, driver: driver}, nil
}

// NewSQLDatabaseServiceFromDB wraps an already opened handle.
func NewSQLDatabaseServiceFromDB(db *sql.DB, driver string) *SQLDatabaseService {
	return &SQLDatabaseService{db: db, driver: driver}
}

func (s *SQLDatabaseService) Name() string { return s.driver }

func (s *SQLDatabaseService) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLDatabaseService) Close() error { return s.db.Close() }

func (s *SQLDatabaseService) Query(ctx context.Context, query string) (*RawResult, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	res := &RawResult{Columns: columns, Rows: []models.Row{}}
	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make(models.Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return res, nil
}

func (s *SQLDatabaseService) DescribeSchema(ctx context.Context) (string, error) {
	rows, err := s.db.QueryContext(ctx, schemaQueries[s.driver])
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

// formatSchema renders ordered (table, column, type) triples in the same
// layout as SchemaToString.
func formatSchema(triples [][3]string) string {
	var sb strings.Builder
	current := ""
	for _, t := range triples {
		if t[0] != current {
			if current != "" {
				sb.WriteString("\n")
			}
			current = t[0]
			fmt.Fprintf(&sb, "### %s\n", current)
		}
		fmt.Fprintf(&sb, "  %s %s\n", t[1], strings.ToUpper(t[2]))
	}
	return sb.String()
}
