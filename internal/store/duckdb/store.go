package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/duckchat/duckchat/internal/store"
)

// Store wraps a DuckDB database file behind the RowStore and Introspector
// interfaces. One Store is shared by all runs; database/sql owns pooling.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle; used by tests and the loader.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Query(ctx context.Context, sqlText string) ([]string, []map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("query columns: %w", err)
	}

	result := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		record := make(map[string]any, len(columns))
		for i, column := range columns {
			record[column] = normalizeValue(values[i])
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, result, nil
}

func (s *Store) Exec(ctx context.Context, sqlText string) error {
	if _, err := s.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("execute statement: %w", err)
	}
	return nil
}

func (s *Store) TableColumns(ctx context.Context, table string) ([]store.Column, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT column_name, data_type FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position",
		table,
	)
	if err != nil {
		return nil, fmt.Errorf("introspect columns for %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]store.Column, 0)
	for rows.Next() {
		var column store.Column
		if err := rows.Scan(&column.Name, &column.Type); err != nil {
			return nil, fmt.Errorf("scan column metadata: %w", err)
		}
		column.Type = strings.ToUpper(column.Type)
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q does not exist or has no columns", table)
	}
	return columns, nil
}

func (s *Store) TableRowCount(ctx context.Context, table string) (int64, error) {
	var count int64
	query := "SELECT COUNT(*) FROM " + quoteIdent(table)
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rows for %q: %w", table, err)
	}
	return count, nil
}

// normalizeValue maps driver values onto portable scalars. Timestamps become
// RFC 3339 strings and oversized integers become decimal strings; anything the
// switch does not recognize is stringified rather than leaked as a driver type.
func normalizeValue(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case bool, string, int64, float64:
		return typed
	case int:
		return int64(typed)
	case int8:
		return int64(typed)
	case int16:
		return int64(typed)
	case int32:
		return int64(typed)
	case uint8:
		return int64(typed)
	case uint16:
		return int64(typed)
	case uint32:
		return int64(typed)
	case uint64:
		return int64(typed)
	case float32:
		return float64(typed)
	case []byte:
		return string(typed)
	case time.Time:
		return typed.UTC().Format(time.RFC3339)
	case *big.Int:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
