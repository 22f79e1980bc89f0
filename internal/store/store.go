package store

import "context"

type Column struct {
	Name string
	Type string
}

// RowStore executes read queries and returns columns in store order plus
// row mappings holding only portable scalars (int64, float64, string, bool, nil).
type RowStore interface {
	Query(ctx context.Context, sqlText string) (columns []string, rows []map[string]any, err error)
}

// Introspector exposes the metadata the schema provider needs.
type Introspector interface {
	TableColumns(ctx context.Context, table string) ([]Column, error)
	TableRowCount(ctx context.Context, table string) (int64, error)
}
