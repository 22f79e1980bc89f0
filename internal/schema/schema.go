// Package schema owns the cached metadata snapshot of the target relation.
// The cache is the one piece of state shared by concurrent runs, so access is
// guarded: population happens at most once per invalidation.
package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/duckchat/duckchat/internal/observability"
	"github.com/duckchat/duckchat/internal/store"
)

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Snapshot struct {
	Table     string   `json:"table"`
	TotalRows int64    `json:"total_rows"`
	Columns   []Column `json:"columns"`
}

// Provider supplies the schema snapshot a workflow run captures at entry.
type Provider interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

type Cache struct {
	introspector store.Introspector
	table        string
	logger       *slog.Logger

	mu     sync.Mutex
	cached *Snapshot
}

func NewCache(introspector store.Introspector, table string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{introspector: introspector, table: table, logger: logger}
}

func (c *Cache) Snapshot(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil {
		return *c.cached, nil
	}

	snapshot, err := c.introspect(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	c.cached = &snapshot
	observability.IncrementSchemaRefresh()
	c.logger.Info("schema snapshot populated",
		slog.String("table", snapshot.Table),
		slog.Int("columns", len(snapshot.Columns)),
		slog.Int64("total_rows", snapshot.TotalRows),
	)
	return snapshot, nil
}

// Invalidate drops the cached snapshot; the next Snapshot call re-introspects.
// Called after dataset reloads.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
}

func (c *Cache) introspect(ctx context.Context) (Snapshot, error) {
	columns, err := c.introspector.TableColumns(ctx, c.table)
	if err != nil {
		return Snapshot{}, fmt.Errorf("introspect schema: %w", err)
	}
	totalRows, err := c.introspector.TableRowCount(ctx, c.table)
	if err != nil {
		return Snapshot{}, fmt.Errorf("count table rows: %w", err)
	}

	snapshot := Snapshot{Table: c.table, TotalRows: totalRows, Columns: make([]Column, 0, len(columns))}
	for _, column := range columns {
		snapshot.Columns = append(snapshot.Columns, Column{Name: column.Name, Type: column.Type})
	}
	return snapshot, nil
}
