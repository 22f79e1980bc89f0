// Package etl builds the cleaned service table from a raw NYC 311 CSV
// export, either a local file or an s3:// object.
package etl

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/duckchat/duckchat/internal/storage"
)

// Database is the slice of the row store the loader needs.
type Database interface {
	Exec(ctx context.Context, sqlText string) error
	Query(ctx context.Context, sqlText string) ([]string, []map[string]any, error)
}

// Invalidator drops a cached schema snapshot after a reload.
type Invalidator interface {
	Invalidate()
}

type Loader struct {
	DB      Database
	Objects storage.ObjectStore // required for s3:// sources
	Schema  Invalidator         // optional
	Logger  *slog.Logger
	Table   string
}

type Summary struct {
	Source      string        `json:"source"`
	Table       string        `json:"table"`
	ColumnCount int           `json:"column_count"`
	RowCount    int64         `json:"row_count"`
	Duration    time.Duration `json:"duration"`
}

// Load replaces the raw and cleaned tables from the given source. The raw
// table keeps every CSV column as VARCHAR; the cleaned table adds typed
// timestamps, a close-time delta, a geocoded flag, and a padded zip code.
func (l *Loader) Load(ctx context.Context, source string) (Summary, error) {
	start := time.Now()

	localPath, cleanup, err := l.materialize(ctx, source)
	if err != nil {
		return Summary{}, err
	}
	defer cleanup()

	headers, err := readHeader(localPath)
	if err != nil {
		return Summary{}, fmt.Errorf("read CSV header: %w", err)
	}
	roles := detectColumns(headers)
	l.logger().Info("detected source columns",
		"columns", len(headers),
		"created_date", roles.CreatedDate,
		"closed_date", roles.ClosedDate,
		"zip", roles.IncidentZip,
		"latitude", roles.Latitude,
		"longitude", roles.Longitude,
	)

	rawTable := "raw_" + l.Table
	for _, table := range []string{rawTable, l.Table} {
		if err := l.DB.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(table))); err != nil {
			return Summary{}, fmt.Errorf("drop table %s: %w", table, err)
		}
	}

	loadSQL := fmt.Sprintf(
		"CREATE TABLE %s AS SELECT * FROM read_csv_auto(%s, header=true, all_varchar=true)",
		quoteIdent(rawTable), quoteLiteral(localPath),
	)
	if err := l.DB.Exec(ctx, loadSQL); err != nil {
		return Summary{}, fmt.Errorf("load raw CSV: %w", err)
	}

	cleanSQL := fmt.Sprintf("CREATE TABLE %s AS SELECT %s FROM %s",
		quoteIdent(l.Table), buildCleanedSelect(headers, roles), quoteIdent(rawTable))
	if err := l.DB.Exec(ctx, cleanSQL); err != nil {
		return Summary{}, fmt.Errorf("create cleaned table: %w", err)
	}

	rowCount, err := l.countRows(ctx)
	if err != nil {
		return Summary{}, err
	}

	if l.Schema != nil {
		l.Schema.Invalidate()
	}

	summary := Summary{
		Source:      source,
		Table:       l.Table,
		ColumnCount: len(headers),
		RowCount:    rowCount,
		Duration:    time.Since(start),
	}
	l.logger().Info("dataset load complete",
		"table", summary.Table, "rows", summary.RowCount, "duration", summary.Duration)
	return summary, nil
}

// materialize returns a local path for the source, downloading s3://
// objects to a temporary file first.
func (l *Loader) materialize(ctx context.Context, source string) (string, func(), error) {
	noop := func() {}
	if !storage.IsS3URI(source) {
		if _, err := os.Stat(source); err != nil {
			return "", noop, fmt.Errorf("source file %q: %w", source, err)
		}
		return source, noop, nil
	}

	if l.Objects == nil {
		return "", noop, fmt.Errorf("s3 source %q requires an object store", source)
	}
	_, key, err := storage.ParseS3URI(source)
	if err != nil {
		return "", noop, err
	}

	body, err := l.Objects.Get(ctx, key)
	if err != nil {
		return "", noop, fmt.Errorf("fetch source %q: %w", source, err)
	}
	defer body.Close()

	tmp, err := os.CreateTemp("", "duckchat-source-*"+filepath.Ext(key))
	if err != nil {
		return "", noop, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	written, err := io.Copy(tmp, body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		cleanup()
		return "", noop, fmt.Errorf("download source %q: %w", source, err)
	}
	l.logger().Info("downloaded s3 source", "key", key, "bytes", written)
	return tmp.Name(), cleanup, nil
}

func (l *Loader) countRows(ctx context.Context) (int64, error) {
	_, rows, err := l.DB.Query(ctx, fmt.Sprintf("SELECT COUNT(*) AS row_count FROM %s", quoteIdent(l.Table)))
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	if len(rows) != 1 {
		return 0, fmt.Errorf("count rows: expected one row, got %d", len(rows))
	}
	count, ok := rows[0]["row_count"].(int64)
	if !ok {
		return 0, fmt.Errorf("count rows: unexpected value %v", rows[0]["row_count"])
	}
	return count, nil
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("CSV has no columns")
	}
	return headers, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
