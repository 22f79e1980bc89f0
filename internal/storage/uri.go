package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var keyComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// IsS3URI reports whether source names an object in a bucket rather than
// a local file.
func IsS3URI(source string) bool {
	return strings.HasPrefix(source, "s3://")
}

// ParseS3URI splits s3://bucket/key into its bucket and object key.
func ParseS3URI(source string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(source, "s3://")
	if trimmed == source {
		return "", "", fmt.Errorf("not an s3 URI: %q", source)
	}
	bucket, key, found := strings.Cut(trimmed, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 URI must be s3://bucket/key, got %q", source)
	}
	return bucket, key, nil
}

// BuildArtifactKey names a published database file under a dated prefix,
// e.g. artifacts/nyc_311/2024-03-01/nyc_311-20240301T123000Z.duckdb.
func BuildArtifactKey(table string, builtAt time.Time) (string, error) {
	if !keyComponentPattern.MatchString(table) {
		return "", fmt.Errorf("invalid table name: %q", table)
	}
	ts := builtAt.UTC()
	return path.Join(
		"artifacts",
		table,
		ts.Format("2006-01-02"),
		fmt.Sprintf("%s-%s.duckdb", table, ts.Format("20060102T150405Z")),
	), nil
}
