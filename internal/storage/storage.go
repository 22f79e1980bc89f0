// Package storage abstracts the object store that holds dataset sources
// and published database artifacts.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// ObjectStore is the surface the dataset loader needs: fetch a source
// object, check it exists before a long load, and publish the built
// database file back to the bucket.
type ObjectStore interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (ObjectInfo, error)
}
