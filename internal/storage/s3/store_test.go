package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/duckchat/duckchat/internal/storage"
)

func TestGetUsesPrefixAndNormalizedKey(t *testing.T) {
	fake := &fakeClient{}
	store, err := NewWithClient("datasets", "duckchat/prod", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	body, err := store.Get(context.Background(), "/raw/311_requests.csv")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer body.Close()
	if fake.lastBucket != "datasets" {
		t.Fatalf("bucket = %q", fake.lastBucket)
	}
	if fake.lastKey != "duckchat/prod/raw/311_requests.csv" {
		t.Fatalf("key = %q", fake.lastKey)
	}
}

func TestGetRejectsPathTraversal(t *testing.T) {
	store, err := NewWithClient("datasets", "", &fakeClient{})
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if _, err := store.Get(context.Background(), "../secrets.csv"); err == nil {
		t.Fatal("expected path traversal validation error")
	}
}

func TestGetMapsMissingObject(t *testing.T) {
	store, err := NewWithClient("datasets", "", &fakeClient{getErr: storage.ErrObjectNotFound})
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if _, err := store.Get(context.Background(), "missing.csv"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() error = %v, want ErrObjectNotFound", err)
	}
}

func TestPutPublishesArtifact(t *testing.T) {
	fake := &fakeClient{}
	store, err := NewWithClient("datasets", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	info, err := store.Put(context.Background(), "artifacts/nyc_311/db.duckdb", bytes.NewBufferString("abc"), 3, "application/octet-stream")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if info.Size != 3 {
		t.Fatalf("size = %d", info.Size)
	}
	if fake.lastKey != "artifacts/nyc_311/db.duckdb" {
		t.Fatalf("key = %q", fake.lastKey)
	}
}

func TestParseEndpoint(t *testing.T) {
	endpoint, secure, err := parseEndpoint("https://minio.example.com", false)
	if err != nil {
		t.Fatalf("parseEndpoint() error = %v", err)
	}
	if endpoint != "minio.example.com" || !secure {
		t.Fatalf("endpoint/secure = %q/%v", endpoint, secure)
	}

	endpoint, secure, err = parseEndpoint("localhost:9000", false)
	if err != nil {
		t.Fatalf("parseEndpoint() error = %v", err)
	}
	if endpoint != "localhost:9000" || secure {
		t.Fatalf("endpoint/secure = %q/%v", endpoint, secure)
	}
}

type fakeClient struct {
	lastBucket string
	lastKey    string
	getErr     error
}

func (f *fakeClient) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	f.lastBucket = bucket
	f.lastKey = key
	if f.getErr != nil {
		return nil, f.getErr
	}
	return io.NopCloser(strings.NewReader("col_a,col_b\n1,2\n")), nil
}

func (f *fakeClient) Stat(_ context.Context, bucket, key string) (storage.ObjectInfo, error) {
	f.lastBucket = bucket
	f.lastKey = key
	return storage.ObjectInfo{Key: key, Size: 16, LastModified: time.Now().UTC()}, nil
}

func (f *fakeClient) Put(_ context.Context, bucket, key string, body io.Reader, size int64, _ string) (storage.ObjectInfo, error) {
	f.lastBucket = bucket
	f.lastKey = key
	_, _ = io.Copy(io.Discard, body)
	return storage.ObjectInfo{Key: key, Size: size, ETag: "etag-1"}, nil
}
