package storage

import (
	"testing"
	"time"
)

func TestParseS3URI(t *testing.T) {
	bucket, key, err := ParseS3URI("s3://duckchat/raw/311_requests.csv")
	if err != nil {
		t.Fatalf("ParseS3URI() error = %v", err)
	}
	if bucket != "duckchat" || key != "raw/311_requests.csv" {
		t.Fatalf("bucket/key = %q/%q", bucket, key)
	}
}

func TestParseS3URIRejectsMalformed(t *testing.T) {
	for _, source := range []string{"s3://", "s3://bucket", "s3://bucket/", "/local/file.csv", "https://example.com/x.csv"} {
		if _, _, err := ParseS3URI(source); err == nil {
			t.Errorf("ParseS3URI(%q) expected error", source)
		}
	}
}

func TestIsS3URI(t *testing.T) {
	if !IsS3URI("s3://bucket/key.csv") {
		t.Fatal("s3 URI not detected")
	}
	if IsS3URI("data/311_requests.csv") {
		t.Fatal("local path detected as s3 URI")
	}
}

func TestBuildArtifactKey(t *testing.T) {
	builtAt := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	key, err := BuildArtifactKey("nyc_311", builtAt)
	if err != nil {
		t.Fatalf("BuildArtifactKey() error = %v", err)
	}
	want := "artifacts/nyc_311/2024-03-01/nyc_311-20240301T123000Z.duckdb"
	if key != want {
		t.Fatalf("key = %q, want %q", key, want)
	}
}

func TestBuildArtifactKeyValidatesTable(t *testing.T) {
	if _, err := BuildArtifactKey("../escape", time.Now()); err == nil {
		t.Fatal("expected invalid table name error")
	}
}
