package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"
)

// ObjectStore is the subset of S3 the archive writes through.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

// Archive keeps advisory run reports as JSON objects at
// <prefix>/<yyyy-mm-dd>/<run id>.json.
type Archive struct {
	objects ObjectStore
	bucket  string
	prefix  string
}

// NewArchive writes into bucket under prefix (default "reports").
func NewArchive(objects ObjectStore, bucket, prefix string) *Archive {
	if prefix == "" {
		prefix = "reports"
	}
	return &Archive{objects: objects, bucket: bucket, prefix: prefix}
}

// ReportKey returns the object key for a run.
func (a *Archive) ReportKey(runID string, at time.Time) string {
	return path.Join(a.prefix, at.UTC().Format("2006-01-02"), runID+".json")
}

// WriteReport stores report as JSON and returns its key.
func (a *Archive) WriteReport(ctx context.Context, runID string, at time.Time, report any) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report %s: %w", runID, err)
	}
	key := a.ReportKey(runID, at)
	if err := a.objects.Put(ctx, a.bucket, key, bytes.NewReader(data), "application/json"); err != nil {
		return "", fmt.Errorf("failed to upload report %s: %w", key, err)
	}
	return key, nil
}

// ReadReport decodes the report stored under key into v.
func (a *Archive) ReadReport(ctx context.Context, key string, v any) error {
	body, err := a.objects.Get(ctx, a.bucket, key)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode report %s: %w", key, err)
	}
	return nil
}

// ListReports returns the report keys written on day.
func (a *Archive) ListReports(ctx context.Context, day time.Time) ([]string, error) {
	return a.objects.List(ctx, a.bucket, path.Join(a.prefix, day.UTC().Format("2006-01-02"))+"/")
}
