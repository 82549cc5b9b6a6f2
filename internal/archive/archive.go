// Package archive writes raw Fudo payloads to GCS so any fetch can be
// replayed through the analytics pipeline without hitting the API again.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// GCS adapts the package functions to the pipeline's Archiver interface.
type GCS struct{}

func (GCS) StorePayload(ctx context.Context, bucket string, payload []byte, fetchedAt time.Time) (string, error) {
	return StorePayload(ctx, bucket, payload, fetchedAt)
}

// StorePayload uploads a raw JSON payload under a date-partitioned object
// name and returns its gs:// URI. It assumes Application Default Credentials
// are configured.
func StorePayload(ctx context.Context, bucket string, payload []byte, fetchedAt time.Time) (string, error) {
	objectName := fmt.Sprintf("raw/%s/%s.json", fetchedAt.UTC().Format("2006/01/02"), uuid.New().String())

	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("StorePayload: create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := io.Copy(w, bytes.NewReader(payload)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("StorePayload: write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("StorePayload: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", bucket, objectName), nil
}

// FetchPayload downloads an archived payload by its gs:// URI.
func FetchPayload(ctx context.Context, gcsURI string) ([]byte, error) {
	bucket, object, err := SplitURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("FetchPayload: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchPayload: create storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchPayload: read object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("FetchPayload: read bytes: %w", err)
	}
	return data, nil
}

// SplitURI splits a gs://bucket/object URI into its parts.
func SplitURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}
