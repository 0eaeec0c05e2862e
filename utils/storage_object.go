package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/housing_backend/config"
	"cloud.google.com/go/storage"
)

const gcsScheme = "gs://"

// SplitGCSLocation splits "gs://bucket/object" into its bucket and object key.
func SplitGCSLocation(location string) (bucket string, object string, ok bool) {
	location = strings.TrimSpace(location)
	if !strings.HasPrefix(location, gcsScheme) {
		return "", "", false
	}
	parts := strings.SplitN(strings.TrimPrefix(location, gcsScheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	// Basic hardening: reject path traversal.
	if strings.Contains(parts[1], "..") {
		return "", "", false
	}
	return parts[0], parts[1], true
}

type objectReader struct {
	io.ReadCloser
	client *storage.Client
}

func (r *objectReader) Close() error {
	err := r.ReadCloser.Close()
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// OpenObject opens a GCS object ("gs://bucket/object") or a local file for reading.
// A missing object or file is reported as ErrorRecordNotFound.
func OpenObject(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, object, ok := SplitGCSLocation(location)
	if !ok {
		if strings.HasPrefix(location, gcsScheme) {
			return nil, fmt.Errorf("invalid object location %q", location)
		}
		f, err := os.Open(location)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrorRecordNotFound, location)
		}
		return f, err
	}

	client, err := config.GetStorageClient(ctx)
	if err != nil {
		return nil, err
	}
	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		_ = client.Close()
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrorRecordNotFound, location)
		}
		return nil, err
	}
	return &objectReader{ReadCloser: rc, client: client}, nil
}

// WriteObject stores data in a GCS object or a local file, depending on the location.
func WriteObject(ctx context.Context, location string, data []byte, contentType string) error {
	bucket, object, ok := SplitGCSLocation(location)
	if !ok {
		if strings.HasPrefix(location, gcsScheme) {
			return fmt.Errorf("invalid object location %q", location)
		}
		return os.WriteFile(location, data, 0o644)
	}

	client, err := config.GetStorageClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	wc := client.Bucket(bucket).Object(object).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to upload bytes to Google Cloud Storage: %v", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %v", err)
	}
	return nil
}
