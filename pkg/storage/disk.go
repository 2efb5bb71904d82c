// Package storage archives operational artefacts (ledger backfill reports)
// on a local directory or an S3-compatible bucket.
//
//	storage.Connect()
//	storage.Default().Put(ctx, "reports/ledger-backfill/run.json", data, "application/json")
//	storage.Use("s3").URL("reports/ledger-backfill/run.json")
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Disk is the filesystem driver interface.
type Disk interface {
	// Put writes content to path, creating parent directories as needed.
	Put(ctx context.Context, path string, content []byte, contentType string) error
	Get(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	// Files lists object paths under directory, recursively, sorted.
	Files(ctx context.Context, directory string) ([]string, error)
	// Delete removes a file. Returns nil if the file did not exist.
	Delete(ctx context.Context, path string) error
	// URL returns the public URL for path.
	URL(path string) string
}
