// Package storage is the file abstraction used for uploaded listing images,
// exported listing documents and the disk-backed KV driver.
//
// Two drivers are available:
//   - "local": a directory on the local filesystem (default)
//   - "s3": S3-compatible object storage (AWS S3, MinIO, R2, Spaces)
//
//	storage.Connect(ctx)
//	disk := storage.Default()
//	_ = disk.Put(ctx, "uploads/cover.jpg", data)
//	url := disk.URL("uploads/cover.jpg")
package storage

import (
	"context"
	"errors"
)

// ErrNotExist is returned (wrapped) by Get when path has no content.
var ErrNotExist = errors.New("storage: file does not exist")

// Disk is the filesystem driver interface.
type Disk interface {
	// Put writes content to path, replacing anything already there.
	Put(ctx context.Context, path string, content []byte) error

	// Get returns the full content of the file at path.
	Get(ctx context.Context, path string) ([]byte, error)

	// Exists reports whether a file exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes a file. Returns nil if the file did not exist.
	Delete(ctx context.Context, path string) error

	// Files lists every file below directory, recursively, as slash paths
	// relative to the disk root.
	Files(ctx context.Context, directory string) ([]string, error)

	// URL returns the public URL for path.
	URL(path string) string
}
