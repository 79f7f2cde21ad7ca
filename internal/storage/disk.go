// Package storage stores uploaded product images.
//
// Two drivers are available:
//   - "local": files under a directory served by the API at a public prefix
//   - "s3": any S3-compatible bucket (AWS S3, MinIO, R2)
package storage

import (
	"context"
	"fmt"
	"io"
)

// Disk is the interface every storage driver implements.
type Disk interface {
	// PutStream writes r to path, creating parent directories as needed.
	PutStream(ctx context.Context, path string, r io.Reader, contentType string) error
	// Delete removes the file at path.
	Delete(ctx context.Context, path string) error
	// URL returns the public URL for path.
	URL(path string) string
}

// Options selects and configures a driver.
type Options struct {
	Driver string // local or s3

	LocalRoot string
	PublicURL string

	S3Bucket   string
	S3Region   string
	S3Key      string
	S3Secret   string
	S3Endpoint string // leave empty for real AWS
	S3URL      string
}

// New builds the configured driver.
func New(ctx context.Context, opts Options) (Disk, error) {
	switch opts.Driver {
	case "", "local":
		return NewLocalDisk(opts.LocalRoot, opts.PublicURL)
	case "s3":
		return NewS3Disk(ctx, opts)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", opts.Driver)
	}
}
