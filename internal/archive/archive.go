// Package archive retains completed outputs in object storage for a
// bounded period. Archival is best-effort: an unavailable archive never
// fails a job. A retention sweep removes objects past their retain
// window.
package archive

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes one archived object to the retention sweep.
type ObjectInfo struct {
	Key          string
	LastModified time.Time
}

type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string, size int64) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}
