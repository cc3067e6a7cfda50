// Package objectstore stores volume snapshots as opaque objects in buckets.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Object describes a stored object without its contents.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

type ObjectNotFoundErr struct {
	Bucket string
	Key    string
}

func (err *ObjectNotFoundErr) Error() string {
	return fmt.Sprintf(
		"object not found (bucket=%s) (key=%s)",
		err.Bucket,
		err.Key,
	)
}

type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, data io.ReadSeeker) error
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]Object, error)
	DeleteObject(ctx context.Context, bucket, key string) error
}
