package object

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a bucket/key pair does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore reads and writes objects addressed by bucket and key.
type ObjectStore interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	SaveWithKey(ctx context.Context, bucket, key, contentType string, r io.Reader) (int64, error)
}
