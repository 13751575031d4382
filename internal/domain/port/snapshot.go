package port

import (
	"context"
	"io"
)

// SnapshotStore хранилище снимков с разметкой (диск или S3)
type SnapshotStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
