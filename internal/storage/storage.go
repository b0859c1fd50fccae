package storage

import (
	"context"
	"time"
)

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *time.Time
}

// Service persists todo snapshots in remote object storage.
type Service interface {
	// PutJSON uploads payload as a JSON object and returns its s3:// location.
	PutJSON(ctx context.Context, bucket, key string, payload any) (string, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	DeletePrefix(ctx context.Context, bucket, prefix string) error
}
