// Package kv is the key-value adapter under every persisted record.
//
// Values are opaque bytes (JSON by convention, see GetJSON/SetJSON). Keys
// are colon-separated logical names such as "project:{id}". Drivers:
//
//	memory  process-local map (default, tests)
//	disk    one JSON file per key on a pkg/storage disk (local or S3)
//	redis   go-redis
//	sql     gorm table kv_records (sqlite, postgres, mysql, sqlserver)
//	mongo   one document per key
//
// Atomic read-modify-write is not part of the contract; callers that need
// it serialise on a pkg/keylock key.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("kv: key not found")

// Store is implemented by every driver.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete is idempotent.
	Delete(ctx context.Context, key string) error
	Close() error
}

// GetJSON loads key and decodes it into dest.
func GetJSON(ctx context.Context, s Store, key string, dest any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("kv: decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}
