package kv

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/shashiranjanraj/lister/pkg/storage"
)

// Disk stores each key as a JSON file on a storage disk. "project:abc"
// under prefix "kv" becomes "kv/project/abc.json".
type Disk struct {
	disk   storage.Disk
	prefix string
}

func NewDisk(d storage.Disk, prefix string) *Disk {
	return &Disk{disk: d, prefix: strings.Trim(prefix, "/")}
}

func (d *Disk) path(key string) string {
	parts := strings.Split(key, ":")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return path.Join(d.prefix, path.Join(parts...)) + ".json"
}

func (d *Disk) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := d.disk.Get(ctx, d.path(key))
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("kv/disk: get %s: %w", key, err)
	}
	return data, nil
}

func (d *Disk) Set(ctx context.Context, key string, value []byte) error {
	if err := d.disk.Put(ctx, d.path(key), value); err != nil {
		return fmt.Errorf("kv/disk: set %s: %w", key, err)
	}
	return nil
}

func (d *Disk) Delete(ctx context.Context, key string) error {
	if err := d.disk.Delete(ctx, d.path(key)); err != nil {
		return fmt.Errorf("kv/disk: delete %s: %w", key, err)
	}
	return nil
}

func (d *Disk) Close() error { return nil }
