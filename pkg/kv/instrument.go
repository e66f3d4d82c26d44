package kv

import (
	"context"
	"errors"
	"time"

	"github.com/shashiranjanraj/lister/pkg/metrics"
)

type instrumented struct {
	next   Store
	driver string
}

// Instrument wraps s so every call is counted in the lister_kv_* metrics.
func Instrument(s Store, driver string) Store {
	return &instrumented{next: s, driver: driver}
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "miss"
	default:
		return "error"
	}
}

func (i *instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	v, err := i.next.Get(ctx, key)
	metrics.ObserveKV(i.driver, "get", result(err), start)
	return v, err
}

func (i *instrumented) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := i.next.Set(ctx, key, value)
	metrics.ObserveKV(i.driver, "set", result(err), start)
	return err
}

func (i *instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := i.next.Delete(ctx, key)
	metrics.ObserveKV(i.driver, "delete", result(err), start)
	return err
}

func (i *instrumented) Close() error { return i.next.Close() }
