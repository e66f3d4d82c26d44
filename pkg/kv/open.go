package kv

import (
	"context"
	"fmt"

	"github.com/shashiranjanraj/lister/config"
	"github.com/shashiranjanraj/lister/pkg/database"
	"github.com/shashiranjanraj/lister/pkg/storage"
)

// Open builds the Store selected by KV_DRIVER from the config package.
// The disk driver requires storage.Connect to have run.
func Open(ctx context.Context) (Store, error) {
	driver := config.KVDriver()

	var (
		s   Store
		err error
	)
	switch driver {
	case "memory":
		s = NewMemory()
	case "disk":
		s = NewDisk(storage.Default(), "kv")
	case "redis":
		s, err = DialRedis(ctx, config.RedisAddr(), config.RedisPassword(), "lister:")
	case "sql":
		if database.DB == nil {
			if err = database.Connect(); err != nil {
				break
			}
		}
		s = NewSQL(database.DB)
	case "mongo":
		s, err = DialMongo(ctx, config.MongoURI(), config.MongoDatabase(), "kv_records")
	default:
		err = fmt.Errorf("unsupported KV_DRIVER %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("kv: open %s: %w", driver, err)
	}
	return Instrument(s, driver), nil
}
