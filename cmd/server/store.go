package main

import (
	"context"
	"fmt"

	"homelink/auth"
	"homelink/internal/config"
	"homelink/internal/db"
	"homelink/internal/engine"
	"homelink/internal/memstore"
	"homelink/internal/queue"
	"homelink/internal/registry"
	"homelink/internal/scheduler"
)

// store is everything the services need from persistence; both drivers implement it
type store interface {
	auth.Store
	registry.Store
	queue.Store
	engine.Store
	engine.LinkStore
	scheduler.CommandPruner
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (store, func(context.Context) error, func(), error) {
	switch cfg.Driver {
	case "memory":
		return memstore.New(), nil, func() {}, nil
	case "postgres":
		d, err := db.NewDB(ctx, cfg.URL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := d.Migrate(ctx); err != nil {
			d.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return d, func(ctx context.Context) error { return d.Pool().Ping(ctx) }, d.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
