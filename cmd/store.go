package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pantrybase/insight-cli/internal/catalog"
	"github.com/pantrybase/insight-cli/internal/notifier"
	"github.com/pantrybase/insight-cli/internal/store"
)

// initStore opens the configured database backend. The caller owns
// Close and Migrate.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: int32(cfg.Store.MaxConns),
			MinConns: int32(cfg.Store.MinConns),
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initCatalog() catalog.Client {
	return catalog.NewClient(cfg.Catalog.Username, cfg.Catalog.Password,
		catalog.WithBaseDomain(cfg.Catalog.RootDomain),
		catalog.WithRateLimit(cfg.Catalog.RateLimitRPS, 2),
		catalog.WithTimeout(time.Duration(cfg.Catalog.TimeoutSeconds)*time.Second),
	)
}

func initNotifier() notifier.Notifier {
	return notifier.New(notifier.Config{
		SlackToken:    cfg.Notify.Slack.Token,
		SlackChannel:  cfg.Notify.Slack.Channel,
		ModerationURL: cfg.Notify.Moderation.ServiceURL,
		BaseDomain:    cfg.Catalog.RootDomain,
	})
}
