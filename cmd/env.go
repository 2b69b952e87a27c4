package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tcsync/internal/importer"
	"github.com/sells-group/tcsync/internal/linking"
	"github.com/sells-group/tcsync/internal/model"
	"github.com/sells-group/tcsync/internal/reconcile"
	"github.com/sells-group/tcsync/internal/resilience"
	"github.com/sells-group/tcsync/internal/store"
	"github.com/sells-group/tcsync/pkg/notion"
	"github.com/sells-group/tcsync/pkg/xray"
)

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "tcsync.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// initXray builds the test-management client from config.
func initXray() xray.Client {
	x := cfg.Xray
	return xray.NewClient(x.BaseURL, x.Token,
		xray.WithTimeout(time.Duration(x.TimeoutSecs)*time.Second),
		xray.WithRateLimit(x.RateLimit),
		xray.WithRetry(resilience.FromConfig(x.Retry.MaxAttempts, x.Retry.InitialBackoffMs, x.Retry.MaxBackoffMs)),
		xray.WithCircuitBreaker(resilience.FromCircuitConfig(x.Circuit.FailureThreshold, x.Circuit.ResetTimeoutSecs)),
	)
}

// initNotion returns a Notion client, or nil when no token is configured.
func initNotion() notion.Client {
	if cfg.Notion.Token == "" {
		return nil
	}
	r := cfg.Notion.Retry
	retry := resilience.FromConfig(r.MaxAttempts, r.InitialBackoffMs, r.MaxBackoffMs)
	retry.OnRetry = resilience.RetryLogger("notion")
	return notion.NewClient(cfg.Notion.Token, notion.WithRetry(retry))
}

// newCoordinator wires the import engine around one client and store.
func newCoordinator(client xray.Client, st store.Store, observers ...func(model.ProgressState)) *importer.Coordinator {
	orch := linking.NewOrchestrator(client, reconcile.NewValidator(client))
	opts := []importer.Option{
		importer.WithStore(st),
		importer.WithDefaultProject(cfg.Xray.ProjectKey),
	}
	for _, fn := range observers {
		opts = append(opts, importer.WithProgress(fn))
	}
	return importer.NewCoordinator(client, orch, opts...)
}
