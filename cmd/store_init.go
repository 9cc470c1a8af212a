package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-cli/internal/config"
	"github.com/sells-group/invoice-cli/internal/pipeline"
	"github.com/sells-group/invoice-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "invoice.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

func (e *pipelineEnv) Close() {
	_ = e.Store.Close()
}

func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	policy := config.DefaultPolicy()
	if cfg.Pipeline.PolicyFile != "" {
		policy, err = config.LoadPolicy(cfg.Pipeline.PolicyFile)
		if err != nil {
			st.Close()
			return nil, eris.Wrap(err, "load vendor policy")
		}
	}

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(cfg, policy, st, nil),
	}, nil
}
