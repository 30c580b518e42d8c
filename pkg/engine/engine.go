// Package engine assembles the running system from a loaded configuration:
// graph store, session manager, bridge, event publisher, and the background
// mediation pool. Commands construct one Engine and close it on shutdown.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/meshmindco/meshmind/pkg/bridge"
	"github.com/meshmindco/meshmind/pkg/config"
	"github.com/meshmindco/meshmind/pkg/eventstream"
	kafkastream "github.com/meshmindco/meshmind/pkg/eventstream/kafka"
	streamnop "github.com/meshmindco/meshmind/pkg/eventstream/nop"
	"github.com/meshmindco/meshmind/pkg/graph"
	"github.com/meshmindco/meshmind/pkg/graph/memstore"
	"github.com/meshmindco/meshmind/pkg/graph/pgstore"
	"github.com/meshmindco/meshmind/pkg/graph/sqlitestore"
	"github.com/meshmindco/meshmind/pkg/llm/backend"
	"github.com/meshmindco/meshmind/pkg/llm/router"
	"github.com/meshmindco/meshmind/pkg/session"
	"github.com/meshmindco/meshmind/pkg/synergy"
	"github.com/meshmindco/meshmind/pkg/worker"
)

// Engine bundles the composed subsystems.
type Engine struct {
	Manager     *session.Manager
	Bridge      *bridge.Bridge
	Coordinator *synergy.Coordinator
	Publisher   eventstream.Publisher
	Pool        *worker.Pool
	Store       graph.Store

	logger *zap.Logger
}

// New builds an engine from the configuration. Every provider listed in the
// config is registered with the manager's router.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := newStore(ctx, cfg.Graph)
	if err != nil {
		return nil, err
	}

	publisher, err := newPublisher(cfg.EventStream, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	coordinator := synergy.NewCoordinator(logger)
	manager := session.NewManager(session.Config{
		Store:        store,
		Coordinator:  coordinator,
		Publisher:    publisher,
		Logger:       logger,
		ActiveWindow: time.Duration(cfg.Session.ActiveWindowSeconds) * time.Second,
	})

	for name, p := range cfg.Providers {
		manager.RegisterProvider(name, session.ProviderConfig{
			Profile: router.CapabilityProfile{
				Name:               name,
				SupportsChat:       true,
				SupportsStreaming:  p.Streaming,
				SupportsEmbeddings: p.Embeddings,
				SupportsFunctions:  p.Functions,
				CostPerToken:       p.CostPerToken,
				MaxContextLength:   p.MaxContextLength,
			},
			Client: backend.ClientConfig{
				Provider: name,
				Model:    p.Model,
				APIKey:   p.APIKey,
				BaseURL:  p.BaseURL,
			},
		})
	}

	b := bridge.New(bridge.Config{
		Store:  store,
		Logger: logger,
	})

	pool, err := worker.NewPool(&worker.Config{
		Manager:   manager,
		Bridge:    b,
		Publisher: publisher,
		Logger:    logger,
	})
	if err != nil {
		publisher.Close()
		store.Close()
		return nil, err
	}

	return &Engine{
		Manager:     manager,
		Bridge:      b,
		Coordinator: coordinator,
		Publisher:   publisher,
		Pool:        pool,
		Store:       store,
		logger:      logger,
	}, nil
}

// Close drains the worker pool and releases the publisher and store.
func (e *Engine) Close() {
	e.Pool.Close()
	if err := e.Publisher.Close(); err != nil {
		e.logger.Warn("closing publisher failed", zap.Error(err))
	}
	if err := e.Store.Close(); err != nil {
		e.logger.Warn("closing graph store failed", zap.Error(err))
	}
}

func newStore(ctx context.Context, cfg config.GraphConfig) (graph.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return memstore.New(), nil
	case "sqlite":
		return sqlitestore.New(cfg.SQLitePath)
	case "postgres":
		return pgstore.New(ctx, cfg.PostgresURL)
	default:
		return nil, fmt.Errorf("unknown graph backend %q", cfg.Backend)
	}
}

func newPublisher(cfg config.EventStreamConfig, logger *zap.Logger) (eventstream.Publisher, error) {
	if cfg.Provider == "kafka" {
		return kafkastream.New(kafkastream.Config{
			Brokers: cfg.Brokers,
			Topic:   cfg.Topic,
			Logger:  logger,
		})
	}
	return streamnop.New(), nil
}
