// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/cartographus/internal/api"
	"github.com/tomtom215/cartographus/internal/autoapply"
	"github.com/tomtom215/cartographus/internal/config"
	"github.com/tomtom215/cartographus/internal/configstore"
	"github.com/tomtom215/cartographus/internal/database"
	"github.com/tomtom215/cartographus/internal/edition"
	"github.com/tomtom215/cartographus/internal/eventbus"
	"github.com/tomtom215/cartographus/internal/imaging"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/mediaserver"
	"github.com/tomtom215/cartographus/internal/providers"
	"github.com/tomtom215/cartographus/internal/scan"
	"github.com/tomtom215/cartographus/internal/scheduler"
	"github.com/tomtom215/cartographus/internal/supervisor"
	"github.com/tomtom215/cartographus/internal/supervisor/services"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: cfg.Logging.Timestamp,
	})
	logging.Info().Msg("starting cartographus")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing database")
		}
	}()
	logging.Info().Str("path", cfg.Database.Path).Msg("database ready")

	configs, err := configstore.New(db, cfg.Security.SecretKey)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize config store")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := newMediaServerClient(ctx, configs)
	if err != nil {
		logging.Warn().Err(err).Msg("media server not yet configured; scans will fail until it is")
		client = mediaserver.New("", "")
	}

	aggregator, err := newAggregator(ctx, configs)
	if err != nil {
		logging.Warn().Err(err).Msg("failed to load provider credentials; artwork suggestions will be empty")
	}

	editionEngine := edition.NewEngine(client, db)
	scanEngine := scan.New(db, client, client, imaging.Decode, editionEngine, aggregator)
	autoApplyEngine := autoapply.New(db, client)

	if cfg.EventBus.NATSEnabled {
		wireEventBusMirror(scanEngine.EventBus(), cfg.EventBus)
		wireEventBusMirror(autoApplyEngine.EventBus(), cfg.EventBus)
	}

	sched := scheduler.New(db, scanEngine, autoApplyEngine)
	if err := sched.LoadEnabled(ctx); err != nil {
		logging.Error().Err(err).Msg("failed to load enabled schedules")
	}

	router := &api.Router{
		Scans:     scanEngine,
		AutoApply: autoApplyEngine,
		Scheduler: sched,
		Store:     db,
		Configs:   configs,
		Security:  cfg.Security,
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create supervisor tree")
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("http server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service failed to stop")
		}
	}

	logging.Info().Msg("application stopped gracefully")
}

// newMediaServerClient loads the persisted media-server connection from
// the Config Store. Returns an error if it has never been configured.
func newMediaServerClient(ctx context.Context, configs *configstore.Store) (*mediaserver.Client, error) {
	mediaCfg, err := configs.MediaServerConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load media server config: %w", err)
	}
	if mediaCfg.URL == "" || mediaCfg.Token == "" {
		return nil, fmt.Errorf("media server not configured")
	}
	return mediaserver.New(mediaCfg.URL, mediaCfg.Token), nil
}

// newAggregator builds a Provider Aggregator over every source with a
// stored API key. A source without a key is simply omitted: its
// IsConfigured() would report false anyway, but skipping construction
// avoids an aggregator entry with nothing to do.
func newAggregator(ctx context.Context, configs *configstore.Store) (*providers.Aggregator, error) {
	var configured []providers.Provider
	var firstErr error

	for _, source := range [...]providerSource{
		{name: "fanart", build: func(key string) providers.Provider { return providers.NewFanart(key) }},
		{name: "mediux", build: func(key string) providers.Provider { return providers.NewMediux(key) }},
		{name: "tmdb", build: func(key string) providers.Provider { return providers.NewTMDB(key) }},
		{name: "tvdb", build: func(key string) providers.Provider { return providers.NewTVDB(key) }},
	} {
		key, err := configs.ProviderAPIKey(ctx, source.name)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if key == "" {
			continue
		}
		configured = append(configured, source.build(key))
	}

	return providers.NewAggregator(configured...), firstErr
}

// providerSource pairs a configstore provider key name with its Provider
// constructor, so newAggregator can iterate declaratively.
type providerSource struct {
	name  string
	build func(apiKey string) providers.Provider
}

// wireEventBusMirror attaches a durable JetStream mirror to bus when NATS
// support is configured. Failure to connect is logged and otherwise
// ignored: the bus keeps working in-memory regardless (build without
// -tags nats always takes this path).
func wireEventBusMirror(bus *eventbus.Bus, cfg config.EventBusConfig) {
	mirror, err := eventbus.NewNATSPublisher(eventbus.NATSPublisherConfig{
		URL:     cfg.NATSURL,
		Subject: cfg.Subject,
	})
	if err != nil {
		logging.Warn().Err(err).Msg("eventbus: durable nats mirror unavailable")
		return
	}
	bus.SetMirror(mirror)
}
