package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/catalogops/syncboard/internal/config"
	"github.com/catalogops/syncboard/internal/httpapi"
	"github.com/catalogops/syncboard/internal/pipeline"
	"github.com/catalogops/syncboard/internal/syncstate"
	"github.com/catalogops/syncboard/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)

	var cache *syncstate.LastSyncCache
	if cfg.Store.CachePath != "" {
		cache, err = syncstate.OpenLastSyncCache(cfg.Store.CachePath)
		if err != nil {
			// Degraded but functional: lastSync shows empty until the
			// first poll.
			logger.Printf("last-sync cache unavailable: %v", err)
		} else {
			defer cache.Close()
		}
	}

	store := syncstate.NewStore(syncstate.StoreOptions{
		ReadTimeout: cfg.Store.ReadTimeout,
		Cache:       cache,
		Logger:      logger,
	})
	defer store.Close()

	client, err := transport.NewClient(store, transport.ClientOptions{
		URL:           cfg.Events.URL,
		RetryBudget:   cfg.Events.RetryBudget,
		RetryInterval: cfg.Events.RetryInterval,
		Logger:        logger,
	})
	if err != nil {
		log.Fatalf("failed to build event client: %v", err)
	}

	upstream := pipeline.NewHTTPClient(cfg.Upstream.URL, cfg.Upstream.Token, nil)
	poller := pipeline.NewPoller(store, upstream, pipeline.PollerOptions{
		Interval: cfg.Upstream.PollInterval,
		Logger:   logger,
	})

	server := httpapi.NewServer(store, upstream, httpapi.ServerConfig{
		APIToken: cfg.Server.APIToken,
		Logger:   logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("event feed stopped: %v", err)
		}
	}()
	go func() {
		if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("status poller stopped: %v", err)
		}
	}()

	logger.Printf("syncboard listening on %s", cfg.Server.Addr)
	if err := httpapi.ListenAndServe(ctx, cfg.Server.Addr, server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}
