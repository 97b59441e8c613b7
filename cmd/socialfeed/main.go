// Command socialfeed runs the local web client for the social network's
// GraphQL API.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"socialfeed/internal/api"
	"socialfeed/internal/config"
	"socialfeed/internal/feed"
	"socialfeed/internal/graphql"
	"socialfeed/internal/observability"
	"socialfeed/internal/server"
	"socialfeed/internal/session"
	"socialfeed/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	observability.Configure(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:  "socialfeed",
		Environment:  cfg.Env,
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplerRatio: cfg.TracingSampleRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	st, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s storage: %v", cfg.StorageDriver, err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("Storage close error: %v", err)
		}
	}()

	store := session.NewStore(st)
	restored, err := store.Restore(ctx)
	if err != nil {
		observability.Logger.WarnContext(ctx, "session restore failed", slog.String("error", err.Error()))
	}

	pollInterval := time.Duration(cfg.FeedPollSeconds) * time.Second
	gql := graphql.NewClient(cfg.GraphQLEndpoint,
		graphql.WithTokenSource(store),
		graphql.WithCache(graphql.NewCacheWithTTL(pollInterval)),
		graphql.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second}),
	)
	client := api.New(gql)

	if restored {
		if _, err := store.RefreshIfExpired(ctx, time.Now(), client.RefreshToken); err != nil {
			observability.Logger.WarnContext(ctx, "token refresh at startup failed", slog.String("error", err.Error()))
		}
		go store.Reconcile(ctx, client.Me)
	}

	f := feed.New(client, cfg.FeedPageSize)
	unsubscribe := gql.Cache().Subscribe(func(queries []string) {
		if slices.Contains(queries, api.OpGetPosts.Name) {
			f.MarkStale()
		}
	})
	defer unsubscribe()
	go f.Run(ctx, pollInterval)

	srv, err := server.NewServer(cfg, client, store, f)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()

		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("Tracing shutdown error: %v", err)
		}
	}()

	// Start server
	log.Printf("socialfeed listening on http://%s", cfg.Addr())
	if err := srv.Listen(); err != nil {
		log.Printf("Server error: %v", err)
	}
}
