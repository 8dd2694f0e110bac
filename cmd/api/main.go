package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradepost/api/internal/app"
	"tradepost/api/internal/authpw"
	"tradepost/api/internal/config"
	"tradepost/api/internal/search"
	"tradepost/api/internal/session"
	"tradepost/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	client, err := store.Open(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("mongodb connection failed: %v", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()

	entities := store.NewMongoStore(client, cfg.MongoDatabase)

	redisStore, err := session.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer redisStore.Close()

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliAPIKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewMongoRegex(entities))
	if meiliClient != nil {
		go reindexListings(ctx, entities, searchService)
	}

	accounts := authpw.NewService(entities)
	service := app.New(cfg, entities, redisStore, searchService, accounts)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", httpServer.Handler())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Tradepost API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// reindexListings rebuilds the search index from the listing collections so
// documents created while Meilisearch was down are not lost.
func reindexListings(ctx context.Context, entities *store.MongoStore, searchService *search.Service) {
	var records []search.ListingRecord
	for _, kind := range []store.Kind{store.KindItem, store.KindRequest} {
		listings, err := entities.AllOfferables(ctx, kind)
		if err != nil {
			log.Printf("reindex: list %ss: %v", kind, err)
			return
		}
		for _, o := range listings {
			records = append(records, search.ListingRecord{
				ID:          o.ID,
				Kind:        string(o.Kind),
				Title:       o.Title,
				Description: o.Description,
				Visibility:  o.Visibility,
				Status:      o.Status,
			})
		}
	}
	searchService.ReindexAll(records)
}
