package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/fieldsales/api/internal/catalog"
	"github.com/fieldsales/api/internal/config"
	"github.com/fieldsales/api/internal/router"
	"github.com/fieldsales/api/internal/session"
	"github.com/fieldsales/api/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	st := store.New(pool)

	// Preload the read-through caches. A failed load is reported but not
	// fatal: the collections stay empty until an agent triggers a refresh.
	cat := catalog.NewCatalog(st)
	if err := cat.Load(ctx); err != nil {
		log.Printf("WARN: initial catalog load failed: %v", err)
	} else {
		log.Printf("Catalog loaded: %d products", cat.Snapshot().Len())
	}

	dir := catalog.NewDirectory(st)
	if err := dir.Load(ctx); err != nil {
		log.Printf("WARN: initial client directory load failed: %v", err)
	} else {
		log.Printf("Client directory loaded: %d clients", len(dir.Clients()))
	}

	sessions := session.NewRegistry()
	r := router.New(cfg, st, cat, dir, sessions)

	log.Printf("Starting server on :%s", cfg.Port)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.Port), r); err != nil {
		log.Fatal(err)
	}
}
