package router

import (
	"net/http"

	"github.com/fieldsales/api/internal/catalog"
	"github.com/fieldsales/api/internal/config"
	"github.com/fieldsales/api/internal/handler"
	mw "github.com/fieldsales/api/internal/middleware"
	"github.com/fieldsales/api/internal/service"
	"github.com/fieldsales/api/internal/session"
	"github.com/fieldsales/api/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, st *store.Store, cat *catalog.Catalog, dir *catalog.Directory, sessions *session.Registry) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(st, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Catalog snapshot
		catalogHandler := handler.NewCatalogHandler(cat)
		r.Route("/catalog", catalogHandler.RegisterRoutes)

		// Client directory
		clientHandler := handler.NewClientHandler(st, dir)
		r.Route("/clients", clientHandler.RegisterRoutes)

		// Session cart
		cartHandler := handler.NewCartHandler(sessions, cat)
		r.Route("/cart", cartHandler.RegisterRoutes)

		// Orders
		orderService := service.NewOrderService(st, dir, cfg.DeliveryLeadDays)
		orderHandler := handler.NewOrderHandler(orderService, st, sessions, cat)
		r.Route("/orders", orderHandler.RegisterRoutes)
	})

	return r
}
