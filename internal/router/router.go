package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/petitplat/api/internal/catalog"
	"github.com/petitplat/api/internal/config"
	"github.com/petitplat/api/internal/database"
	"github.com/petitplat/api/internal/enum"
	"github.com/petitplat/api/internal/handler"
	mw "github.com/petitplat/api/internal/middleware"
	"github.com/petitplat/api/internal/service"
	"github.com/petitplat/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, rdb *redis.Client, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",          // web dev server
			"https://commande.petitplat.fr",  // production storefront
			"https://cuisine.petitplat.fr",   // staff back office
		},
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
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	resolver := catalog.NewResolver(queries, rdb)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Catalog (read-only, any authenticated caller)
		catalogHandler := handler.NewCatalogHandler(resolver)
		catalogHandler.RegisterRoutes(r)

		// Orders and the edit flow
		editService := service.NewOrderEditService(
			pool,
			queries,
			func(db database.DBTX) service.EditStore {
				return database.New(db)
			},
			resolver,
			hub,
		)
		orderHandler := handler.NewOrderHandler(editService, queries, hub)
		orderHandler.RegisterRoutes(r)

		// Staff-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleStaff))
			orderHandler.RegisterStaffRoutes(r)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
