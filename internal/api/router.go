package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/spf13/afero"

	"github.com/spatialdeez/microstore/internal/api/handlers"
	"github.com/spatialdeez/microstore/internal/auth"
	"github.com/spatialdeez/microstore/internal/config"
	"github.com/spatialdeez/microstore/internal/metrics"
	"github.com/spatialdeez/microstore/internal/middleware"
	"github.com/spatialdeez/microstore/internal/services"
	"github.com/spatialdeez/microstore/internal/storage"
)

type RouterDeps struct {
	Cfg        config.Config
	TM         *auth.TokenManager
	Sessions   *auth.Sessions
	Files      *storage.Files
	UserSvc    *services.UserService
	CatalogSvc *services.CatalogService
	CartSvc    *services.CartService
}

// uploads serves stored images read-only, without directory listings.
func uploads(files *storage.Files) http.Handler {
	fs := http.FileServer(afero.NewHttpFs(files.Fs()).Dir("/"))
	return http.StripPrefix("/uploads", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	}))
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.Logging, middleware.HTTPMetrics, middleware.RateLimit(d.Cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-Id"},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())
	r.Handle("/uploads/*", uploads(d.Files))

	authMW := middleware.NewAuthMiddleware(d.TM, d.Sessions, d.UserSvc)
	ah := handlers.NewAuthHandler(d.TM, d.Sessions, d.UserSvc)
	ch := handlers.NewCatalogHandler(d.CatalogSvc)
	cart := handlers.NewCartHandler(d.CartSvc)
	uh := handlers.NewUserHandler(d.UserSvc)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authMW.Authenticate)

		// ---------- auth ----------
		r.Post("/auth/register", ah.Register)
		r.Post("/auth/login", ah.Login)
		r.Post("/auth/logout", ah.Logout)
		r.Post("/auth/refresh", ah.Refresh)
		r.Get("/auth/me", ah.Me)

		// ---------- catalog ----------
		r.Get("/products", ch.ListProducts)
		r.Post("/products", ch.CreateProduct)
		r.Get("/products/{id}", ch.GetProduct)
		r.Put("/products/{id}", ch.UpdateProduct)
		r.Delete("/products/{id}", ch.DeleteProduct)

		r.Get("/categories", ch.ListCategories)
		r.Post("/categories", ch.CreateCategory)
		r.Get("/categories/{id}", ch.GetCategory)
		r.Put("/categories/{id}", ch.RenameCategory)
		r.Delete("/categories/{id}", ch.DeleteCategory)

		// ---------- cart ----------
		r.Get("/cart", cart.View)
		r.Post("/cart/items", cart.AddItem)
		r.Delete("/cart/items/{productID}", cart.RemoveItem)
		r.Post("/cart/purchase", cart.Purchase)

		// ---------- users (admin) ----------
		r.Get("/users", uh.List)
		r.Post("/users", uh.Create)
		r.Put("/users/{id}", uh.Update)
		r.Delete("/users/{id}", uh.Delete)
	})

	return r
}
