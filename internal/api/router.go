package api

import (
	"database/sql"
	"net/http"

	"github.com/campusfound/campusfound/internal/images"
	"github.com/campusfound/campusfound/internal/lifecycle"
	"github.com/campusfound/campusfound/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, engine *lifecycle.Engine, imageStore *images.DBStore, jwtSecret string, maxUpload int64) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	itemsHandler := &ItemsHandler{DB: db, Engine: engine, MaxUpload: maxUpload}
	imagesHandler := &ImagesHandler{Images: imageStore}

	authMW := AuthMiddleware(jwtSecret, db)
	requireGuard := RequireRole(model.RoleGuard)

	// Public: browsing, searching, claiming, and auth entry points.
	mux.HandleFunc("GET /api/items", itemsHandler.List)
	mux.HandleFunc("GET /api/items/recent", itemsHandler.Recent)
	mux.HandleFunc("GET /api/items/search", itemsHandler.Search)
	mux.HandleFunc("GET /api/items/{id}", itemsHandler.Get)
	mux.HandleFunc("PUT /api/items/{id}/claim", itemsHandler.Claim)
	mux.HandleFunc("GET /api/images/{id}", imagesHandler.Get)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)

	// Authenticated routes.
	mux.Handle("GET /api/auth/me", authMW(http.HandlerFunc(authHandler.Me)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Guard console: item registration, edits, delivery, overrides.
	mux.Handle("POST /api/items", authMW(requireGuard(http.HandlerFunc(itemsHandler.Create))))
	mux.Handle("PUT /api/items/{id}", authMW(requireGuard(http.HandlerFunc(itemsHandler.Update))))
	mux.Handle("PUT /api/items/{id}/delivered", authMW(requireGuard(http.HandlerFunc(itemsHandler.Deliver))))
	mux.Handle("PATCH /api/items/{id}/status", authMW(requireGuard(http.HandlerFunc(itemsHandler.SetStatus))))
	mux.Handle("DELETE /api/items/{id}", authMW(requireGuard(http.HandlerFunc(itemsHandler.Delete))))
	mux.Handle("GET /api/items/{id}/history", authMW(requireGuard(http.HandlerFunc(itemsHandler.History))))

	return mux
}
