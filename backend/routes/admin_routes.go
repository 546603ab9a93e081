package routes

import (
	"net/http"

	"github.com/ravigill3969/image-converter/backend/handlers"
	middleware "github.com/ravigill3969/image-converter/backend/middlewares"
)

func AdminRoutes(mux *http.ServeMux, ah *handlers.AdminHandler, keyAuth *middleware.APIKeyAuth) {
	mux.Handle("POST /api/admin/keys/rotate", keyAuth.Require(http.HandlerFunc(ah.RotateKey)))
	mux.Handle("/api/admin/keys/rotate", handlers.MethodNotAllowed(http.MethodPost))

	mux.Handle("POST /api/admin/purge", keyAuth.Require(http.HandlerFunc(ah.Purge)))
	mux.Handle("/api/admin/purge", handlers.MethodNotAllowed(http.MethodPost))
}

// SystemRoutes registers health and the catch-all. Call it last.
func SystemRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handlers.Health)
	mux.Handle("/healthz", handlers.MethodNotAllowed(http.MethodGet))
	mux.HandleFunc("/", handlers.NotFound)
}
