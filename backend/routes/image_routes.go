package routes

import (
	"net/http"

	"github.com/ravigill3969/image-converter/backend/handlers"
	middleware "github.com/ravigill3969/image-converter/backend/middlewares"
)

func ImageRoutes(mux *http.ServeMux, ih *handlers.ImageHandler, auth *middleware.SessionAuth) {
	mux.Handle("POST /api/images/original", auth.Ensure(http.HandlerFunc(ih.UploadOriginal)))
	mux.Handle("GET /api/images/original", auth.Require(http.HandlerFunc(ih.GetOriginal)))
	mux.Handle("/api/images/original", handlers.MethodNotAllowed(http.MethodGet, http.MethodPost))

	mux.Handle("DELETE /api/images", auth.Require(http.HandlerFunc(ih.DeleteAll)))
	mux.Handle("/api/images", handlers.MethodNotAllowed(http.MethodDelete))

	mux.Handle("POST /api/images/convert", auth.Require(http.HandlerFunc(ih.Convert)))
	mux.Handle("/api/images/convert", handlers.MethodNotAllowed(http.MethodPost))

	mux.Handle("POST /api/images/edit", auth.Require(http.HandlerFunc(ih.Edit)))
	mux.Handle("/api/images/edit", handlers.MethodNotAllowed(http.MethodPost))

	mux.Handle("GET /api/images/derived", auth.Require(http.HandlerFunc(ih.ListDerived)))
	mux.Handle("/api/images/derived", handlers.MethodNotAllowed(http.MethodGet))

	mux.Handle("DELETE /api/images/derived/{id}", auth.Require(http.HandlerFunc(ih.DeleteDerived)))
	mux.Handle("/api/images/derived/{id}", handlers.MethodNotAllowed(http.MethodDelete))

	mux.Handle("GET /api/images/archive", auth.Require(http.HandlerFunc(ih.Archive)))
	mux.Handle("/api/images/archive", handlers.MethodNotAllowed(http.MethodGet))
}
