package handlers

import (
	"net/http"
	"strings"

	"github.com/ravigill3969/image-converter/backend/utils"
)

func Health(w http.ResponseWriter, r *http.Request) {
	utils.RespondString(w, http.StatusOK, "ok")
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	utils.RespondError(w, http.StatusNotFound, "This route does not exist")
}

// MethodNotAllowed answers a known path hit with the wrong method.
func MethodNotAllowed(allowed ...string) http.HandlerFunc {
	allow := strings.Join(allowed, ", ")
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		utils.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
