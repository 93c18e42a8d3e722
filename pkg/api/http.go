package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"pilotdeck/pkg/api/handlers"
)

// Handler returns the application router: /v1 row endpoints plus the
// /gemini completion proxy.
func Handler(gp *handlers.GeminiProxy) http.Handler {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.RegisterChats(v1)
	handlers.RegisterRows(v1)
	gp.Register(r)
	return r
}
