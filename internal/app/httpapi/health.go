package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/bookstore_lambda/internal/envelope"
	"github.com/R3E-Network/bookstore_lambda/internal/httputil"
)

// HealthRouter answers liveness probes.
type HealthRouter struct{}

func (HealthRouter) BasePath() string { return "/api/health" }

func (HealthRouter) Register(r *mux.Router, env *envelope.Envelope) {
	r.Handle("", env.Handle(func(w http.ResponseWriter, _ *http.Request) error {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Hello world", "status": "OK"})
		return nil
	})).Methods(http.MethodGet)
}
