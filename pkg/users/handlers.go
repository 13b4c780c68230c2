package users

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/sprintflow/pkg/httputil"
)

// Handlers provides the unauthenticated credential endpoints
type Handlers struct {
	service *Service
}

// NewHandlers creates user handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers /auth routes. The router should be rate limited.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/register", h.register).Methods("POST")
	router.HandleFunc("/auth/login", h.login).Methods("POST")
}

// register always grants DefaultRole; roles cannot be chosen by the caller
func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.Roles = nil

	user, err := h.service.Register(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, user)
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}
