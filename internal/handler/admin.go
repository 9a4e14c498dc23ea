package handler

import (
	"net/http"
	"time"

	"mediagate/internal/middleware"
	"mediagate/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AdminHandler exposes a client's rate limit window for inspection and reset.
type AdminHandler struct {
	limiter *service.Limiter
}

func NewAdminHandler(l *service.Limiter) *AdminHandler {
	return &AdminHandler{limiter: l}
}

type clientState struct {
	Client    string    `json:"client"`
	Allowed   bool      `json:"allowed"`
	Limit     int64     `json:"limit"`
	Remaining int64     `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// Get reports the window of the client named in the {id} URL parameter.
func (a *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := a.limiter.Peek(r.Context(), id)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("client", id).Msg("peek failed")
		writeUnexpected(w)
		return
	}
	writeJSON(w, http.StatusOK, clientState{
		Client:    id,
		Allowed:   d.Allowed,
		Limit:     d.Limit,
		Remaining: d.Remaining,
		ResetAt:   d.ResetAt.UTC(),
	})
}

// Reset clears the window of the client named in the {id} URL parameter.
func (a *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.limiter.Reset(r.Context(), id); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("client", id).Msg("reset failed")
		writeUnexpected(w)
		return
	}
	zerolog.Ctx(r.Context()).Info().
		Str("client", id).
		Str("by", middleware.SubjectFromContext(r.Context())).
		Msg("rate limit window reset")
	w.WriteHeader(http.StatusNoContent)
}
