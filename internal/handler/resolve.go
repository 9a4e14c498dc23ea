package handler

import (
	"encoding/json"
	"net/http"

	"mediagate/internal/metrics"
	"mediagate/internal/service"
	"mediagate/internal/video"

	"github.com/rs/zerolog"
)

type resolveRequest struct {
	URL         string `json:"url"`
	IsAudioOnly bool   `json:"isAudioOnly"`
}

// ResolveHandler serves POST /resolve by relaying the first successful
// fallback provider response.
type ResolveHandler struct {
	gate       gate
	dispatcher *service.Dispatcher
	providers  []service.Provider
}

func NewResolveHandler(l *service.Limiter, d *service.Dispatcher, providers []service.Provider, m *metrics.Registry) *ResolveHandler {
	return &ResolveHandler{
		gate:       gate{route: "resolve", limiter: l, metrics: m},
		dispatcher: d,
		providers:  service.SortProviders(providers),
	}
}

func (h *ResolveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}

	var req resolveRequest
	verr := json.NewDecoder(r.Body).Decode(&req)
	if verr == nil {
		_, verr = video.ValidateURL(req.URL)
	}

	d, ok := h.gate.admit(w, r)
	if !ok {
		return
	}
	if verr != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "text": msgInvalidURL})
		return
	}
	if h.gate.limited(w, r, d) {
		return
	}

	resp, err := h.dispatcher.Dispatch(r.Context(), h.providers, service.Payload{URL: req.URL, AudioOnly: req.IsAudioOnly})
	if err != nil {
		if h.gate.metrics != nil {
			h.gate.metrics.DispatchFailures.Inc()
		}
		zerolog.Ctx(r.Context()).Warn().Err(err).Int("providers", len(h.providers)).Msg("resolve failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "text": service.ErrAllProvidersFailed.Message})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.Body)
}
