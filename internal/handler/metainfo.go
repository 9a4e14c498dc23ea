package handler

import (
	"fmt"
	"net/http"

	"mediagate/internal/metrics"
	"mediagate/internal/service"
	"mediagate/internal/video"
)

// MetaInfoHandler serves GET /metainfo?url=.
type MetaInfoHandler struct {
	gate gate
	meta *service.MetadataService
}

func NewMetaInfoHandler(l *service.Limiter, meta *service.MetadataService, m *metrics.Registry) *MetaInfoHandler {
	return &MetaInfoHandler{
		gate: gate{route: "metainfo", limiter: l, metrics: m},
		meta: meta,
	}
}

func (h *MetaInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	_, verr := video.ValidateURL(raw)

	d, ok := h.gate.admit(w, r)
	if !ok {
		return
	}
	if verr != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msgInvalidURL})
		return
	}
	if h.gate.limited(w, r, d) {
		return
	}

	md, err := h.meta.Lookup(r.Context(), raw)
	if err != nil {
		writeSourceError(w, r, err)
		return
	}
	if ttl := h.meta.CacheTTLSeconds(); ttl > 0 {
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", ttl))
	}
	writeJSON(w, http.StatusOK, md)
}
