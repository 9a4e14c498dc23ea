package handler

import (
	"mime"
	"net/http"
	"strconv"

	"mediagate/internal/metrics"
	"mediagate/internal/service"
	"mediagate/internal/video"

	"github.com/rs/zerolog"
)

// DownloadHandler serves GET /download?url=&quality=. It redirects to a
// direct media URL resolved from the video source, falling back to the
// provider list when direct resolution fails.
type DownloadHandler struct {
	gate       gate
	meta       *service.MetadataService
	dispatcher *service.Dispatcher
	providers  []service.Provider
}

func NewDownloadHandler(l *service.Limiter, meta *service.MetadataService, d *service.Dispatcher, providers []service.Provider, m *metrics.Registry) *DownloadHandler {
	return &DownloadHandler{
		gate:       gate{route: "download", limiter: l, metrics: m},
		meta:       meta,
		dispatcher: d,
		providers:  service.SortProviders(providers),
	}
}

func (h *DownloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := q.Get("url")
	quality := q.Get("quality")
	audioOnly, aerr := parseFlag(q.Get("audioOnly"))
	audioOnly = audioOnly || service.IsAudioSelector(quality)
	_, verr := video.ValidateURL(raw)

	d, ok := h.gate.admit(w, r)
	if !ok {
		return
	}
	if verr != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msgInvalidURL})
		return
	}
	if aerr != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid audioOnly value"})
		return
	}
	if h.gate.limited(w, r, d) {
		return
	}

	logger := zerolog.Ctx(r.Context())
	st, err := h.meta.StreamURL(r.Context(), raw, quality, audioOnly)
	if err == nil {
		logger.Debug().Int("itag", st.Format.Itag).Str("quality", st.Format.QualityLabel).Msg("direct stream resolved")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": st.Filename}))
		http.Redirect(w, r, st.URL, http.StatusFound)
		return
	}
	if len(h.providers) == 0 || h.dispatcher == nil {
		writeSourceError(w, r, err)
		return
	}

	logger.Warn().Err(err).Msg("direct resolution failed, trying fallback providers")
	resp, derr := h.dispatcher.Dispatch(r.Context(), h.providers, service.Payload{URL: raw, AudioOnly: audioOnly})
	if derr != nil {
		if h.gate.metrics != nil {
			h.gate.metrics.DispatchFailures.Inc()
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": service.ErrAllProvidersFailed.Message})
		return
	}
	direct, ok := resp.DirectURL()
	if !ok {
		logger.Warn().Str("provider", resp.Provider).Msg("provider response carried no media url")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": service.ErrAllProvidersFailed.Message})
		return
	}
	http.Redirect(w, r, direct, http.StatusFound)
}

// parseFlag reads an optional boolean query parameter. An absent value is false.
func parseFlag(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
