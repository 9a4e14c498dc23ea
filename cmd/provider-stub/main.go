package main

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Fake fallback provider for exercising the gateway's dispatcher locally.
// Modes: ok (redirect payload), error (HTTP 502), slow (sleeps past typical
// timeouts, then answers ok), html (200 with a non-JSON body).
var (
	addr  string
	mode  string
	delay time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "provider-stub",
	Short: "Fake download provider answering like a cobalt instance",
	RunE: func(cmd *cobra.Command, args []string) error {
		mux := http.NewServeMux()
		mux.HandleFunc("/", handleResolve)
		mux.HandleFunc("/health", handleHealth)
		log.Info().Str("addr", addr).Str("mode", mode).Msg("provider stub listening")
		return http.ListenAndServe(addr, mux)
	},
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd.Flags().StringVar(&addr, "addr", ":8081", "listen address")
	rootCmd.Flags().StringVar(&mode, "mode", "ok", "ok, error, slow or html")
	rootCmd.Flags().DurationVar(&delay, "delay", 50*time.Millisecond, "processing delay")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type resolveRequest struct {
	URL          string `json:"url"`
	DownloadMode string `json:"downloadMode"`
	IsAudioOnly  bool   `json:"isAudioOnly"`
}

func handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "text": "invalid request"})
		return
	}
	log.Info().Str("url", req.URL).Str("mode", req.DownloadMode).Msg("resolve")

	time.Sleep(delay)
	switch mode {
	case "error":
		writeJSON(w, http.StatusBadGateway, map[string]string{"status": "error", "text": "upstream failure"})
		return
	case "html":
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>maintenance</body></html>"))
		return
	case "slow":
		time.Sleep(30 * time.Second)
	}

	ext := "mp4"
	if req.IsAudioOnly {
		ext = "mp3"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "redirect",
		"url":      "http://localhost" + addr + "/media/stub." + ext,
		"filename": "stub." + ext,
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
