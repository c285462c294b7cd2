package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aldengreen/kokoro-live-tts/internal/auth"
	"github.com/aldengreen/kokoro-live-tts/internal/jobs"
	"github.com/aldengreen/kokoro-live-tts/internal/session"
)

type deps struct {
	sessionHandler *session.Handler
	jobHandlers    *jobs.Handlers
	validator      *auth.Validator
	testMode       bool
	degraded       bool
}

// registerRoutes wires every HTTP endpoint to the shared mux.
func registerRoutes(mux *http.ServeMux, d deps) {
	mux.Handle("GET /ws/live", d.sessionHandler)
	mux.HandleFunc("POST /generate", d.withAuth(d.handleGenerate))
	mux.HandleFunc("GET /status/{id}", d.withAuth(d.handleStatus))
	mux.HandleFunc("GET /health", d.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// withAuth validates the bearer token (bypassed in TTS_TEST_MODE inside
// Validator itself) before calling next with the resolved principal's
// username.
func (d deps) withAuth(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, err := d.validator.ValidateBearer(r.Header.Get("Authorization"))
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r, principal.Username)
	}
}

func (d deps) handleGenerate(w http.ResponseWriter, r *http.Request, username string) {
	d.jobHandlers.Generate(w, r, username)
}

func (d deps) handleStatus(w http.ResponseWriter, r *http.Request, username string) {
	d.jobHandlers.Status(w, r, username)
}

func (d deps) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if d.degraded {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"degraded","tts_model_loaded":false}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok","tts_model_loaded":true}`))
}
