package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aldengreen/kokoro-live-tts/internal/auth"
	"github.com/aldengreen/kokoro-live-tts/internal/env"
	"github.com/aldengreen/kokoro-live-tts/internal/jobs"
	"github.com/aldengreen/kokoro-live-tts/internal/phonemize"
	"github.com/aldengreen/kokoro-live-tts/internal/session"
	"github.com/aldengreen/kokoro-live-tts/internal/tts"
	"github.com/aldengreen/kokoro-live-tts/internal/voicebank"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	port := env.Str("GATEWAY_PORT", "8000")
	databaseURL := env.Str("DATABASE_URL", "")
	storagePath := env.Str("STORAGE_PATH", "/app/storage")
	keycloakURL := env.Str("KEYCLOAK_URL", "")
	keycloakRealm := env.Str("KEYCLOAK_REALM", "")
	keycloakAudience := env.Str("KEYCLOAK_AUDIENCE", "tts")
	testMode := env.Bool("TTS_TEST_MODE", false)

	modelPath := env.Str("MODEL_PATH", "/app/kokoro-v1.0.onnx")
	voicesPath := env.Str("VOICES_PATH", "/app/voices-v1.0.bin")
	ortLibraryPath := env.Str("ORT_LIBRARY_PATH", "/usr/lib/libonnxruntime.so")
	phonemizerPath := env.Str("PHONEMIZER_PATH", "espeak-ng")
	phonemizerLocale := env.Str("PHONEMIZER_LOCALE", "en-us")
	ttsCLIPath := env.Str("TTS_CLI_PATH", "kokoro-tts")
	mp3EncoderPath := env.Str("MP3_ENCODER_PATH", "ffmpeg")

	sweepInterval := env.Duration("JOB_SWEEP_INTERVAL", jobs.DefaultSweepInterval)
	jobMaxAge := env.Duration("JOB_MAX_AGE", jobs.DefaultMaxAge)
	maxUploadMB := env.Int("MAX_UPLOAD_MB", jobs.DefaultMaxUploadMB)
	wsAuthTimeout := env.Duration("WS_AUTH_TIMEOUT", session.DefaultAuthTimeout)
	defaultSpeed := env.Float("DEFAULT_SYNTHESIS_SPEED", session.DefaultSpeed)

	if databaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	engine, degraded := loadEngine(modelPath, voicesPath, ortLibraryPath)

	validator := auth.NewValidator(keycloakURL, keycloakRealm, keycloakAudience, testMode)
	phonemizer := phonemize.NewPhonemizer(phonemizerPath, phonemizerLocale)

	store, err := jobs.Open(databaseURL)
	if err != nil {
		slog.Error("jobs store open failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	worker := jobs.NewWorker(store, jobs.WorkerConfig{
		TTSCLIPath:     ttsCLIPath,
		MP3EncoderPath: mp3EncoderPath,
		StoragePath:    storagePath,
		TestMode:       testMode,
	})
	jobHandlers := jobs.NewHandlers(store, worker, maxUploadMB)

	sweepCtx, cancelSweeper := context.WithCancel(context.Background())
	defer cancelSweeper()
	go jobs.RunSweeper(sweepCtx, store, storagePath, sweepInterval, jobMaxAge)

	sessionHandler := session.NewHandler(session.HandlerConfig{
		Engine:       engine,
		Phonemizer:   phonemizer,
		Validator:    validator,
		AuthTimeout:  wsAuthTimeout,
		DefaultSpeed: defaultSpeed,
	})

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		sessionHandler: sessionHandler,
		jobHandlers:    jobHandlers,
		validator:      validator,
		testMode:       testMode,
		degraded:       degraded,
	})

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: mux}

	go awaitShutdown(srv, cancelSweeper, engine, sessionHandler)

	slog.Info("gateway starting", "addr", addr, "degraded", degraded)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("gateway stopped")
}

// loadEngine loads the ONNX model and voice bank at startup. Per spec.md's
// FatalStartup policy, a load failure does not crash the process: it logs
// and returns degraded=true so the live endpoint can report the model as
// unavailable on first synthesis while /generate still works through the
// external TTS CLI.
func loadEngine(modelPath, voicesPath, ortLibraryPath string) (*tts.Engine, bool) {
	bank, err := voicebank.Load(voicesPath)
	if err != nil {
		slog.Error("voice bank load failed, running degraded", "error", err, "path", voicesPath)
		return nil, true
	}
	slog.Info("voice bank loaded", "voices", len(bank.Voices()))

	runner, err := tts.NewRunner(tts.RunnerConfig{
		LibraryPath: ortLibraryPath,
		ModelPath:   modelPath,
	})
	if err != nil {
		slog.Error("onnx runner load failed, running degraded", "error", err, "path", modelPath)
		return nil, true
	}
	return tts.NewEngine(runner, bank), false
}

// awaitShutdown drains in order: stop accepting new HTTP/WS work, wait for
// live sessions already in flight to finish (they hold the engine via
// hijacked connections that srv.Shutdown doesn't track), then release the
// engine. Closing the engine before sessions drain would pull the ONNX
// runtime out from under an in-flight Synthesize call.
func awaitShutdown(srv *http.Server, cancelSweeper context.CancelFunc, engine *tts.Engine, sessions *session.Handler) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)

	cancelSweeper()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	srv.Shutdown(shutdownCtx)

	// Drain gets its own budget rather than sharing shutdownCtx's remainder:
	// a slow srv.Shutdown must not starve the time sessions get to finish
	// in-flight synthesis before the engine is closed out from under them.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelDrain()
	drained := sessions.Drain(drainCtx)

	if engine != nil {
		if !drained {
			slog.Warn("skipping engine close: sessions did not drain in time, leaking the engine to avoid a use-after-close on an in-flight call")
			return
		}
		engine.Close()
	}
}
