package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aldengreen/kokoro-live-tts/internal/auth"
	"github.com/aldengreen/kokoro-live-tts/internal/metrics"
	"github.com/aldengreen/kokoro-live-tts/internal/phonemize"
	"github.com/aldengreen/kokoro-live-tts/internal/tts"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  8192,
	WriteBufferSize: 8192,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// maxMessageSize bounds a single incoming WebSocket frame. Client messages
// are short JSON control/text payloads, so this is generous headroom, not a
// tuning knob.
const maxMessageSize = 1 << 20 // 1MiB

// DefaultAuthTimeout is how long awaitAuth waits for an auth message
// before closing the connection, used unless HandlerConfig.AuthTimeout is
// set.
const DefaultAuthTimeout = 10 * time.Second

// DefaultSpeed is the synthesis speed applied when a request omits one,
// used unless HandlerConfig.DefaultSpeed is set.
const DefaultSpeed = 1.0

// HandlerConfig holds the shared, process-lifetime collaborators every live
// session needs.
type HandlerConfig struct {
	Engine     *tts.Engine
	Phonemizer *phonemize.Phonemizer
	Validator  *auth.Validator

	// AuthTimeout overrides DefaultAuthTimeout when positive.
	AuthTimeout time.Duration
	// DefaultSpeed overrides DefaultSpeed when positive.
	DefaultSpeed float64
}

// Handler upgrades HTTP requests to WebSocket live TTS sessions. It tracks
// every session still running so the process can drain them before
// releasing collaborators like the ONNX engine — http.Server.Shutdown
// does not wait for hijacked connections such as upgraded WebSockets.
type Handler struct {
	cfg HandlerConfig
	wg  sync.WaitGroup
}

// NewHandler builds a Handler bound to the given shared collaborators,
// filling unset tunables with their defaults.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = DefaultAuthTimeout
	}
	if cfg.DefaultSpeed <= 0 {
		cfg.DefaultSpeed = DefaultSpeed
	}
	return &Handler{cfg: cfg}
}

// ServeHTTP upgrades the connection and runs the session to completion.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	h.wg.Add(1)
	defer h.wg.Done()

	metrics.SessionsTotal.Inc()
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	s := newLiveSession(conn, h.cfg)
	if !s.awaitAuth() {
		return
	}

	go s.writeLoop()
	go s.readLoop()
	s.orchestrate()

	// orchestrate returning only means no more requests will be read; a
	// detached phonemizeWorker/synthesizeWorker goroutine from the last
	// in-flight request may still be running. Wait for it so h.wg.Done
	// (and therefore Handler.Drain) only fires once this session has
	// truly released cfg.Engine/cfg.Phonemizer.
	s.workers.Wait()
}

// Drain blocks until every session started before the call returns has
// finished, or ctx is done, whichever comes first. It reports whether every
// session actually finished. Callers must stop accepting new connections
// before calling Drain, or it may never return.
//
// A false result means a session (and possibly its detached
// phonemizeWorker/synthesizeWorker goroutines) may still be running against
// cfg.Engine/cfg.Phonemizer — the caller must not release those
// collaborators in that case.
func (h *Handler) Drain(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		slog.Warn("ws: drain timed out with sessions still active")
		return false
	}
}

// awaitAuth implements the AwaitingAuth state: a single auth message is
// expected within authTimeout, everything else is rejected.
func (s *liveSession) awaitAuth() bool {
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.AuthTimeout))
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			s.writeDirect(newAuthError("authentication timeout"))
		}
		slog.Info("ws: auth read failed", "error", err)
		return false
	}

	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != msgAuth {
		s.writeDirect(newAuthError("expected auth message"))
		return false
	}

	principal, err := s.cfg.Validator.Validate(msg.Token)
	if err != nil {
		s.writeDirect(newAuthError("invalid token"))
		return false
	}

	s.conn.SetReadDeadline(time.Time{})
	s.st.authenticated = true
	s.st.username = principal.Username
	s.writeDirect(newAuthOK(principal.Username))
	return true
}

// writeDirect writes straight to the connection. It is only used before the
// writer goroutine exists (the auth handshake), when this goroutine is
// still the connection's sole owner.
func (s *liveSession) writeDirect(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		slog.Error("ws: write failed", "error", err)
	}
}
