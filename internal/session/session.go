package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aldengreen/kokoro-live-tts/internal/metrics"
	"github.com/aldengreen/kokoro-live-tts/internal/phonemize"
	"github.com/aldengreen/kokoro-live-tts/internal/tts"
)

// chunkPaceDelay is slept between consecutive audio chunks of the same
// sentence, to avoid bursting the client far ahead of playback.
const chunkPaceDelay = 10 * time.Millisecond

// workerTimeout bounds a single phonemize or synthesize call. Without it, a
// hung external phonemizer or a wedged ONNX call would keep the session's
// workers WaitGroup from ever reaching zero, blocking Handler.Drain forever.
const workerTimeout = 30 * time.Second

var errStopped = errors.New("session: stopped")

// errEngineNotLoaded surfaces spec.md's FatalStartup degraded-mode policy:
// the live endpoint reports the model as unavailable on first synthesis
// instead of crashing the process.
var errEngineNotLoaded = errors.New("tts model not loaded")

// outFrame is one unit of work for the connection's single writer
// goroutine: either a JSON control message or a binary audio frame, never
// both.
type outFrame struct {
	json   any
	binary []byte
}

// liveSession is one live WebSocket connection. Only writeLoop ever calls
// conn.WriteMessage; every other goroutine reaches the wire by sending an
// outFrame on out. Only readLoop calls conn.ReadMessage. state (st) is
// touched only by orchestrate's goroutine, except the stop latch, which is
// safe for readLoop to flip directly.
type liveSession struct {
	conn *websocket.Conn
	cfg  HandlerConfig

	st state

	requests chan clientMessage
	out      chan outFrame
	done     chan struct{}

	// workers tracks the detached phonemizeWorker/synthesizeWorker goroutines,
	// which keep running against cfg.Engine/cfg.Phonemizer even after a caller
	// gives up on them via done. ServeHTTP waits on this before returning, so
	// Handler.Drain never reports a session finished while one of these is
	// still in flight against a collaborator that's about to be closed.
	workers sync.WaitGroup
}

func newLiveSession(conn *websocket.Conn, cfg HandlerConfig) *liveSession {
	return &liveSession{
		conn:     conn,
		cfg:      cfg,
		requests: make(chan clientMessage, 4),
		out:      make(chan outFrame, 16),
		done:     make(chan struct{}),
	}
}

// readLoop owns conn.ReadMessage exclusively. It decodes client frames,
// flips the stop latch directly (safe: atomic, single writer), and forwards
// synthesis requests to the orchestrator goroutine. It closes done when the
// connection ends, which is the session's single shutdown signal.
func (s *liveSession) readLoop() {
	defer close(s.done)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			slog.Info("ws: connection closed", "error", err)
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case msgStop:
			s.st.latch.Stop()
			s.sendJSON(newStopped())
		case msgSynthesize, msgSynthesizeAppend:
			select {
			case s.requests <- msg:
			case <-s.done:
				return
			}
		}
	}
}

// writeLoop owns conn.WriteMessage exclusively.
func (s *liveSession) writeLoop() {
	for {
		select {
		case frame := <-s.out:
			s.writeFrame(frame)
		case <-s.done:
			return
		}
	}
}

func (s *liveSession) writeFrame(f outFrame) {
	if f.binary != nil {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, f.binary); err != nil {
			slog.Error("ws: write audio failed", "error", err)
		}
		return
	}
	b, err := json.Marshal(f.json)
	if err != nil {
		return
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		slog.Error("ws: write event failed", "error", err)
	}
}

func (s *liveSession) sendJSON(v any) {
	select {
	case s.out <- outFrame{json: v}:
	case <-s.done:
	}
}

func (s *liveSession) sendBinary(b []byte) {
	select {
	case s.out <- outFrame{binary: b}:
	case <-s.done:
	}
}

// orchestrate is the Idle/Synthesizing loop: it serializes synthesis
// requests one at a time per session, per spec.md's "only one synthesis
// runs per session at a time."
func (s *liveSession) orchestrate() {
	for {
		select {
		case msg := <-s.requests:
			s.handleRequest(msg)
		case <-s.done:
			return
		}
	}
}

const defaultVoice = "af_heart"

func (s *liveSession) handleRequest(msg clientMessage) {
	voice := msg.Voice
	if voice == "" {
		voice = defaultVoice
	}
	speed := msg.Speed
	if speed <= 0 {
		speed = s.cfg.DefaultSpeed
	}

	switch msg.Type {
	case msgSynthesize:
		s.st.resetForFullSynthesize()
		sentences, _ := phonemize.Split(msg.Text, true)
		if s.runSentences(sentences, voice, speed) {
			s.sendJSON(newDone())
		}
	case msgSynthesizeAppend:
		toSynth, pending := appendBuffering(s.st.pending, msg.Text)
		s.st.pending = pending
		if len(toSynth) == 0 {
			return
		}
		s.st.latch.Reset()
		if s.runSentences(toSynth, voice, speed) {
			s.sendJSON(newDone())
		}
	}
}

// runSentences implements spec.md's per-sentence synthesis loop, steps 1-9.
// It reports whether every sentence ran to completion; a stop or a hard
// error cuts the loop short, in which case the caller must not also send
// `done` on top of the `stopped`/`error` message already sent.
func (s *liveSession) runSentences(sentences []string, voice string, speed float64) bool {
	for _, text := range sentences {
		idx := s.st.nextIndex()
		if s.st.latch.Stopped() {
			return false
		}

		start := time.Now()
		phonemes, err := s.phonemizeWorker(text)
		metrics.StageDuration.WithLabelValues("phonemize").Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.Errors.WithLabelValues("phonemize", "external_tool_error").Inc()
			s.sendJSON(newError(err.Error()))
			return false
		}
		if phonemes == "" {
			continue
		}

		synthStart := time.Now()
		samples, err := s.synthesizeWorker(phonemes, voice, float32(speed))
		metrics.StageDuration.WithLabelValues("synthesize").Observe(time.Since(synthStart).Seconds())
		if err != nil {
			if errors.Is(err, tts.ErrInputTooLong) {
				metrics.Errors.WithLabelValues("synthesize", "input_too_long").Inc()
				s.sendJSON(newError(err.Error()))
				continue
			}
			metrics.Errors.WithLabelValues("synthesize", "synthesis_error").Inc()
			s.sendJSON(newError(err.Error()))
			return false
		}
		if len(samples) == 0 {
			continue
		}
		metrics.SentenceSynthesisDuration.Observe(time.Since(start).Seconds())
		metrics.SentencesSynthesized.Inc()

		words := phonemize.EstimateWordTimings(text, len(samples), tts.SampleRate)
		s.sendJSON(newWordTiming(idx, words))

		if err := s.streamChunks(idx, samples); err != nil {
			return false
		}
		s.sendJSON(newSentenceDone(idx))
	}
	return true
}

// streamChunks slices samples into chunkSamples-sized frames, checking the
// stop latch and pacing ~10ms between each, per spec.md's stop-latency
// invariant (at most one extra chunk after stop is observed).
func (s *liveSession) streamChunks(idx uint32, samples []float32) error {
	for start := 0; start < len(samples); start += chunkSamples {
		if s.st.latch.Stopped() {
			return errStopped
		}
		end := start + chunkSamples
		if end > len(samples) {
			end = len(samples)
		}
		s.sendBinary(encodeChunk(idx, samples[start:end]))
		metrics.AudioChunksSent.Inc()
		if end < len(samples) {
			time.Sleep(chunkPaceDelay)
		}
	}
	return nil
}

// phonemizeWorker offloads the blocking external phonemizer call to a
// worker goroutine, per spec.md step 3, reporting the result back over a
// channel rather than letting the worker touch the connection.
func (s *liveSession) phonemizeWorker(text string) (string, error) {
	type result struct {
		phonemes string
		err      error
	}
	ch := make(chan result, 1)
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		ctx, cancel := context.WithTimeout(context.Background(), workerTimeout)
		defer cancel()
		ph, err := s.cfg.Phonemizer.Phonemize(ctx, text)
		ch <- result{ph, err}
	}()
	select {
	case r := <-ch:
		return r.phonemes, r.err
	case <-s.done:
		return "", errStopped
	}
}

// synthesizeWorker offloads the ONNX call (which holds the engine mutex for
// its duration) to a worker goroutine, per spec.md step 5.
func (s *liveSession) synthesizeWorker(phonemes, voice string, speed float32) ([]float32, error) {
	if s.cfg.Engine == nil {
		return nil, errEngineNotLoaded
	}
	type result struct {
		samples []float32
		err     error
	}
	ch := make(chan result, 1)
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		ctx, cancel := context.WithTimeout(context.Background(), workerTimeout)
		defer cancel()
		samples, err := s.cfg.Engine.Synthesize(ctx, phonemes, voice, speed)
		ch <- result{samples, err}
	}()
	select {
	case r := <-ch:
		return r.samples, r.err
	case <-s.done:
		return nil, errStopped
	}
}
