// Package tts owns the in-process ONNX vocoder session and exposes a
// single synchronous Synthesize call, serialized behind a mutex because
// the underlying session holds internal buffers that are not safe to
// invoke concurrently.
package tts

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aldengreen/kokoro-live-tts/internal/vocab"
	"github.com/aldengreen/kokoro-live-tts/internal/voicebank"
)

const (
	// MaxTokens is the style matrix's row limit; inputs tokenizing longer
	// than this cannot be synthesized in one call.
	MaxTokens = voicebank.Rows
	// MinTokens is the minimum tokenized length that produces audio;
	// shorter inputs return an empty sample array (not an error).
	MinTokens = 3

	sampleRate = 24000
)

// ErrInputTooLong is returned when the tokenized phoneme sequence exceeds
// MaxTokens.
var ErrInputTooLong = errors.New("tts: input too long")

// ErrUnknownVoice is returned when the requested voice is absent from the
// voice bank.
var ErrUnknownVoice = errors.New("tts: unknown voice")

// SampleRate is the fixed output sample rate in Hz.
const SampleRate = sampleRate

// Engine owns a single ONNX session and a voice bank, and serializes all
// synthesis calls through one mutex.
type Engine struct {
	mu     sync.Mutex
	runner Runner
	bank   *voicebank.Bank
}

// NewEngine wires a Runner (the loaded ONNX session) to a voice bank.
func NewEngine(runner Runner, bank *voicebank.Bank) *Engine {
	return &Engine{runner: runner, bank: bank}
}

// Close releases the underlying ONNX session.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runner != nil {
		e.runner.Close()
	}
}

// Synthesize runs the vocoder on phonemes conditioned by voice and speed,
// returning f32 PCM samples at SampleRate. Per spec: a tokenized length
// below MinTokens returns an empty, non-error result; above MaxTokens
// returns ErrInputTooLong; an unknown voice returns ErrUnknownVoice. The
// session mutex is held for the whole call.
func (e *Engine) Synthesize(ctx context.Context, phonemes, voice string, speed float32) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tokens := vocab.Tokenize(phonemes)
	if len(tokens) < MinTokens {
		return nil, nil
	}
	if len(tokens) > MaxTokens {
		return nil, fmt.Errorf("%w: %d tokens exceeds limit %d", ErrInputTooLong, len(tokens), MaxTokens)
	}
	if !e.bank.Has(voice) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVoice, voice)
	}
	style, err := e.bank.Get(voice, len(tokens))
	if err != nil {
		return nil, fmt.Errorf("tts: style lookup: %w", err)
	}

	tokenIDs := make([]int64, len(tokens))
	for i, t := range tokens {
		tokenIDs[i] = int64(t)
	}

	tokensTensor, err := NewInt64Tensor(tokenIDs, []int64{1, int64(len(tokenIDs))})
	if err != nil {
		return nil, fmt.Errorf("tts: build tokens tensor: %w", err)
	}
	styleTensor, err := NewFloat32Tensor(append([]float32(nil), style...), []int64{1, int64(len(style))})
	if err != nil {
		return nil, fmt.Errorf("tts: build style tensor: %w", err)
	}
	speedTensor, err := NewFloat32Tensor([]float32{speed}, []int64{1})
	if err != nil {
		return nil, fmt.Errorf("tts: build speed tensor: %w", err)
	}

	inputs := map[string]*Tensor{
		"tokens": tokensTensor,
		"style":  styleTensor,
		"speed":  speedTensor,
	}

	outputs, err := e.runner.Run(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("tts: synthesize: %w", err)
	}

	audio, ok := outputs["audio"]
	if !ok {
		return nil, fmt.Errorf("tts: session did not produce an %q output", "audio")
	}
	samples, err := audio.Float32()
	if err != nil {
		return nil, fmt.Errorf("tts: audio output: %w", err)
	}
	return samples, nil
}
