package tts

import (
	"archive/zip"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/aldengreen/kokoro-live-tts/internal/voicebank"
)

// fakeRunner lets engine tests exercise Synthesize's precondition and
// wiring logic without loading a real ONNX session.
type fakeRunner struct {
	fn func(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error)
}

func (f *fakeRunner) Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error) {
	return f.fn(ctx, inputs)
}

func (f *fakeRunner) Close() {}

func echoLengthRunner() *fakeRunner {
	return &fakeRunner{
		fn: func(_ context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error) {
			tLen := inputs["tokens"].Shape()[1]
			samples := make([]float32, tLen*10)
			out, err := NewFloat32Tensor(samples, []int64{1, tLen * 10})
			if err != nil {
				return nil, err
			}
			return map[string]*Tensor{"audio": out}, nil
		},
	}
}

func testBank(t *testing.T, voice string) *voicebank.Bank {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "voices.bin")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create(voice + ".npy")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(buildTestNPY(t, voicebank.Rows, voicebank.Cols)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	bank, err := voicebank.Load(path)
	if err != nil {
		t.Fatalf("voicebank.Load: %v", err)
	}
	return bank
}

func buildTestNPY(t *testing.T, rows, cols int) []byte {
	t.Helper()
	header := "{'descr': '<f4', 'fortran_order': False, 'shape': (510, 256), }"
	for (10+len(header))%16 != 0 {
		header += " "
	}
	header += "\n"

	buf := make([]byte, 0, 10+len(header)+rows*cols*4)
	buf = append(buf, 0x93, 'N', 'U', 'M', 'P', 'Y', 1, 0)
	var hlen [2]byte
	binary.LittleEndian.PutUint16(hlen[:], uint16(len(header)))
	buf = append(buf, hlen[:]...)
	buf = append(buf, header...)

	for i := 0; i < rows*cols; i++ {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(0.5))
		buf = append(buf, b[:]...)
	}
	return buf
}

func TestSynthesizeBelowMinTokensReturnsEmpty(t *testing.T) {
	bank := testBank(t, "af_heart")
	engine := NewEngine(echoLengthRunner(), bank)
	samples, err := engine.Synthesize(context.Background(), "", "af_heart", 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if samples != nil {
		t.Fatalf("expected nil/empty samples for short input, got %d", len(samples))
	}
}

func TestSynthesizeUnknownVoice(t *testing.T) {
	bank := testBank(t, "af_heart")
	engine := NewEngine(echoLengthRunner(), bank)
	_, err := engine.Synthesize(context.Background(), "hello", "nonexistent", 1.0)
	if err == nil {
		t.Fatal("expected error for unknown voice")
	}
}

func TestSynthesizeInputTooLong(t *testing.T) {
	bank := testBank(t, "af_heart")
	engine := NewEngine(echoLengthRunner(), bank)

	long := make([]rune, 600)
	for i := range long {
		long[i] = 'a'
	}
	_, err := engine.Synthesize(context.Background(), string(long), "af_heart", 1.0)
	if err == nil {
		t.Fatal("expected ErrInputTooLong")
	}
}

func TestSynthesizeHappyPath(t *testing.T) {
	bank := testBank(t, "af_heart")
	engine := NewEngine(echoLengthRunner(), bank)
	samples, err := engine.Synthesize(context.Background(), "hello world", "af_heart", 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) == 0 {
		t.Fatal("expected non-empty samples")
	}
}
