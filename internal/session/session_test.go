package session

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestEncodeChunkLayout(t *testing.T) {
	samples := []float32{1.5, -2.25, 0}
	frame := encodeChunk(7, samples)

	if len(frame) != 4+4*len(samples) {
		t.Fatalf("frame length = %d, want %d", len(frame), 4+4*len(samples))
	}
	if idx := binary.LittleEndian.Uint32(frame[0:4]); idx != 7 {
		t.Fatalf("decoded index = %d, want 7", idx)
	}
	for i, want := range samples {
		bits := binary.LittleEndian.Uint32(frame[4+4*i : 8+4*i])
		got := math.Float32frombits(bits)
		if got != want {
			t.Fatalf("sample %d = %v, want %v", i, got, want)
		}
	}
}

func TestEncodeChunkEmptySamples(t *testing.T) {
	frame := encodeChunk(0, nil)
	if len(frame) != 4 {
		t.Fatalf("frame length = %d, want 4 (index only)", len(frame))
	}
}

func newTestSession() *liveSession {
	return &liveSession{
		requests: make(chan clientMessage, 4),
		out:      make(chan outFrame, 64),
		done:     make(chan struct{}),
	}
}

func TestStreamChunksRespectsStopLatch(t *testing.T) {
	s := newTestSession()
	s.st.latch.Stop()

	samples := make([]float32, chunkSamples*2)
	err := s.streamChunks(1, samples)
	if err != errStopped {
		t.Fatalf("err = %v, want errStopped", err)
	}
	if len(s.out) != 0 {
		t.Fatalf("expected no frames queued once latch is stopped, got %d", len(s.out))
	}
}

func TestStreamChunksEmitsAllChunksInOrder(t *testing.T) {
	s := newTestSession()
	samples := make([]float32, chunkSamples+10)
	for i := range samples {
		samples[i] = float32(i)
	}

	if err := s.streamChunks(3, samples); err != nil {
		t.Fatalf("streamChunks: %v", err)
	}

	close(s.out)
	var frames [][]byte
	for f := range s.out {
		frames = append(frames, f.binary)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}

	first := frames[0]
	if idx := binary.LittleEndian.Uint32(first[0:4]); idx != 3 {
		t.Fatalf("frame 0 index = %d, want 3", idx)
	}
	if (len(first)-4)/4 != chunkSamples {
		t.Fatalf("frame 0 sample count = %d, want %d", (len(first)-4)/4, chunkSamples)
	}

	second := frames[1]
	if (len(second)-4)/4 != 10 {
		t.Fatalf("frame 1 sample count = %d, want 10", (len(second)-4)/4)
	}
}

func TestRunSentencesReturnsImmediatelyWhenStopped(t *testing.T) {
	s := newTestSession()
	s.st.latch.Stop()

	s.runSentences([]string{"one", "two"}, "af_heart", 1.0)

	if len(s.out) != 0 {
		t.Fatalf("expected no output once the latch is stopped before the loop starts, got %d frames", len(s.out))
	}
	if idx := s.st.counter; idx != 1 {
		t.Fatalf("counter = %d, want 1 (the first sentence's index is still consumed)", idx)
	}
}
