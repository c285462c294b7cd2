package session

import "testing"

func TestAppendBufferingS4Scenario(t *testing.T) {
	toSynth, pending := appendBuffering("", "Hello ")
	if len(toSynth) != 0 {
		t.Fatalf("expected nothing synthesized after first append, got %v", toSynth)
	}
	if pending != "Hello " {
		t.Fatalf("pending = %q, want %q", pending, "Hello ")
	}

	toSynth, pending = appendBuffering(pending, "world. Foo")
	if len(toSynth) != 1 || toSynth[0] != "Hello world." {
		t.Fatalf("toSynth = %v, want [%q]", toSynth, "Hello world.")
	}
	if pending != "Foo" {
		t.Fatalf("pending = %q, want %q", pending, "Foo")
	}
}

func TestAppendBufferingNoTerminatorRetainsRaw(t *testing.T) {
	toSynth, pending := appendBuffering("", "just some words")
	if len(toSynth) != 0 {
		t.Fatalf("expected nothing synthesized, got %v", toSynth)
	}
	if pending != "just some words" {
		t.Fatalf("pending = %q, want raw input preserved", pending)
	}
}

func TestAppendBufferingColonFlushesWhole(t *testing.T) {
	toSynth, pending := appendBuffering("", "Consider this:")
	if len(toSynth) != 1 || toSynth[0] != "Consider this:" {
		t.Fatalf("toSynth = %v, want the whole fragment handed to C4 whole", toSynth)
	}
	if pending != "" {
		t.Fatalf("pending = %q, want empty after a terminator-ending buffer", pending)
	}
}

func TestAppendBufferingSemicolonFlushesWhole(t *testing.T) {
	toSynth, pending := appendBuffering("one thing", "; another thing;")
	if len(toSynth) != 1 {
		t.Fatalf("toSynth = %v, want exactly one fragment", toSynth)
	}
	if pending != "" {
		t.Fatalf("pending = %q, want empty", pending)
	}
}

func TestAppendBufferingMultipleCompleteSentences(t *testing.T) {
	toSynth, pending := appendBuffering("", "One. Two. Three is unfinished")
	if len(toSynth) != 2 || toSynth[0] != "One." || toSynth[1] != "Two." {
		t.Fatalf("toSynth = %v, want [One. Two.]", toSynth)
	}
	if pending != "Three is unfinished" {
		t.Fatalf("pending = %q, want %q", pending, "Three is unfinished")
	}
}

func TestAppendBufferingEmptyInputs(t *testing.T) {
	toSynth, pending := appendBuffering("", "")
	if len(toSynth) != 0 || pending != "" {
		t.Fatalf("appendBuffering(\"\",\"\") = %v, %q, want nil, \"\"", toSynth, pending)
	}
}

func TestNextIndexMonotonic(t *testing.T) {
	var s state
	if idx := s.nextIndex(); idx != 0 {
		t.Fatalf("first index = %d, want 0", idx)
	}
	if idx := s.nextIndex(); idx != 1 {
		t.Fatalf("second index = %d, want 1", idx)
	}
	if idx := s.nextIndex(); idx != 2 {
		t.Fatalf("third index = %d, want 2", idx)
	}
}

func TestResetForFullSynthesize(t *testing.T) {
	var s state
	s.nextIndex()
	s.nextIndex()
	s.pending = "leftover"
	s.latch.Stop()

	s.resetForFullSynthesize()

	if s.counter != 0 {
		t.Fatalf("counter = %d, want 0 after reset", s.counter)
	}
	if s.pending != "" {
		t.Fatalf("pending = %q, want empty after reset", s.pending)
	}
	if s.latch.Stopped() {
		t.Fatal("latch should be reset (not stopped) after resetForFullSynthesize")
	}
	if idx := s.nextIndex(); idx != 0 {
		t.Fatalf("index after reset = %d, want 0", idx)
	}
}
