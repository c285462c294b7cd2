package jobs

import "testing"

func TestParseSpeedValid(t *testing.T) {
	f, err := ParseSpeed("1.5")
	if err != nil {
		t.Fatal(err)
	}
	if f != 1.5 {
		t.Fatalf("got %v, want 1.5", f)
	}
}

func TestParseSpeedInvalid(t *testing.T) {
	if _, err := ParseSpeed("not_a_number"); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseSpeedRejectsNonFinite(t *testing.T) {
	for _, s := range []string{"NaN", "Inf", "-Inf"} {
		if _, err := ParseSpeed(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}
