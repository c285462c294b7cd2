package jobs

import (
	"path/filepath"
	"testing"
)

func TestWithinRoot(t *testing.T) {
	root, err := filepath.Abs("/app/storage")
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		path string
		want bool
	}{
		{"/app/storage/abc.mp3", true},
		{"/app/storage/sub/abc.mp3", true},
		{"/etc/passwd", false},
		{"/app/storage-evil/abc.mp3", false},
		{"/app/storage/../../etc/passwd", false},
	}
	for _, c := range cases {
		abs, err := filepath.Abs(c.path)
		if err != nil {
			t.Fatal(err)
		}
		if got := withinRoot(abs, root); got != c.want {
			t.Errorf("withinRoot(%q, %q) = %v, want %v", abs, root, got, c.want)
		}
	}
}
