package voicebank

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// buildNPY encodes a v1 .npy payload for a [rows, Cols] f32 matrix filled
// with row-identifying values (row i's cells all equal float32(i)).
func buildNPY(t *testing.T, rows int) []byte {
	t.Helper()
	header := "{'descr': '<f4', 'fortran_order': False, 'shape': (" +
		itoa(rows) + ", " + itoa(Cols) + "), }"
	for (10+len(header))%16 != 0 {
		header += " "
	}
	header += "\n"

	var buf bytes.Buffer
	buf.Write(npyMagic[:])
	buf.WriteByte(1)
	buf.WriteByte(0)
	var hlen [2]byte
	binary.LittleEndian.PutUint16(hlen[:], uint16(len(header)))
	buf.Write(hlen[:])
	buf.WriteString(header)

	for r := 0; r < rows; r++ {
		for c := 0; c < Cols; c++ {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], math.Float32bits(float32(r)))
			buf.Write(b[:])
		}
	}
	return buf.Bytes()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

func writeBankZip(t *testing.T, voices map[string]int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "voices.bin")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, rows := range voices {
		w, err := zw.Create(name + ".npy")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(buildNPY(t, rows)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndShape(t *testing.T) {
	path := writeBankZip(t, map[string]int{"af_heart": Rows})
	bank, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bank.Has("af_heart") {
		t.Fatal("expected af_heart voice to be present")
	}
	row, err := bank.Get("af_heart", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(row) != Cols {
		t.Fatalf("row length = %d, want %d", len(row), Cols)
	}
}

func TestClamping(t *testing.T) {
	path := writeBankZip(t, map[string]int{"af_heart": Rows})
	bank, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	at509, err := bank.Get("af_heart", 509)
	if err != nil {
		t.Fatal(err)
	}
	at999, err := bank.Get("af_heart", 999)
	if err != nil {
		t.Fatal(err)
	}
	for i := range at509 {
		if at509[i] != at999[i] {
			t.Fatalf("clamp mismatch at %d: %v vs %v", i, at509[i], at999[i])
		}
	}
}

func TestRejectsWrongShape(t *testing.T) {
	path := writeBankZip(t, map[string]int{"bad_voice": 100, "af_heart": Rows})
	bank, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if bank.Has("bad_voice") {
		t.Fatal("expected bad_voice to be rejected for wrong row count")
	}
	if !bank.Has("af_heart") {
		t.Fatal("expected af_heart to still load despite a bad sibling entry")
	}
}

func TestNotFound(t *testing.T) {
	path := writeBankZip(t, map[string]int{"af_heart": Rows})
	bank, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := bank.Get("nonexistent", 0); err == nil {
		t.Fatal("expected error for unknown voice")
	}
}
