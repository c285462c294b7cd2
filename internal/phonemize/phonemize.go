package phonemize

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Phonemizer invokes an external tool that converts text to IPA for a
// given locale.
type Phonemizer struct {
	Path   string // e.g. "espeak-ng"
	Locale string // e.g. "en-us"
}

// NewPhonemizer builds a Phonemizer bound to the given external binary
// path and locale.
func NewPhonemizer(path, locale string) *Phonemizer {
	return &Phonemizer{Path: path, Locale: locale}
}

// Phonemize runs the external phonemizer on text and returns cleaned IPA:
// CR/LF stripped and whitespace runs collapsed to single spaces. No
// further normalization is performed — the returned string must already
// match the form the vocabulary table expects.
func (p *Phonemizer) Phonemize(ctx context.Context, text string) (string, error) {
	cmd := exec.CommandContext(ctx, p.Path, "--ipa", "-q", "-v", p.Locale, text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("phonemize: %s: %w: %s", p.Path, err, stderr.String())
	}
	return cleanPhonemes(stdout.String()), nil
}

func cleanPhonemes(raw string) string {
	raw = strings.ReplaceAll(raw, "\r", "")
	raw = strings.ReplaceAll(raw, "\n", " ")
	fields := strings.Fields(raw)
	return strings.Join(fields, " ")
}
