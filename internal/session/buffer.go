package session

import (
	"strings"

	"github.com/aldengreen/kokoro-live-tts/internal/phonemize"
)

// appendBuffering implements spec.md's incremental-append buffering
// contract: concatenate newText onto pending, split into sentences, and
// decide how much to synthesize now versus retain.
//
// If the trimmed concatenation ends with one of ". ! ? : ;", every
// complete sentence C4's splitter finds is synthesizable, and so is any
// trailing fragment left over (handed to the phonemizer whole) — the
// buffer becomes empty either way. Note ':' and ';' are accepted here as
// terminators for deciding whether to flush, even though C4's splitter
// itself does not split on them: a buffer ending in ':' is handed whole
// to C4, which treats it as a single sentence. This discrepancy is
// preserved deliberately — see DESIGN.md, "append terminator ambiguity".
//
// Otherwise, every complete sentence found is synthesized immediately and
// the trailing unterminated fragment is retained as the new pending
// buffer. If no terminator was found at all, nothing is synthesized and
// the raw, untouched concatenation is retained (so word boundaries across
// appends are never corrupted by trimming).
func appendBuffering(pending, newText string) (toSynthesize []string, newPending string) {
	combined := pending + newText
	trimmed := strings.TrimRight(combined, " \t\n\r")

	endsWithTerminator := false
	if trimmed != "" {
		switch trimmed[len(trimmed)-1] {
		case '.', '!', '?', ':', ';':
			endsWithTerminator = true
		}
	}

	sentences, leftover := phonemize.Split(combined, false)

	if endsWithTerminator {
		all := sentences
		if leftover != "" {
			all = append(all, leftover)
		}
		return all, ""
	}

	if len(sentences) == 0 {
		return nil, combined
	}
	return sentences, leftover
}
