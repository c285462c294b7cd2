// Package phonemize splits incoming text into sentences, converts
// sentences to IPA via an external phonemizer tool, and estimates
// per-word timings from synthesized sample counts.
package phonemize

import "strings"

// terminators are the sentence-ending runes the splitter recognizes: ASCII
// and CJK forms, per spec.md's sentence-split contract. Note ':' and ';'
// are deliberately NOT terminators here even though the live session's
// append-buffering logic treats them as flush triggers — see DESIGN.md,
// "append terminator ambiguity".
var terminators = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true,
}

// Split performs a single-pass scan emitting a sentence every time it sees
// a terminator. If flush is true, trailing text without a terminator is
// emitted as a final sentence; otherwise it is returned separately as
// leftover, to be retained by the caller for the next append.
func Split(text string, flush bool) (sentences []string, leftover string) {
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		if terminators[r] {
			s := strings.TrimSpace(cur.String())
			if s != "" {
				sentences = append(sentences, s)
			}
			cur.Reset()
		}
	}
	rest := strings.TrimSpace(cur.String())
	if rest == "" {
		return sentences, ""
	}
	if flush {
		sentences = append(sentences, rest)
		return sentences, ""
	}
	return sentences, rest
}
