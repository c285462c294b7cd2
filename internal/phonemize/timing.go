package phonemize

import "strings"

// WordTiming is a single word's estimated placement within a synthesized
// sentence's audio.
type WordTiming struct {
	Word    string  `json:"word"`
	StartMs float64 `json:"start_ms"`
	EndMs   float64 `json:"end_ms"`
}

// EstimateWordTimings splits text on whitespace and allocates the total
// synthesized duration (sampleCount/sampleRate seconds) proportionally to
// each word's character length. The ONNX model emits no alignment, so this
// is the cheapest honest estimate — millisecond accuracy is not a
// requirement, only a plausible distribution.
func EstimateWordTimings(text string, sampleCount, sampleRate int) []WordTiming {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	totalMs := float64(sampleCount) * 1000 / float64(sampleRate)

	totalChars := 0
	for _, w := range words {
		totalChars += len([]rune(w))
	}
	if totalChars == 0 {
		return nil
	}

	out := make([]WordTiming, 0, len(words))
	cursor := 0.0
	for _, w := range words {
		share := float64(len([]rune(w))) / float64(totalChars) * totalMs
		start := cursor
		end := cursor + share
		out = append(out, WordTiming{Word: w, StartMs: start, EndMs: end})
		cursor = end
	}
	return out
}
