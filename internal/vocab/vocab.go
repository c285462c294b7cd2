// Package vocab maps IPA phoneme characters to the fixed token IDs the
// Kokoro vocoder was trained on, and frames token sequences with the
// model's start/end sentinel.
package vocab

// Sentinel is the start/end token ID. It is never a member of the
// phoneme-to-ID mapping domain; "$" is the sentinel's documented glyph but
// is deliberately absent from ipaToToken so it can never be double-mapped.
const Sentinel uint16 = 0

// ipaToToken is the non-contiguous IPA->token-ID table from the model's
// config.json. IDs are not sequential positions in this source file; they
// are the exact IDs the embedding table was trained with. Do not regenerate
// this table positionally from a string — that produces unintelligible
// audio (see DESIGN.md, "Vocabulary table").
var ipaToToken = map[rune]uint16{
	';': 1, ':': 2, ',': 3, '.': 4, '!': 5, '?': 6, '—': 9, '…': 10,
	'"': 11, '(': 12, ')': 13, '“': 14, '”': 15, ' ': 16,
	'a': 43, 'b': 44, 'c': 45, 'd': 46, 'e': 47, 'f': 48, 'h': 50,
	'i': 51, 'j': 52, 'k': 53, 'l': 54, 'm': 55, 'n': 56, 'o': 57,
	'p': 58, 'q': 59, 'r': 60, 's': 61, 't': 62, 'u': 63, 'v': 64,
	'w': 65, 'x': 66, 'y': 67, 'z': 68, 'ɑ': 69, 'ɐ': 70, 'ɒ': 71,
	'æ': 72, 'ɓ': 73, 'ʙ': 74, 'β': 75, 'ɔ': 76, 'ɕ': 77, 'ç': 78,
	'ɗ': 79, 'ɖ': 80, 'ð': 81, 'ʤ': 82, 'ə': 83, 'ɘ': 84, 'ɚ': 85,
	'ɛ': 86, 'ɜ': 87, 'ɝ': 88, 'ɞ': 89, 'ɟ': 90, 'ʄ': 91, 'ɡ': 92,
	'ɠ': 93, 'ɢ': 94, 'ʛ': 95, 'ɦ': 96, 'ɧ': 97, 'ħ': 98, 'ɥ': 99,
	'ʜ': 100, 'ɨ': 101, 'ɪ': 102, 'ʝ': 103, 'ɭ': 104, 'ɬ': 105,
	'ɫ': 106, 'ɮ': 107, 'ʟ': 108, 'ɱ': 109, 'ɯ': 110, 'ɰ': 111,
	'ŋ': 112, 'ɳ': 113, 'ɲ': 114, 'ɴ': 115, 'ø': 116, 'ɵ': 117,
	'ɸ': 118, 'θ': 119, 'œ': 120, 'ɶ': 121, 'ʘ': 122, 'ɹ': 123,
	'ɺ': 124, 'ɾ': 125, 'ɻ': 126, 'ʀ': 127, 'ʁ': 128, 'ɽ': 129,
	'ʂ': 130, 'ʃ': 131, 'ʈ': 132, 'ʧ': 133, 'ʉ': 134, 'ʊ': 135,
	'ʋ': 136, 'ⱱ': 137, 'ʌ': 138, 'ɣ': 139, 'ɤ': 140, 'ʍ': 141,
	'χ': 142, 'ʎ': 143, 'ʏ': 144, 'ʑ': 145, 'ʐ': 146, 'ʒ': 147,
	'ʔ': 148, 'ʡ': 149, 'ʕ': 150, 'ʢ': 151, 'ǀ': 152, 'ǁ': 153,
	'ǂ': 154, 'ǃ': 155, 'ˈ': 156, 'ˌ': 157, 'ː': 158, 'ˑ': 159,
	'ʼ': 160, 'ʴ': 161, 'ʰ': 162, 'ʱ': 163, 'ʲ': 164, 'ʷ': 165,
	'ˠ': 166, 'ˤ': 167, '˞': 168, '↓': 169, '↑': 170, '→': 171,
	'↗': 172, '↘': 173, 'ᵻ': 177,
}

func init() {
	if _, ok := ipaToToken['$']; ok {
		panic("vocab: sentinel glyph must not be a mapping domain member")
	}
}

// Tokenize maps a phoneme string to model token IDs, framed with the
// sentinel at both ends. Unknown runes are silently skipped. The result
// always has length >= 2.
func Tokenize(phonemes string) []uint16 {
	out := make([]uint16, 0, len(phonemes)+2)
	out = append(out, Sentinel)
	for _, r := range phonemes {
		if id, ok := ipaToToken[r]; ok {
			out = append(out, id)
		}
	}
	out = append(out, Sentinel)
	return out
}
