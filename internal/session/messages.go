// Package session implements the live WebSocket TTS orchestrator: an auth
// handshake, then a loop that accepts (possibly incremental) text, splits
// it into sentences, synthesizes each one, and streams PCM chunks and
// word-timing metadata back to the client.
package session

import "github.com/aldengreen/kokoro-live-tts/internal/phonemize"

// clientMessage is the envelope for every client->server text frame; Type
// selects which optional fields apply.
type clientMessage struct {
	Type  string  `json:"type"`
	Token string  `json:"token,omitempty"`
	Text  string  `json:"text,omitempty"`
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`
}

const (
	msgAuth             = "auth"
	msgSynthesize       = "synthesize"
	msgSynthesizeAppend = "synthesize_append"
	msgStop             = "stop"
)

// Server -> client message types.
type authOK struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

type authError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type wordTiming struct {
	Type          string                 `json:"type"`
	SentenceIndex uint32                 `json:"sentence_index"`
	Words         []phonemize.WordTiming `json:"words"`
}

type sentenceDone struct {
	Type          string `json:"type"`
	SentenceIndex uint32 `json:"sentence_index"`
}

type doneMsg struct {
	Type string `json:"type"`
}

type stoppedMsg struct {
	Type string `json:"type"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newAuthOK(username string) authOK      { return authOK{Type: "auth_ok", Username: username} }
func newAuthError(message string) authError { return authError{Type: "auth_error", Message: message} }
func newDone() doneMsg                      { return doneMsg{Type: "done"} }
func newStopped() stoppedMsg                { return stoppedMsg{Type: "stopped"} }
func newError(message string) errorMsg      { return errorMsg{Type: "error", Message: message} }
func newSentenceDone(idx uint32) sentenceDone {
	return sentenceDone{Type: "sentence_done", SentenceIndex: idx}
}
func newWordTiming(idx uint32, words []phonemize.WordTiming) wordTiming {
	return wordTiming{Type: "word_timing", SentenceIndex: idx, Words: words}
}
