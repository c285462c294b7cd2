package jobs

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func multipartRequest(t *testing.T, fields map[string]string, fileField, fileContent string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, "text.txt")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(fileContent))
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/generate", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestGenerateMissingTextFile(t *testing.T) {
	h := &Handlers{}
	req := multipartRequest(t, map[string]string{"voice": "af_heart", "speed": "1.0"}, "", "")
	rr := httptest.NewRecorder()
	h.Generate(rr, req, "alice")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "text_file") {
		t.Fatalf("body = %q, want mention of text_file", rr.Body.String())
	}
}

func TestGenerateInvalidSpeed(t *testing.T) {
	h := &Handlers{}
	req := multipartRequest(t, map[string]string{"speed": "not_a_number"}, "text_file", "hello")
	rr := httptest.NewRecorder()
	h.Generate(rr, req, "alice")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "speed") {
		t.Fatalf("body = %q, want mention of speed", rr.Body.String())
	}
}

func TestStatusInvalidUUID(t *testing.T) {
	h := &Handlers{}
	req := httptest.NewRequest(http.MethodGet, "/status/not-a-uuid", nil)
	req.SetPathValue("id", "not-a-uuid")
	rr := httptest.NewRecorder()
	h.Status(rr, req, "alice")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}
