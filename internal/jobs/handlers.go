package jobs

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/aldengreen/kokoro-live-tts/internal/metrics"
)

const (
	defaultVoice = "af_heart"
	defaultSpeed = "1.0"

	// DefaultMaxUploadMB is the multipart upload cap used unless overridden
	// by MAX_UPLOAD_MB.
	DefaultMaxUploadMB = 32
)

// Handlers wires the batch submit/status HTTP endpoints to a Store and
// Worker.
type Handlers struct {
	store     *Store
	worker    *Worker
	maxUpload int64
}

// NewHandlers builds the batch job HTTP surface. maxUploadMB bounds the
// multipart text_file upload.
func NewHandlers(store *Store, worker *Worker, maxUploadMB int) *Handlers {
	return &Handlers{store: store, worker: worker, maxUpload: int64(maxUploadMB) << 20}
}

// Generate implements POST /generate: multipart text_file/voice/speed,
// inserts a processing job row, and dispatches rendering to a background
// goroutine.
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request, username string) {
	maxUpload := h.maxUpload
	if maxUpload <= 0 {
		maxUpload = int64(DefaultMaxUploadMB) << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	voice := defaultVoice
	if v := r.FormValue("voice"); v != "" {
		voice = v
	}
	speed := defaultSpeed
	if s := r.FormValue("speed"); s != "" {
		speed = s
	}
	if _, err := ParseSpeed(speed); err != nil {
		writeError(w, http.StatusBadRequest, "invalid speed parameter")
		return
	}

	file, _, err := r.FormFile("text_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing text_file field")
		return
	}
	defer file.Close()
	textBytes, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	jobID := uuid.NewString()

	// Write the upload to disk before creating the job row: if this fails,
	// the caller gets a clean error instead of an orphaned "processing" row
	// with no file behind it.
	textPath := filepath.Join(os.TempDir(), jobID+".txt")
	if err := os.WriteFile(textPath, textBytes, 0o644); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.store.Create(jobID, username, voice, speed); err != nil {
		os.Remove(textPath)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.JobsSubmitted.Inc()

	go func() {
		defer os.Remove(textPath)
		h.worker.Run(jobID, textPath, voice, speed)
	}()

	writeJSON(w, http.StatusOK, map[string]string{"id": jobID})
}

// Status implements GET /status/{id}. A job is only visible to the
// username that submitted it.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request, username string) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid UUID")
		return
	}

	job, err := h.store.Get(id)
	if err != nil {
		if err == ErrNotFound {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job.Username == nil || *job.Username != username {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	switch job.Status {
	case StatusProcessing:
		writeJSON(w, http.StatusOK, map[string]string{"status": "processing"})
	case StatusError:
		msg := ""
		if job.ErrorMessage != nil {
			msg = *job.ErrorMessage
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "message": msg})
	case StatusCompleted:
		h.serveCompleted(w, job)
	default:
		writeError(w, http.StatusInternalServerError, "unknown status")
	}
}

func (h *Handlers) serveCompleted(w http.ResponseWriter, job *Job) {
	if job.FilePath == nil {
		writeError(w, http.StatusInternalServerError, "file missing from storage")
		return
	}
	f, err := os.Open(*job.FilePath)
	if err != nil {
		slog.Error("jobs: completed job file missing", "job_id", job.ID, "path", *job.FilePath, "err", err)
		writeError(w, http.StatusInternalServerError, "file missing from storage")
		return
	}
	defer f.Close()

	if err := h.store.TouchAccessed(job.ID); err != nil {
		slog.Warn("jobs: failed to touch last_accessed_at", "job_id", job.ID, "err", err)
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.mp3"`, job.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, f)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
