package jobs

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/aldengreen/kokoro-live-tts/internal/metrics"
)

// renderTimeout bounds each external tool invocation (kokoro-tts, ffmpeg), so
// a hung subprocess can't leave a job's worker goroutine — and its job row —
// stuck forever.
const renderTimeout = 5 * time.Minute

// WorkerConfig carries the external-tool paths and directories the worker
// needs to render a job.
type WorkerConfig struct {
	TTSCLIPath     string // e.g. "kokoro-tts"
	MP3EncoderPath string // e.g. "ffmpeg"
	StoragePath    string // persistent MP3 destination root
	TestMode       bool   // bypass the external tools with a deterministic silent WAV
}

// Worker renders one job's text into an MP3 and updates the job store.
type Worker struct {
	cfg   WorkerConfig
	store *Store
}

// NewWorker builds a Worker bound to a store and tool configuration.
func NewWorker(store *Store, cfg WorkerConfig) *Worker {
	return &Worker{cfg: cfg, store: store}
}

// Run renders jobID's text (already on disk at textPath) and writes the
// finished MP3 into cfg.StoragePath, updating the job row on completion or
// failure. It never panics or crashes the caller on tool failure — all
// errors are recorded on the job row.
func (w *Worker) Run(jobID, textPath, voice, speed string) {
	mp3Path, err := w.render(jobID, textPath, voice, speed)
	if err != nil {
		slog.Error("jobs: render failed", "job_id", jobID, "err", err)
		if markErr := w.store.MarkError(jobID, err.Error()); markErr != nil {
			slog.Error("jobs: failed to mark job error", "job_id", jobID, "err", markErr)
		}
		metrics.JobsCompleted.WithLabelValues("error").Inc()
		return
	}
	if err := w.store.MarkCompleted(jobID, mp3Path); err != nil {
		slog.Error("jobs: failed to mark job completed", "job_id", jobID, "err", err)
		metrics.JobsCompleted.WithLabelValues("error").Inc()
		return
	}
	metrics.JobsCompleted.WithLabelValues("completed").Inc()
}

func (w *Worker) render(jobID, textPath, voice, speed string) (string, error) {
	wavPath := filepath.Join(os.TempDir(), jobID+".wav")
	mp3Path := filepath.Join(w.cfg.StoragePath, jobID+".mp3")
	defer os.Remove(wavPath)

	if w.cfg.TestMode {
		if err := writeSilentWAV(wavPath); err != nil {
			return "", fmt.Errorf("test-mode wav: %w", err)
		}
	} else {
		if err := w.runTTSCLI(jobID, textPath, wavPath, voice, speed); err != nil {
			return "", err
		}
	}

	if err := w.runMP3Encoder(jobID, wavPath, mp3Path); err != nil {
		return "", err
	}
	return mp3Path, nil
}

// writeSilentWAV produces a deterministic 1-second, 22050Hz mono silent
// WAV, matching the original test-mode behavior bit for bit.
func writeSilentWAV(path string) error {
	const sampleRate = 22050
	samples := make([]byte, sampleRate*2) // 16-bit silence, already zero

	dataLen := len(samples)
	totalLen := 44 + dataLen
	buf := make([]byte, totalLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(totalLen-8))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)                   // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	copy(buf[44:], samples)

	return os.WriteFile(path, buf, 0o644)
}

func (w *Worker) runTTSCLI(jobID, textPath, wavPath, voice, speed string) error {
	ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, w.cfg.TTSCLIPath, textPath, wavPath, "--voice", voice, "--speed", speed)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("jobs: tts stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("jobs: tts stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("jobs: spawn tts cli: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	var stdoutTail, stderrTail string
	go func() { defer wg.Done(); stdoutTail = drainLines(jobID, "tts stdout", stdout) }()
	go func() { defer wg.Done(); stderrTail = drainLines(jobID, "tts stderr", stderr) }()
	wg.Wait()

	waitErr := cmd.Wait()
	if waitErr != nil {
		return fmt.Errorf("jobs: tts cli failed: %w: stdout=%s stderr=%s", waitErr, stdoutTail, stderrTail)
	}
	if _, err := os.Stat(wavPath); err != nil {
		return fmt.Errorf("jobs: tts cli did not produce output file: stdout=%s", stdoutTail)
	}
	return nil
}

func (w *Worker) runMP3Encoder(jobID, wavPath, mp3Path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, w.cfg.MP3EncoderPath, "-i", wavPath, "-b:a", "192k", "-y", mp3Path)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("jobs: encoder stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("jobs: encoder stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("jobs: spawn mp3 encoder: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	var stderrTail string
	go func() { defer wg.Done(); drainLines(jobID, "ffmpeg stdout", stdout) }()
	go func() { defer wg.Done(); stderrTail = drainLines(jobID, "ffmpeg stderr", stderr) }()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("jobs: mp3 encode failed: %w: %s", err, stderrTail)
	}
	return nil
}

// drainTailCap bounds how much of a subprocess's output drainLines retains
// for error reporting; every line is still logged as it's read.
const drainTailCap = 64 * 1024

// drainLines reads r line by line and logs each line, returning at most the
// last drainTailCap bytes for error reporting — a runaway child process can
// write unbounded output without growing the retained tail.
func drainLines(jobID, label string, r io.Reader) string {
	var collected []byte
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		slog.Info("jobs: "+label, "job_id", jobID, "line", line)
		collected = append(collected, line...)
		collected = append(collected, '\n')
		if len(collected) > drainTailCap {
			collected = collected[len(collected)-drainTailCap:]
		}
	}
	return string(collected)
}

// ParseSpeed validates that s parses as a finite float, matching spec.md's
// "speed must parse as a finite float" submit-time check.
func ParseSpeed(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid speed: %w", err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid speed: %q is not finite", s)
	}
	return f, nil
}
