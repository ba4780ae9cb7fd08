// Package audio captures meeting audio through ffmpeg. One ffmpeg process
// writes two outputs: the full session recording and a rolling directory of
// fixed-length chunk files that are dispatched to the registered callback as
// they complete.
package audio

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/user/meetscribe/internal/types"
)

// Config holds capture settings.
type Config struct {
	FFmpegBin   string
	InputFormat string // avfoundation, pulse, alsa
	InputDevice string
	SampleRate  int
	Channels    int
	ChunkSecs   int
	// Dir is the root directory for session recordings.
	Dir string
}

// Recorder runs one ffmpeg capture at a time.
type Recorder struct {
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	cb          func(types.AudioChunk)
	cmd         *exec.Cmd
	outPath     string
	logFile     *os.File
	procExited  chan struct{}
	watcherDone chan struct{}
}

// NewRecorder creates a recorder. The ffmpeg binary is resolved at start, not
// here, so a missing install surfaces as a start error.
func NewRecorder(cfg Config, logger *slog.Logger) *Recorder {
	if cfg.FFmpegBin == "" {
		cfg.FFmpegBin = "ffmpeg"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}
	if cfg.ChunkSecs == 0 {
		cfg.ChunkSecs = 15
	}
	return &Recorder{cfg: cfg, logger: logger}
}

// OnChunk registers the chunk callback. Must be called before StartRecording.
func (r *Recorder) OnChunk(fn func(types.AudioChunk)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cb = fn
}

// StartRecording launches ffmpeg for the given capture id.
func (r *Recorder) StartRecording(id types.CaptureID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		return fmt.Errorf("recording already in progress")
	}
	if _, err := exec.LookPath(r.cfg.FFmpegBin); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}

	dir := filepath.Join(r.cfg.Dir, string(id))
	chunksDir := filepath.Join(dir, "chunks")
	if err := os.MkdirAll(chunksDir, 0o755); err != nil {
		return fmt.Errorf("create recording directory: %w", err)
	}
	outPath := filepath.Join(dir, "recording.wav")

	ch := fmt.Sprintf("%d", r.cfg.Channels)
	rate := fmt.Sprintf("%d", r.cfg.SampleRate)
	args := []string{
		"-f", r.cfg.InputFormat,
		"-i", r.cfg.InputDevice,
		"-ac", ch, "-ar", rate, "-y", outPath,
		"-f", "segment",
		"-segment_time", fmt.Sprintf("%d", r.cfg.ChunkSecs),
		"-reset_timestamps", "1",
		"-ac", ch, "-ar", rate,
		filepath.Join(chunksDir, "chunk_%05d.wav"),
	}
	cmd := exec.Command(r.cfg.FFmpegBin, args...)

	// Keep stderr for diagnostics.
	if logFile, err := os.Create(outPath + ".ffmpeg.log"); err == nil {
		cmd.Stderr = logFile
		r.logFile = logFile
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	r.cmd = cmd
	r.outPath = outPath
	r.procExited = make(chan struct{})
	r.watcherDone = make(chan struct{})

	go func(exited chan struct{}) {
		cmd.Wait()
		close(exited)
	}(r.procExited)
	go r.watch(chunksDir, r.cb, r.procExited, r.watcherDone)

	r.logger.Info("recording started", "capture_id", id, "path", outPath)
	return nil
}

// StopRecording signals ffmpeg to finish, waits for the chunk watcher to
// flush, and returns the recording path, or "" when no usable file exists.
func (r *Recorder) StopRecording() (string, error) {
	r.mu.Lock()
	cmd := r.cmd
	outPath := r.outPath
	procExited := r.procExited
	watcherDone := r.watcherDone
	logFile := r.logFile
	r.cmd = nil
	r.outPath = ""
	r.logFile = nil
	r.mu.Unlock()

	if cmd == nil {
		return "", nil
	}

	// SIGINT lets ffmpeg finalize the WAV header.
	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		r.logger.Warn("failed to signal ffmpeg", "error", err)
	}
	select {
	case <-procExited:
	case <-time.After(10 * time.Second):
		r.logger.Warn("ffmpeg did not exit, killing")
		cmd.Process.Kill()
		<-procExited
	}
	<-watcherDone
	if logFile != nil {
		logFile.Close()
	}

	info, err := os.Stat(outPath)
	if err != nil || info.Size() == 0 {
		return "", nil
	}
	return outPath, nil
}

// watch polls the chunk directory and dispatches completed chunk files in
// sequence order. A chunk is complete once its successor exists or ffmpeg has
// exited. The watcher drains remaining chunks after exit, then returns.
func (r *Recorder) watch(chunksDir string, cb func(types.AudioChunk), procExited, done chan struct{}) {
	defer close(done)
	next := 0
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		exited := false
		select {
		case <-procExited:
			exited = true
		default:
		}

		ready := readyChunks(chunksDir, next, exited)
		for _, path := range ready {
			data, err := os.ReadFile(path)
			if err != nil {
				r.logger.Warn("failed to read chunk", "path", path, "error", err)
			} else if cb != nil {
				cb(types.AudioChunk{
					Seq:         next,
					Data:        data,
					StartOffset: float64(next * r.cfg.ChunkSecs),
					EndOffset:   float64((next + 1) * r.cfg.ChunkSecs),
				})
			}
			next++
		}

		if exited {
			return
		}
		select {
		case <-ticker.C:
		case <-procExited:
		}
	}
}

// readyChunks returns the paths of chunk files from index next onward that
// are safe to read: every file whose successor exists, plus the trailing file
// once the writer has exited.
func readyChunks(dir string, next int, writerExited bool) []string {
	var out []string
	for {
		cur := chunkPath(dir, next)
		if _, err := os.Stat(cur); err != nil {
			return out
		}
		if _, err := os.Stat(chunkPath(dir, next+1)); err != nil && !writerExited {
			return out
		}
		out = append(out, cur)
		next++
	}
}

func chunkPath(dir string, seq int) string {
	return filepath.Join(dir, fmt.Sprintf("chunk_%05d.wav", seq))
}
