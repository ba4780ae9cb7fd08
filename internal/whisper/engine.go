// Package whisper transcribes audio through the whisper.cpp command line
// tool. The model "loads" by verifying the binary and model file exist; each
// transcription is one CLI invocation producing JSON output.
package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/user/meetscribe/internal/types"
)

// Config holds transcription settings.
type Config struct {
	Bin       string // whisper-cli
	ModelPath string
	Language  string
}

// Engine implements types.SpeechEngine over whisper.cpp.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	loaded bool
}

var _ types.SpeechEngine = (*Engine)(nil)

// New creates an engine.
func New(cfg Config, logger *slog.Logger) *Engine {
	if cfg.Bin == "" {
		cfg.Bin = "whisper-cli"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	return &Engine{cfg: cfg, logger: logger}
}

// IsModelDownloaded reports whether the model file exists on disk.
func (e *Engine) IsModelDownloaded() bool {
	info, err := os.Stat(e.cfg.ModelPath)
	return err == nil && info.Size() > 0
}

// IsModelLoaded reports whether LoadModel has succeeded.
func (e *Engine) IsModelLoaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// LoadModel verifies the binary and model file are usable.
func (e *Engine) LoadModel(ctx context.Context) error {
	if _, err := exec.LookPath(e.cfg.Bin); err != nil {
		return fmt.Errorf("whisper binary not found: %w", err)
	}
	if !e.IsModelDownloaded() {
		return fmt.Errorf("model file missing: %s", e.cfg.ModelPath)
	}
	e.mu.Lock()
	e.loaded = true
	e.mu.Unlock()
	e.logger.Info("transcription model ready", "model", e.cfg.ModelPath)
	return nil
}

// Transcribe runs whisper.cpp over a whole audio file and returns its
// segments with offsets in seconds.
func (e *Engine) Transcribe(ctx context.Context, audioPath string) ([]*types.TranscriptSegment, error) {
	return e.run(ctx, audioPath, 0)
}

// TranscribeChunk transcribes one audio chunk, merging the CLI's segments
// into a single segment shifted to the chunk's offset within the meeting.
// Returns nil for silence.
func (e *Engine) TranscribeChunk(ctx context.Context, chunk types.AudioChunk) (*types.TranscriptSegment, error) {
	tmp, err := os.CreateTemp("", "meetscribe-chunk-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp chunk file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(chunk.Data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp chunk file: %w", err)
	}
	tmp.Close()

	segs, err := e.run(ctx, tmp.Name(), chunk.StartOffset)
	if err != nil {
		return nil, err
	}
	return mergeChunkSegments(segs, chunk), nil
}

// run invokes the CLI with JSON output and parses the result, shifting all
// offsets by shift seconds.
func (e *Engine) run(ctx context.Context, audioPath string, shift float64) ([]*types.TranscriptSegment, error) {
	outDir, err := os.MkdirTemp("", "meetscribe-whisper-")
	if err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	defer os.RemoveAll(outDir)
	outPrefix := filepath.Join(outDir, "out")

	cmd := exec.CommandContext(ctx, e.cfg.Bin,
		"-m", e.cfg.ModelPath,
		"-l", e.cfg.Language,
		"-oj",
		"-of", outPrefix,
		"-f", audioPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("whisper failed: %w\n%s", err, string(out))
	}

	data, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}
	return parseOutput(data, shift)
}

// whisperOutput is the shape of whisper.cpp -oj output.
type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"` // milliseconds
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// parseOutput converts whisper JSON into segments, dropping empty text and
// shifting offsets by shift seconds.
func parseOutput(data []byte, shift float64) ([]*types.TranscriptSegment, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}
	var segs []*types.TranscriptSegment
	for _, t := range out.Transcription {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		segs = append(segs, &types.TranscriptSegment{
			StartTime: shift + float64(t.Offsets.From)/1000,
			EndTime:   shift + float64(t.Offsets.To)/1000,
			Text:      text,
		})
	}
	return segs, nil
}

// mergeChunkSegments collapses a chunk's segments into one. Offsets span the
// transcribed speech; nil means silence.
func mergeChunkSegments(segs []*types.TranscriptSegment, chunk types.AudioChunk) *types.TranscriptSegment {
	if len(segs) == 0 {
		return nil
	}
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		parts = append(parts, s.Text)
	}
	return &types.TranscriptSegment{
		StartTime: segs[0].StartTime,
		EndTime:   segs[len(segs)-1].EndTime,
		Text:      strings.Join(parts, " "),
	}
}
