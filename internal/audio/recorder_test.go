package audio

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeChunk(t *testing.T, dir string, seq int) {
	t.Helper()
	if err := os.WriteFile(chunkPath(dir, seq), []byte("pcm"), 0o644); err != nil {
		t.Fatalf("write chunk %d: %v", seq, err)
	}
}

func TestReadyChunksWaitsForSuccessor(t *testing.T) {
	dir := t.TempDir()

	if got := readyChunks(dir, 0, false); len(got) != 0 {
		t.Fatalf("empty dir should yield nothing, got %v", got)
	}

	// A lone chunk may still be written to; it is not ready.
	writeChunk(t, dir, 0)
	if got := readyChunks(dir, 0, false); len(got) != 0 {
		t.Fatalf("trailing chunk must not be ready while writer runs, got %v", got)
	}

	// Its successor appearing makes it ready, but not the successor itself.
	writeChunk(t, dir, 1)
	got := readyChunks(dir, 0, false)
	if len(got) != 1 || filepath.Base(got[0]) != "chunk_00000.wav" {
		t.Fatalf("expected only chunk 0 ready, got %v", got)
	}
}

func TestReadyChunksDrainsAfterExit(t *testing.T) {
	dir := t.TempDir()
	writeChunk(t, dir, 0)
	writeChunk(t, dir, 1)
	writeChunk(t, dir, 2)

	got := readyChunks(dir, 0, true)
	if len(got) != 3 {
		t.Fatalf("expected all chunks after writer exit, got %v", got)
	}

	// Resuming from a later index skips dispatched chunks.
	got = readyChunks(dir, 2, true)
	if len(got) != 1 || filepath.Base(got[0]) != "chunk_00002.wav" {
		t.Fatalf("expected only chunk 2, got %v", got)
	}
}

func TestStopRecordingWithoutStart(t *testing.T) {
	r := NewRecorder(Config{Dir: t.TempDir()}, slog.Default())
	path, err := r.StopRecording()
	if err != nil {
		t.Fatalf("stop without start: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}
