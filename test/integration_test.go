//go:build integration

package test

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/meetscribe/internal/bus"
	"github.com/user/meetscribe/internal/config"
	"github.com/user/meetscribe/internal/coordinator"
	"github.com/user/meetscribe/internal/detector"
	"github.com/user/meetscribe/internal/minutes"
	"github.com/user/meetscribe/internal/store"
	"github.com/user/meetscribe/internal/types"
	"github.com/user/meetscribe/pkg/llm"
)

// mockObserver returns a settable list of running applications.
type mockObserver struct {
	mu      sync.Mutex
	samples []types.AppSample
}

func (o *mockObserver) set(samples []types.AppSample) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.samples = samples
}

func (o *mockObserver) Sample(_ context.Context) ([]types.AppSample, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.samples, nil
}

// mockRecorder delivers chunks pushed by the test instead of capturing audio.
type mockRecorder struct {
	mu        sync.Mutex
	cb        func(types.AudioChunk)
	recording bool
	path      string
}

func (r *mockRecorder) OnChunk(fn func(types.AudioChunk)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cb = fn
}

func (r *mockRecorder) StartRecording(_ types.CaptureID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = true
	return nil
}

func (r *mockRecorder) StopRecording() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
	return r.path, nil
}

func (r *mockRecorder) deliver(chunk types.AudioChunk) {
	r.mu.Lock()
	cb := r.cb
	r.mu.Unlock()
	if cb != nil {
		cb(chunk)
	}
}

// mockEngine transcribes a chunk into a segment carrying the chunk's data as text.
type mockEngine struct{}

func (e *mockEngine) IsModelDownloaded() bool           { return true }
func (e *mockEngine) IsModelLoaded() bool               { return true }
func (e *mockEngine) LoadModel(_ context.Context) error { return nil }

func (e *mockEngine) Transcribe(_ context.Context, _ string) ([]*types.TranscriptSegment, error) {
	return nil, nil
}

func (e *mockEngine) TranscribeChunk(_ context.Context, chunk types.AudioChunk) (*types.TranscriptSegment, error) {
	return &types.TranscriptSegment{
		StartTime: chunk.StartOffset,
		EndTime:   chunk.EndOffset,
		Text:      string(chunk.Data),
	}, nil
}

// mockProvider answers minutes prompts with a versioned JSON object and
// action item prompts with a one-element array.
type mockProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *mockProvider) Complete(_ context.Context, messages []llm.Message) (*llm.Response, error) {
	p.mu.Lock()
	p.calls++
	n := p.calls
	p.mu.Unlock()

	if strings.Contains(messages[0].Content, "follow-up tasks") {
		return &llm.Response{
			Content: `[{"title": "Send the recap", "assignee": "sam", "priority": "high"}]`,
		}, nil
	}
	return &llm.Response{
		Content: fmt.Sprintf(`{"summary": "Discussion round %d.", "keyPoints": ["budget"], "actionItems": ["send recap"], "decisions": ["ship it"]}`, n),
	}, nil
}

func TestDetectTranscribeFinalize(t *testing.T) {
	dir := t.TempDir()
	logger := slog.Default()
	ctx := context.Background()

	db, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := store.Migrate(ctx, db); err != nil {
		t.Fatal(err)
	}
	meetings := store.NewMeetingStore(db)
	segments := store.NewSegmentStore(db)
	minStore := store.NewMinutesStore(db)
	items := store.NewActionItemStore(db)

	b := bus.New()
	completions := b.Subscribe(bus.TopicTranscriptionCompleted)

	observer := &mockObserver{}
	heuristics, err := detector.NewHeuristics(config.DefaultMeetingApps, config.DefaultTitlePatterns)
	if err != nil {
		t.Fatal(err)
	}
	det := detector.New(observer, meetings, detector.NewSnooze(5*time.Minute),
		heuristics, b, "@every 10s", logger)

	prompts, err := minutes.NewPromptBuilder("gpt-4", 128000, 4096)
	if err != nil {
		t.Fatal(err)
	}
	generator := minutes.NewGenerator(&mockProvider{}, minStore, prompts, "gpt-4", 10*time.Second, logger)

	recorder := &mockRecorder{}
	engine := &mockEngine{}
	coord := coordinator.New(recorder, engine, meetings, segments, items, generator, b, coordinator.Config{
		SegmentUpdateThreshold: 3,
	}, logger)

	// A Zoom window comes to the foreground.
	observer.set([]types.AppSample{
		{BundleID: "us.zoom.xos", Name: "Zoom", Foreground: true},
	})
	det.Scan(ctx)
	if det.State() != detector.StateAwaitingStartConfirmation {
		t.Fatalf("expected awaiting confirmation, got %s", det.State())
	}

	sess, err := det.ConfirmStart(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sess.MeetingID == 0 {
		t.Fatal("expected a durable meeting id")
	}

	if err := coord.Start(ctx, sess.MeetingID); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		recorder.deliver(types.AudioChunk{
			Seq:         i,
			Data:        []byte(fmt.Sprintf("chunk %d speech", i)),
			StartOffset: float64(i * 15),
			EndOffset:   float64((i + 1) * 15),
		})
	}
	// Let the chunk worker drain and the incremental generation land.
	time.Sleep(300 * time.Millisecond)

	// Ending publishes meeting.ended; the coordinator stops afterwards, so its
	// artifact write lands last, as in the daemon's event loop.
	if err := det.EndMeeting(ctx); err != nil {
		t.Fatal(err)
	}

	final, err := coord.Stop(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if final == nil {
		t.Fatal("expected final minutes")
	}
	if !final.IsFinalized {
		t.Error("expected finalized minutes")
	}
	if final.Version < 2 {
		t.Errorf("expected an incremental version before the final one, got %d", final.Version)
	}

	m, err := meetings.Get(ctx, sess.MeetingID)
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != types.MeetingCompleted {
		t.Errorf("expected completed meeting, got %s", m.Status)
	}
	if m.TranscriptionStatus != types.TranscriptionCompleted {
		t.Errorf("expected completed transcription, got %s", m.TranscriptionStatus)
	}
	if !strings.Contains(m.Transcript, "chunk 1 speech") {
		t.Errorf("expected transcript to carry chunk text, got %q", m.Transcript)
	}

	segs, err := segments.ListByMeeting(ctx, sess.MeetingID)
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segs))
	}

	stored, err := minStore.GetByMeeting(ctx, sess.MeetingID)
	if err != nil {
		t.Fatal(err)
	}
	if stored == nil || stored.Version != final.Version {
		t.Errorf("expected stored minutes at version %d, got %+v", final.Version, stored)
	}

	actionItems, err := items.ListByMeeting(ctx, sess.MeetingID)
	if err != nil {
		t.Fatal(err)
	}
	if len(actionItems) != 1 || actionItems[0].Title != "Send the recap" {
		t.Fatalf("expected one extracted action item, got %+v", actionItems)
	}
	if actionItems[0].Priority != types.PriorityHigh {
		t.Errorf("expected high priority, got %s", actionItems[0].Priority)
	}

	select {
	case ev := <-completions:
		if ev.Completion.MeetingID != sess.MeetingID {
			t.Errorf("completion for wrong meeting: %d", ev.Completion.MeetingID)
		}
		if ev.Completion.Minutes == nil {
			t.Error("expected minutes in completion event")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for completion event")
	}
}

func TestDismissThenSnooze(t *testing.T) {
	dir := t.TempDir()
	logger := slog.Default()
	ctx := context.Background()

	db, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := store.Migrate(ctx, db); err != nil {
		t.Fatal(err)
	}

	b := bus.New()
	observer := &mockObserver{}
	heuristics, err := detector.NewHeuristics(config.DefaultMeetingApps, config.DefaultTitlePatterns)
	if err != nil {
		t.Fatal(err)
	}
	det := detector.New(observer, store.NewMeetingStore(db), detector.NewSnooze(5*time.Minute),
		heuristics, b, "@every 10s", logger)

	observer.set([]types.AppSample{
		{BundleID: "us.zoom.xos", Name: "Zoom", Foreground: true},
	})
	det.Scan(ctx)
	if det.State() != detector.StateAwaitingStartConfirmation {
		t.Fatalf("expected awaiting confirmation, got %s", det.State())
	}

	det.DismissStart()
	if det.State() != detector.StateIdle {
		t.Fatalf("expected idle after dismiss, got %s", det.State())
	}

	// The snoozed app must not re-trigger.
	det.Scan(ctx)
	if det.State() != detector.StateIdle {
		t.Errorf("snoozed app re-triggered detection")
	}
}
