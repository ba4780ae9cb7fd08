package minutes

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/user/meetscribe/internal/types"
	"github.com/user/meetscribe/pkg/llm"
)

type fakeProvider struct {
	responses []string
	err       error
	calls     int
	lastMsgs  []llm.Message
}

func (f *fakeProvider) Complete(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	f.calls++
	f.lastMsgs = messages
	if f.err != nil {
		return nil, f.err
	}
	content := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return &llm.Response{Content: content}, nil
}

type fakeMinutesStore struct {
	rows    map[int64]*types.MeetingMinutes
	failing bool
}

func newFakeMinutesStore() *fakeMinutesStore {
	return &fakeMinutesStore{rows: make(map[int64]*types.MeetingMinutes)}
}

func (f *fakeMinutesStore) Upsert(ctx context.Context, m *types.MeetingMinutes) (int64, error) {
	if f.failing {
		return 0, errors.New("disk full")
	}
	cp := *m
	cp.ID = m.MeetingID
	f.rows[m.MeetingID] = &cp
	return cp.ID, nil
}

func (f *fakeMinutesStore) GetByMeeting(ctx context.Context, meetingID int64) (*types.MeetingMinutes, error) {
	return f.rows[meetingID], nil
}

func testGenerator(t *testing.T, provider llm.Provider, store types.MinutesStore) *Generator {
	t.Helper()
	prompts, err := NewPromptBuilder("gpt-4o-mini", 8000, 1000)
	if err != nil {
		t.Fatalf("prompt builder: %v", err)
	}
	gen := NewGenerator(provider, store, prompts, "gpt-4o-mini", 5*time.Second, slog.Default())
	gen.retry = &RetryPolicy{MaxAttempts: 1, InitialDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond}
	return gen
}

func testSegments() []*types.TranscriptSegment {
	return []*types.TranscriptSegment{
		{MeetingID: 1, StartTime: 0, EndTime: 10, Text: "let's review the roadmap"},
		{MeetingID: 1, StartTime: 10, EndTime: 20, Text: "we ship friday"},
	}
}

func TestGenerateFirstVersion(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		`{"summary": "Roadmap review.", "keyPoints": ["ship friday"], "actionItems": ["confirm date"], "decisions": ["ship friday"]}`,
	}}
	store := newFakeMinutesStore()
	gen := testGenerator(t, provider, store)

	m, err := gen.Generate(context.Background(), 1, testSegments(), nil, true)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if m.Version != 1 {
		t.Errorf("expected version 1, got %d", m.Version)
	}
	if m.IsFinalized {
		t.Error("live generation must not finalize")
	}
	if m.Summary != "Roadmap review." || len(m.KeyPoints) != 1 {
		t.Errorf("payload not mapped: %+v", m)
	}
	if store.rows[1] == nil {
		t.Error("minutes not persisted")
	}
}

func TestGenerateIncrementsVersionAndFinalizes(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		`{"summary": "Final.", "keyPoints": [], "actionItems": [], "decisions": []}`,
	}}
	store := newFakeMinutesStore()
	gen := testGenerator(t, provider, store)

	prev := &types.MeetingMinutes{MeetingID: 1, Version: 3}
	m, err := gen.Generate(context.Background(), 1, testSegments(), prev, false)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if m.Version != 4 {
		t.Errorf("expected version 4, got %d", m.Version)
	}
	if !m.IsFinalized {
		t.Error("final generation must finalize")
	}
}

func TestMarkFinalizedPersistsFlag(t *testing.T) {
	store := newFakeMinutesStore()
	gen := testGenerator(t, &fakeProvider{}, store)

	live := &types.MeetingMinutes{MeetingID: 1, Summary: "Live.", Version: 2}
	m := gen.MarkFinalized(context.Background(), live)

	if !m.IsFinalized {
		t.Error("expected finalized minutes")
	}
	if m.Version != 2 {
		t.Errorf("finalizing must not bump the version, got %d", m.Version)
	}
	if live.IsFinalized {
		t.Error("input minutes must not be mutated")
	}
	row := store.rows[1]
	if row == nil || !row.IsFinalized || row.Version != 2 {
		t.Errorf("stored row not finalized: %+v", row)
	}
}

func TestMarkFinalizedSurvivesStoreFailure(t *testing.T) {
	store := newFakeMinutesStore()
	store.failing = true
	gen := testGenerator(t, &fakeProvider{}, store)

	m := gen.MarkFinalized(context.Background(), &types.MeetingMinutes{MeetingID: 1, Version: 1})
	if m == nil || !m.IsFinalized {
		t.Errorf("storage failure must not lose the finalized minutes: %+v", m)
	}
}

func TestGenerateNoSegments(t *testing.T) {
	provider := &fakeProvider{}
	gen := testGenerator(t, provider, newFakeMinutesStore())

	_, err := gen.Generate(context.Background(), 1, nil, nil, true)
	if !errors.Is(err, ErrNoSegments) {
		t.Fatalf("expected ErrNoSegments, got %v", err)
	}
	if provider.calls != 0 {
		t.Error("provider must not be called without segments")
	}
}

func TestGenerateMalformedResponse(t *testing.T) {
	provider := &fakeProvider{responses: []string{"I could not produce minutes."}}
	gen := testGenerator(t, provider, newFakeMinutesStore())

	_, err := gen.Generate(context.Background(), 1, testSegments(), nil, true)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestGenerateStripsCodeFence(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		"```json\n{\"summary\": \"Fenced.\", \"keyPoints\": [], \"actionItems\": [], \"decisions\": []}\n```",
	}}
	gen := testGenerator(t, provider, newFakeMinutesStore())

	m, err := gen.Generate(context.Background(), 1, testSegments(), nil, true)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if m.Summary != "Fenced." {
		t.Errorf("fence not stripped: %q", m.Summary)
	}
}

func TestGenerateSurvivesStoreFailure(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		`{"summary": "Kept.", "keyPoints": [], "actionItems": [], "decisions": []}`,
	}}
	store := newFakeMinutesStore()
	store.failing = true
	gen := testGenerator(t, provider, store)

	m, err := gen.Generate(context.Background(), 1, testSegments(), nil, false)
	if err != nil {
		t.Fatalf("persistence failure must not fail generation: %v", err)
	}
	if m.Summary != "Kept." {
		t.Errorf("unexpected minutes: %+v", m)
	}
}

func TestGenerateTransportFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("connection refused")}
	gen := testGenerator(t, provider, newFakeMinutesStore())

	_, err := gen.Generate(context.Background(), 1, testSegments(), nil, true)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrMalformedResponse) {
		t.Error("transport failure must not be reported as malformed response")
	}
}

func TestExtractActionItems(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		`[{"title": "send notes", "assignee": "dana", "priority": "high"}, {"title": "", "assignee": "x"}, {"title": "book room", "priority": "someday"}]`,
	}}
	gen := testGenerator(t, provider, newFakeMinutesStore())

	items, err := gen.ExtractActionItems(context.Background(), &types.MeetingMinutes{ID: 7, MeetingID: 1, Summary: "s"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items (empty title dropped), got %d", len(items))
	}
	if items[0].Priority != types.PriorityHigh || items[0].Assignee != "dana" {
		t.Errorf("unexpected first item: %+v", items[0])
	}
	if items[1].Priority != types.PriorityMedium {
		t.Errorf("unknown priority should default to medium: %+v", items[1])
	}
	if items[0].MinutesID != 7 || items[0].Status != types.ActionItemPending {
		t.Errorf("item not linked to minutes: %+v", items[0])
	}
}

func TestExtractActionItemsMalformed(t *testing.T) {
	provider := &fakeProvider{responses: []string{"no tasks here"}}
	gen := testGenerator(t, provider, newFakeMinutesStore())

	items, err := gen.ExtractActionItems(context.Background(), &types.MeetingMinutes{MeetingID: 1})
	if err != nil {
		t.Fatalf("malformed extraction must not error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := &RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: 3 * time.Millisecond}

	if got := p.NextDelay(1); got != time.Millisecond {
		t.Errorf("attempt 1: %v", got)
	}
	if got := p.NextDelay(2); got != 2*time.Millisecond {
		t.Errorf("attempt 2: %v", got)
	}
	if got := p.NextDelay(5); got != 3*time.Millisecond {
		t.Errorf("capped delay: %v", got)
	}

	attempts := 0
	err := p.Execute(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("timeout")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}

	attempts = 0
	err = p.Execute(context.Background(), func() error {
		attempts++
		return errors.New("unauthorized")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("non-retryable error should stop after 1 attempt, got %d", attempts)
	}
}

func TestFormatOffset(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "00:00"},
		{65.4, "01:05"},
		{3599, "59:59"},
		{3661, "1:01:01"},
	}
	for _, c := range cases {
		if got := FormatOffset(c.in); got != c.want {
			t.Errorf("FormatOffset(%f) = %q, want %q", c.in, got, c.want)
		}
	}
}
