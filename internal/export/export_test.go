package export

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/user/meetscribe/internal/types"
)

func testPayload() *Payload {
	return &Payload{
		Meeting: &types.Meeting{
			ID:        7,
			AppName:   "Zoom",
			StartTime: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		},
		Minutes: &types.MeetingMinutes{
			MeetingID: 7,
			Summary:   "Discussed the release.",
			KeyPoints: []string{"cut branch monday"},
			Decisions: []string{"ship friday"},
			Version:   3,
			Model:     "gpt-4o-mini",
		},
		Segments: []*types.TranscriptSegment{
			{StartTime: 0, EndTime: 10, Text: "let's begin"},
			{StartTime: 65, EndTime: 70, Text: "ship friday"},
		},
		Items: []*types.ActionItem{
			{Title: "cut branch", Assignee: "dana", DueDate: "2026-08-24"},
		},
	}
}

func TestMarkdownSink(t *testing.T) {
	dir := t.TempDir()
	sink := Markdown(dir)

	if err := sink(context.Background(), testPayload()); err != nil {
		t.Fatalf("sink: %v", err)
	}

	meetingDir := filepath.Join(dir, "7-2026-08-20")
	transcript, err := os.ReadFile(filepath.Join(meetingDir, "transcript.md"))
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if !strings.Contains(string(transcript), "[01:05] ship friday") {
		t.Errorf("transcript missing timestamped line:\n%s", transcript)
	}

	md, err := os.ReadFile(filepath.Join(meetingDir, "minutes.md"))
	if err != nil {
		t.Fatalf("read minutes: %v", err)
	}
	for _, want := range []string{"Discussed the release.", "- cut branch monday", "- ship friday", "- [ ] cut branch (dana) due 2026-08-24"} {
		if !strings.Contains(string(md), want) {
			t.Errorf("minutes missing %q:\n%s", want, md)
		}
	}
}

func TestMarkdownSinkNoMinutes(t *testing.T) {
	dir := t.TempDir()
	p := testPayload()
	p.Minutes = nil

	if err := Markdown(dir)(context.Background(), p); err != nil {
		t.Fatalf("sink: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "7-2026-08-20", "minutes.md")); !os.IsNotExist(err) {
		t.Error("minutes.md should not exist without minutes")
	}
	if _, err := os.Stat(filepath.Join(dir, "7-2026-08-20", "transcript.md")); err != nil {
		t.Error("transcript.md should still be written")
	}
}

func TestRegistryDeliversInOrderAndSurvivesFailures(t *testing.T) {
	r := NewRegistry(slog.Default())
	var order []string

	r.Register("a", func(ctx context.Context, p *Payload) error {
		order = append(order, "a")
		return errors.New("a failed")
	})
	r.Register("b", func(ctx context.Context, p *Payload) error {
		order = append(order, "b")
		return nil
	})

	r.DeliverAll(context.Background(), testPayload())

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("unexpected delivery order: %v", order)
	}
}

func TestRegistryReplaceKeepsOrder(t *testing.T) {
	r := NewRegistry(slog.Default())
	var got []string

	r.Register("a", func(ctx context.Context, p *Payload) error {
		got = append(got, "a1")
		return nil
	})
	r.Register("b", func(ctx context.Context, p *Payload) error {
		got = append(got, "b")
		return nil
	})
	r.Register("a", func(ctx context.Context, p *Payload) error {
		got = append(got, "a2")
		return nil
	})

	r.DeliverAll(context.Background(), testPayload())
	if len(got) != 2 || got[0] != "a2" || got[1] != "b" {
		t.Errorf("unexpected delivery: %v", got)
	}
}
