package observer

import (
	"context"
	"log/slog"
	"testing"
)

func TestParseSamples(t *testing.T) {
	data := []byte(`[
		{"bundle_id": "us.zoom.xos", "name": "Zoom", "window_title": "Zoom Meeting", "foreground": true},
		{"bundle_id": "com.apple.Terminal", "name": "Terminal", "foreground": false}
	]`)
	samples, err := parseSamples(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].BundleID != "us.zoom.xos" || !samples[0].Foreground {
		t.Errorf("unexpected first sample: %+v", samples[0])
	}
	if samples[1].WindowTitle != "" {
		t.Errorf("missing title should stay empty: %+v", samples[1])
	}
}

func TestParseSamplesMalformed(t *testing.T) {
	if _, err := parseSamples([]byte("oops")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSampleWithCommand(t *testing.T) {
	o := New([]string{"echo", `[{"bundle_id": "us.zoom.xos", "name": "Zoom", "foreground": true}]`}, slog.Default())
	samples, err := o.Sample(context.Background())
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(samples) != 1 || samples[0].Name != "Zoom" {
		t.Errorf("unexpected samples: %+v", samples)
	}
}

func TestSampleCommandFailure(t *testing.T) {
	o := New([]string{"false"}, slog.Default())
	if _, err := o.Sample(context.Background()); err == nil {
		t.Fatal("expected error from failing command")
	}
}
