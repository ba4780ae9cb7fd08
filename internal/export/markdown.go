package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/meetscribe/internal/minutes"
)

// Markdown returns a sink writing transcript.md and minutes.md into a
// per-meeting directory under dir.
func Markdown(dir string) Sink {
	return func(ctx context.Context, p *Payload) error {
		name := fmt.Sprintf("%d-%s", p.Meeting.ID, p.Meeting.StartTime.Format("2006-01-02"))
		meetingDir := filepath.Join(dir, name)
		if err := os.MkdirAll(meetingDir, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}

		if err := writeAtomic(filepath.Join(meetingDir, "transcript.md"), renderTranscript(p)); err != nil {
			return err
		}
		if p.Minutes != nil {
			if err := writeAtomic(filepath.Join(meetingDir, "minutes.md"), renderMinutes(p)); err != nil {
				return err
			}
		}
		return nil
	}
}

func renderTranscript(p *Payload) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Transcript: %s\n\n", p.Meeting.AppName)
	fmt.Fprintf(&sb, "Started: %s\n\n", p.Meeting.StartTime.Format("2006-01-02 15:04"))
	for _, seg := range p.Segments {
		fmt.Fprintf(&sb, "[%s] %s\n", minutes.FormatOffset(seg.StartTime), strings.TrimSpace(seg.Text))
	}
	return sb.String()
}

func renderMinutes(p *Payload) string {
	m := p.Minutes
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Minutes: %s\n\n", p.Meeting.AppName)
	fmt.Fprintf(&sb, "%s\n", m.Summary)
	if len(m.KeyPoints) > 0 {
		sb.WriteString("\n## Key points\n\n")
		for _, kp := range m.KeyPoints {
			fmt.Fprintf(&sb, "- %s\n", kp)
		}
	}
	if len(m.Decisions) > 0 {
		sb.WriteString("\n## Decisions\n\n")
		for _, d := range m.Decisions {
			fmt.Fprintf(&sb, "- %s\n", d)
		}
	}
	if len(p.Items) > 0 {
		sb.WriteString("\n## Action items\n\n")
		for _, item := range p.Items {
			line := fmt.Sprintf("- [ ] %s", item.Title)
			if item.Assignee != "" {
				line += fmt.Sprintf(" (%s)", item.Assignee)
			}
			if item.DueDate != "" {
				line += fmt.Sprintf(" due %s", item.DueDate)
			}
			fmt.Fprintf(&sb, "%s\n", line)
		}
	}
	fmt.Fprintf(&sb, "\n_Version %d, generated by %s_\n", m.Version, m.Model)
	return sb.String()
}

func writeAtomic(path, content string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
