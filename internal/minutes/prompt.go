package minutes

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/meetscribe/internal/types"
	"github.com/user/meetscribe/pkg/llm"
)

const liveSystemPrompt = `You are a meeting scribe. You are given a partial transcript of a meeting that is still in progress. Produce working minutes as a single JSON object with exactly these keys:
{"summary": string, "keyPoints": [string], "actionItems": [string], "decisions": [string]}
Keep the summary to a few sentences. Only include points actually supported by the transcript. Respond with the JSON object and nothing else.`

const finalSystemPrompt = `You are a meeting scribe. You are given the full transcript of a finished meeting. Produce final minutes as a single JSON object with exactly these keys:
{"summary": string, "keyPoints": [string], "actionItems": [string], "decisions": [string]}
The summary should cover the whole meeting. Only include points actually supported by the transcript. Respond with the JSON object and nothing else.`

const actionItemSystemPrompt = `You extract follow-up tasks from meeting minutes. Respond with a single JSON array where each element is:
{"title": string, "assignee": string (optional), "dueDate": string (optional, YYYY-MM-DD), "priority": "low"|"medium"|"high"|"urgent" (optional)}
If there are no clear follow-up tasks, respond with an empty array. Respond with the JSON and nothing else.`

// PromptBuilder assembles token-budgeted prompts for minutes generation.
type PromptBuilder struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
	reserve   int
}

// NewPromptBuilder creates a prompt builder for the given model.
// maxTokens is the model's context window size; reserve is the number of
// tokens held back for the model's response.
func NewPromptBuilder(model string, maxTokens, reserve int) (*PromptBuilder, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &PromptBuilder{
		tokenizer: enc,
		maxTokens: maxTokens,
		reserve:   reserve,
	}, nil
}

func (b *PromptBuilder) countTokens(text string) int {
	return len(b.tokenizer.Encode(text, nil, nil))
}

// BuildMinutesPrompt assembles the messages for a minutes generation call.
// When live is true the prompt carries the previous minutes as context so the
// model refines rather than restarts. Segments are trimmed oldest-first when
// the transcript exceeds the input budget.
func (b *PromptBuilder) BuildMinutesPrompt(segments []*types.TranscriptSegment, prev *types.MeetingMinutes, live bool) []llm.Message {
	sysPrompt := finalSystemPrompt
	if live {
		sysPrompt = liveSystemPrompt
	}

	var context string
	if live && prev != nil {
		var sb strings.Builder
		sb.WriteString("Previous minutes (version ")
		fmt.Fprintf(&sb, "%d", prev.Version)
		sb.WriteString("):\nSummary: ")
		sb.WriteString(prev.Summary)
		if len(prev.KeyPoints) > 0 {
			sb.WriteString("\nKey points:\n")
			for _, p := range prev.KeyPoints {
				sb.WriteString("- ")
				sb.WriteString(p)
				sb.WriteString("\n")
			}
		}
		context = sb.String()
	}

	budget := b.maxTokens - b.reserve
	budget -= b.countTokens(sysPrompt)
	budget -= b.countTokens(context)

	transcript := b.transcriptBlock(segments, budget)

	var user strings.Builder
	if context != "" {
		user.WriteString(context)
		user.WriteString("\n")
	}
	user.WriteString("Transcript:\n")
	user.WriteString(transcript)

	return []llm.Message{
		{Role: "system", Content: sysPrompt},
		{Role: "user", Content: user.String()},
	}
}

// BuildActionItemPrompt assembles the messages for the action item
// extraction call made at finalization.
func (b *PromptBuilder) BuildActionItemPrompt(m *types.MeetingMinutes) []llm.Message {
	var user strings.Builder
	user.WriteString("Summary: ")
	user.WriteString(m.Summary)
	user.WriteString("\n")
	if len(m.KeyPoints) > 0 {
		user.WriteString("Key points:\n")
		for _, p := range m.KeyPoints {
			user.WriteString("- ")
			user.WriteString(p)
			user.WriteString("\n")
		}
	}
	if m.ActionItemsRaw != "" {
		user.WriteString("Raw action items: ")
		user.WriteString(m.ActionItemsRaw)
		user.WriteString("\n")
	}
	if len(m.Decisions) > 0 {
		user.WriteString("Decisions:\n")
		for _, d := range m.Decisions {
			user.WriteString("- ")
			user.WriteString(d)
			user.WriteString("\n")
		}
	}
	return []llm.Message{
		{Role: "system", Content: actionItemSystemPrompt},
		{Role: "user", Content: user.String()},
	}
}

// transcriptBlock renders segments as "[mm:ss] text" lines, dropping the
// oldest segments when the rendered block would exceed budget tokens.
func (b *PromptBuilder) transcriptBlock(segments []*types.TranscriptSegment, budget int) string {
	lines := make([]string, len(segments))
	total := 0
	for i, seg := range segments {
		lines[i] = fmt.Sprintf("[%s] %s", FormatOffset(seg.StartTime), strings.TrimSpace(seg.Text))
		total += b.countTokens(lines[i]) + 1
	}

	start := 0
	for start < len(lines) && total > budget {
		total -= b.countTokens(lines[start]) + 1
		start++
	}

	return strings.Join(lines[start:], "\n")
}

// FormatOffset renders a second offset as mm:ss (or h:mm:ss past an hour).
func FormatOffset(seconds float64) string {
	s := int(seconds)
	if s < 0 {
		s = 0
	}
	h := s / 3600
	m := (s % 3600) / 60
	sec := s % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", m, sec)
}
