// Package minutes turns transcript segments into structured meeting minutes
// through an LLM provider. Generation is versioned: every call produces a new
// version of the single minutes row for a meeting, and the final call at
// session end flips IsFinalized.
package minutes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/user/meetscribe/internal/types"
	"github.com/user/meetscribe/pkg/llm"
)

var (
	// ErrNoSegments means generation was requested before any speech was
	// transcribed. Callers skip the call rather than burn a completion.
	ErrNoSegments = errors.New("no transcript segments")

	// ErrMalformedResponse means the model replied but the reply did not
	// satisfy the JSON contract. Distinct from transport failures so callers
	// can tell a bad model from a bad network.
	ErrMalformedResponse = errors.New("malformed model response")
)

// Generator produces meeting minutes and action items from transcripts.
type Generator struct {
	provider llm.Provider
	store    types.MinutesStore
	prompts  *PromptBuilder
	model    string
	timeout  time.Duration
	retry    *RetryPolicy
	logger   *slog.Logger
}

// NewGenerator creates a minutes generator. timeout bounds each completion
// call including retries.
func NewGenerator(provider llm.Provider, store types.MinutesStore, prompts *PromptBuilder, model string, timeout time.Duration, logger *slog.Logger) *Generator {
	return &Generator{
		provider: provider,
		store:    store,
		prompts:  prompts,
		model:    model,
		timeout:  timeout,
		retry:    DefaultRetryPolicy(),
		logger:   logger,
	}
}

// minutesPayload is the JSON contract the model must satisfy.
type minutesPayload struct {
	Summary     string          `json:"summary"`
	KeyPoints   []string        `json:"keyPoints"`
	ActionItems json.RawMessage `json:"actionItems"`
	Decisions   []string        `json:"decisions"`
}

// actionItemPayload is one element of the extraction contract.
type actionItemPayload struct {
	Title    string `json:"title"`
	Assignee string `json:"assignee"`
	DueDate  string `json:"dueDate"`
	Priority string `json:"priority"`
}

// Generate produces the next version of the minutes for a meeting. prev is
// the current minutes row (nil for the first call); live marks an in-meeting
// incremental update, a false value finalizes. The new minutes are upserted
// best-effort: a storage failure is logged and the generated minutes are
// still returned.
func (g *Generator) Generate(ctx context.Context, meetingID int64, segments []*types.TranscriptSegment, prev *types.MeetingMinutes, live bool) (*types.MeetingMinutes, error) {
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}

	messages := g.prompts.BuildMinutesPrompt(segments, prev, live)
	resp, err := g.complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("minutes completion: %w", err)
	}

	payload, err := parseMinutes(resp.Content)
	if err != nil {
		return nil, err
	}

	version := 1
	if prev != nil {
		version = prev.Version + 1
	}

	m := &types.MeetingMinutes{
		MeetingID:      meetingID,
		Summary:        payload.Summary,
		KeyPoints:      payload.KeyPoints,
		ActionItemsRaw: string(payload.ActionItems),
		Decisions:      payload.Decisions,
		Version:        version,
		IsFinalized:    !live,
		GeneratedAt:    time.Now(),
		Model:          g.model,
	}

	if id, err := g.store.Upsert(ctx, m); err != nil {
		g.logger.Warn("failed to persist minutes",
			"meeting_id", meetingID, "version", version, "error", err)
	} else {
		m.ID = id
	}

	g.logger.Info("generated minutes",
		"meeting_id", meetingID, "version", version, "live", live,
		"tokens", resp.Usage.TotalTokens)
	return m, nil
}

// MarkFinalized flips the finalized flag on existing minutes without a new
// generation, for sessions where the final completion failed and the last
// incremental version stands. The flag is persisted best-effort.
func (g *Generator) MarkFinalized(ctx context.Context, m *types.MeetingMinutes) *types.MeetingMinutes {
	fm := *m
	fm.IsFinalized = true
	if _, err := g.store.Upsert(ctx, &fm); err != nil {
		g.logger.Warn("failed to persist finalized flag",
			"meeting_id", m.MeetingID, "version", m.Version, "error", err)
	}
	return &fm
}

// ExtractActionItems turns finalized minutes into structured action items.
// A malformed extraction response is logged and yields an empty list; only
// transport failures surface as errors.
func (g *Generator) ExtractActionItems(ctx context.Context, m *types.MeetingMinutes) ([]*types.ActionItem, error) {
	messages := g.prompts.BuildActionItemPrompt(m)
	resp, err := g.complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("action item completion: %w", err)
	}

	var payloads []actionItemPayload
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Content)), &payloads); err != nil {
		g.logger.Warn("malformed action item response",
			"meeting_id", m.MeetingID, "error", err)
		return nil, nil
	}

	items := make([]*types.ActionItem, 0, len(payloads))
	for _, p := range payloads {
		title := strings.TrimSpace(p.Title)
		if title == "" {
			continue
		}
		items = append(items, &types.ActionItem{
			MeetingID: m.MeetingID,
			MinutesID: m.ID,
			Title:     title,
			Assignee:  strings.TrimSpace(p.Assignee),
			DueDate:   strings.TrimSpace(p.DueDate),
			Priority:  types.ParsePriority(p.Priority),
			Status:    types.ActionItemPending,
		})
	}
	return items, nil
}

func (g *Generator) complete(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var resp *llm.Response
	err := g.retry.Execute(cctx, func() error {
		r, err := g.provider.Complete(cctx, messages)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func parseMinutes(content string) (*minutesPayload, error) {
	var payload minutesPayload
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if payload.Summary == "" {
		return nil, fmt.Errorf("%w: missing summary", ErrMalformedResponse)
	}
	return &payload, nil
}

// stripCodeFence removes a surrounding markdown code fence, which models emit
// even when told not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
