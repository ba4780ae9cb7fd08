// Package export delivers finished meetings to configured sinks (markdown
// files, notifications). Delivery is best-effort per sink: one failing sink
// never blocks the others.
package export

import (
	"context"
	"log/slog"
	"sync"

	"github.com/user/meetscribe/internal/types"
)

// Payload is everything a sink may want about a finished meeting. Minutes and
// Items may be nil or empty when generation failed.
type Payload struct {
	Meeting  *types.Meeting
	Minutes  *types.MeetingMinutes
	Segments []*types.TranscriptSegment
	Items    []*types.ActionItem
}

// Sink delivers one finished meeting somewhere.
type Sink func(ctx context.Context, p *Payload) error

// Registry holds named sinks.
type Registry struct {
	mu     sync.Mutex
	names  []string
	sinks  map[string]Sink
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{sinks: make(map[string]Sink), logger: logger}
}

// Register adds a sink under a name, replacing any previous sink with the
// same name.
func (r *Registry) Register(name string, s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sinks[name]; !ok {
		r.names = append(r.names, name)
	}
	r.sinks[name] = s
}

// DeliverAll invokes every sink in registration order, logging failures.
func (r *Registry) DeliverAll(ctx context.Context, p *Payload) {
	r.mu.Lock()
	names := make([]string, len(r.names))
	copy(names, r.names)
	sinks := make(map[string]Sink, len(r.sinks))
	for k, v := range r.sinks {
		sinks[k] = v
	}
	r.mu.Unlock()

	for _, name := range names {
		if err := sinks[name](ctx, p); err != nil {
			r.logger.Warn("export sink failed",
				"sink", name, "meeting_id", p.Meeting.ID, "error", err)
		}
	}
}
