// Package bus is the in-process typed event bus. Delivery is fire-and-forget,
// at-most-once: a subscriber that falls behind loses events rather than
// blocking the publisher, and no ordering holds across topics.
package bus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/user/meetscribe/internal/types"
)

// Topic names one event stream.
type Topic string

const (
	TopicMeetingAwaitingConfirmation Topic = "meeting.awaitingConfirmation"
	TopicMeetingStarted              Topic = "meeting.started"
	TopicMeetingEnded                Topic = "meeting.ended"
	TopicMeetingStartDismissed       Topic = "meeting.startDismissed"
	TopicTranscriptionCompleted      Topic = "transcription.completed"
)

// Completion is the payload of transcription.completed. Minutes is nil when
// every generation attempt failed; "completed but empty" is a valid state.
type Completion struct {
	MeetingID    int64                 `json:"meeting_id"`
	SegmentCount int                   `json:"segment_count"`
	Minutes      *types.MeetingMinutes `json:"minutes,omitempty"`
}

// Event carries exactly one payload field, matching its topic.
type Event struct {
	Topic      Topic                 `json:"topic"`
	At         time.Time             `json:"at"`
	App        *types.AppSample      `json:"app,omitempty"`        // awaitingConfirmation
	Session    *types.MeetingSession `json:"session,omitempty"`    // started, ended
	Completion *Completion           `json:"completion,omitempty"` // transcription.completed
}

const subscriberBuffer = 16

// Bus fans events out to per-topic subscriber channels.
type Bus struct {
	mu   sync.RWMutex
	subs map[Topic][]chan Event
}

func New() *Bus {
	return &Bus{subs: make(map[Topic][]chan Event)}
}

// Subscribe returns a channel receiving events for the given topics. The
// channel is buffered; events are dropped when the buffer is full.
func (b *Bus) Subscribe(topics ...Topic) <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, topic := range topics {
		b.subs[topic] = append(b.subs[topic], ch)
	}
	return ch
}

// Publish delivers the event to every subscriber of its topic without
// blocking. Stamps At if the caller left it zero.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[ev.Topic] {
		select {
		case ch <- ev:
		default:
			slog.Warn("event dropped, subscriber buffer full", "topic", ev.Topic)
		}
	}
}
