// Package detector polls running applications, recognizes meeting software,
// and drives the human-in-the-loop confirmation workflow that turns a
// heuristic match into a durable meeting record. At most one meeting is
// active at a time; the detector is the only writer of the active meeting.
package detector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/meetscribe/internal/bus"
	"github.com/user/meetscribe/internal/types"
)

// State is the confirmation workflow state.
type State string

const (
	StateIdle                      State = "idle"
	StateAwaitingStartConfirmation State = "awaiting_start_confirmation"
	StateActive                    State = "active"
	// StateAwaitingEndConfirmation is reachable only through an explicit
	// RequestEndConfirmation call. Automatic end detection ends the meeting
	// directly; meetings otherwise end manually.
	StateAwaitingEndConfirmation State = "awaiting_end_confirmation"
)

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with seconds, plus descriptors like @every 10s.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Detector owns the meeting lifecycle up to and including end-of-meeting.
type Detector struct {
	observer   types.AppObserver
	meetings   types.MeetingStore
	snooze     *Snooze
	heuristics *Heuristics
	bus        *bus.Bus
	schedule   string
	logger     *slog.Logger

	cron *cron.Cron
	now  func() time.Time

	mu      sync.Mutex
	state   State
	pending *types.AppSample
	session *types.MeetingSession
	meeting *types.Meeting
}

// New creates a detector. schedule is a cron expression or descriptor for the
// periodic scan.
func New(observer types.AppObserver, meetings types.MeetingStore, snooze *Snooze, heuristics *Heuristics, b *bus.Bus, schedule string, logger *slog.Logger) *Detector {
	return &Detector{
		observer:   observer,
		meetings:   meetings,
		snooze:     snooze,
		heuristics: heuristics,
		bus:        b,
		schedule:   schedule,
		logger:     logger,
		now:        time.Now,
		state:      StateIdle,
	}
}

// Start registers the periodic scan and starts the cron ticker.
func (d *Detector) Start() error {
	d.cron = cron.New(cron.WithParser(cronParser))
	_, err := d.cron.AddFunc(d.schedule, func() {
		d.Scan(context.Background())
	})
	if err != nil {
		return fmt.Errorf("invalid scan schedule %q: %w", d.schedule, err)
	}
	d.cron.Start()
	d.logger.Info("detector started", "schedule", d.schedule)
	return nil
}

// Stop stops the cron ticker. An in-flight scan finishes on its own.
func (d *Detector) Stop() {
	if d.cron != nil {
		d.cron.Stop()
	}
}

// Scan runs one detection pass. While awaiting confirmation or active, the
// scan only watches for the candidate app disappearing; it never re-triggers
// detection.
func (d *Detector) Scan(ctx context.Context) {
	samples, err := d.observer.Sample(ctx)
	if err != nil {
		// A failed sample is a heuristic miss: it skips this pass entirely.
		// Only a successful sample that lacks the bundle may cancel a
		// confirmation or end a meeting.
		d.logger.Debug("app sample failed", "error", err)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateIdle:
		for _, s := range samples {
			if !d.heuristics.Match(s) {
				continue
			}
			if d.snooze.IsSnoozed(s.BundleID) {
				continue
			}
			sample := s
			if sample.Name == "" {
				sample.Name = d.heuristics.AppName(sample.BundleID)
			}
			d.pending = &sample
			d.state = StateAwaitingStartConfirmation
			d.logger.Info("meeting detected, awaiting confirmation",
				"app", sample.Name, "bundle_id", sample.BundleID)
			d.bus.Publish(bus.Event{Topic: bus.TopicMeetingAwaitingConfirmation, App: &sample})
			return
		}

	case StateAwaitingStartConfirmation:
		if !bundleRunning(samples, d.pending.BundleID) {
			// Candidate app quit before the user answered. Cancel silently.
			d.logger.Info("candidate app gone, cancelling confirmation",
				"bundle_id", d.pending.BundleID)
			d.pending = nil
			d.state = StateIdle
			d.bus.Publish(bus.Event{Topic: bus.TopicMeetingStartDismissed})
		}

	case StateActive, StateAwaitingEndConfirmation:
		if !bundleRunning(samples, d.session.BundleID) {
			d.logger.Info("watched app gone, ending meeting",
				"bundle_id", d.session.BundleID, "meeting_id", d.session.MeetingID)
			d.endLocked(ctx)
		}
	}
}

// ConfirmStart turns the pending candidate into an active meeting. The
// meeting record is inserted before meeting.started is published so listeners
// looking up the active meeting always find it. Calling ConfirmStart while
// already active returns the existing session without creating a second
// record.
func (d *Detector) ConfirmStart(ctx context.Context) (*types.MeetingSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateActive || d.state == StateAwaitingEndConfirmation {
		return d.session, nil
	}
	if d.state != StateAwaitingStartConfirmation || d.pending == nil {
		return nil, fmt.Errorf("no meeting awaiting confirmation")
	}

	now := d.now()
	m := &types.Meeting{
		AppBundleID:         d.pending.BundleID,
		AppName:             d.pending.Name,
		StartTime:           now,
		Status:              types.MeetingActive,
		TranscriptionStatus: types.TranscriptionNotStarted,
		CreatedAt:           now,
	}
	if _, err := d.meetings.Insert(ctx, m); err != nil {
		// Degraded durability: the session proceeds in memory with ID 0.
		d.logger.Error("failed to persist meeting, continuing in memory",
			"bundle_id", m.AppBundleID, "error", err)
	}

	d.session = &types.MeetingSession{
		MeetingID: m.ID,
		AppName:   m.AppName,
		BundleID:  m.AppBundleID,
		StartTime: now,
	}
	d.meeting = m
	d.pending = nil
	d.state = StateActive

	d.logger.Info("meeting confirmed", "meeting_id", m.ID, "app", m.AppName)
	d.bus.Publish(bus.Event{Topic: bus.TopicMeetingStarted, Session: d.session})
	return d.session, nil
}

// DismissStart declines the pending candidate and snoozes its bundle id.
func (d *Detector) DismissStart() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateAwaitingStartConfirmation || d.pending == nil {
		return
	}
	d.snooze.Add(d.pending.BundleID)
	d.logger.Info("meeting dismissed, snoozing", "bundle_id", d.pending.BundleID)
	d.pending = nil
	d.state = StateIdle
	d.bus.Publish(bus.Event{Topic: bus.TopicMeetingStartDismissed})
}

// EndMeeting ends the active meeting immediately.
func (d *Detector) EndMeeting(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateActive && d.state != StateAwaitingEndConfirmation {
		return fmt.Errorf("no active meeting")
	}
	d.endLocked(ctx)
	return nil
}

// RequestEndConfirmation moves an active meeting into the end-confirmation
// state. Nothing calls this automatically; it exists for an explicit manual
// trigger only.
func (d *Detector) RequestEndConfirmation() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateActive {
		return fmt.Errorf("no active meeting")
	}
	d.state = StateAwaitingEndConfirmation
	return nil
}

// ConfirmEnd ends the meeting from the end-confirmation state.
func (d *Detector) ConfirmEnd(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateAwaitingEndConfirmation {
		return fmt.Errorf("no end confirmation pending")
	}
	d.endLocked(ctx)
	return nil
}

// DismissEnd returns to the active state without ending the meeting.
func (d *Detector) DismissEnd() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateAwaitingEndConfirmation {
		d.state = StateActive
	}
}

// endLocked completes the meeting record and publishes meeting.ended.
// Callers hold d.mu.
func (d *Detector) endLocked(ctx context.Context) {
	now := d.now()
	sess := d.session
	sess.EndTime = &now

	m := d.meeting
	m.EndTime = &now
	dur := int64(now.Sub(m.StartTime).Seconds())
	m.DurationSeconds = &dur
	m.Status = types.MeetingCompleted

	if m.ID != 0 {
		if err := d.meetings.Update(ctx, m); err != nil {
			d.logger.Error("failed to persist meeting end",
				"meeting_id", m.ID, "error", err)
		}
	}

	d.session = nil
	d.meeting = nil
	d.state = StateIdle

	d.logger.Info("meeting ended", "meeting_id", m.ID, "duration_secs", dur)
	d.bus.Publish(bus.Event{Topic: bus.TopicMeetingEnded, Session: sess})
}

// State returns the current workflow state.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Pending returns the candidate awaiting confirmation, or nil.
func (d *Detector) Pending() *types.AppSample {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// ActiveSession returns the session handle for the active meeting, or nil.
func (d *Detector) ActiveSession() *types.MeetingSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

func bundleRunning(samples []types.AppSample, bundleID string) bool {
	for _, s := range samples {
		if s.BundleID == bundleID {
			return true
		}
	}
	return false
}
