// Package coordinator owns the recording and transcription session for the
// active meeting: it starts audio capture, routes chunks through the speech
// engine, schedules incremental minutes regeneration, and finalizes the
// session into a transcript, minutes, and action items. One session runs at
// a time and every pipeline step past the start preconditions is best-effort.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/meetscribe/internal/bus"
	"github.com/user/meetscribe/internal/types"
)

// ErrModelNotDownloaded means transcription cannot start because the speech
// model is absent. Reported before any side effects.
var ErrModelNotDownloaded = errors.New("transcription model not downloaded")

// Generator produces minutes and action items from transcript segments.
type Generator interface {
	Generate(ctx context.Context, meetingID int64, segments []*types.TranscriptSegment, prev *types.MeetingMinutes, live bool) (*types.MeetingMinutes, error)
	// MarkFinalized flips the finalized flag on existing minutes when the
	// final generation could not produce a new version.
	MarkFinalized(ctx context.Context, m *types.MeetingMinutes) *types.MeetingMinutes
	ExtractActionItems(ctx context.Context, m *types.MeetingMinutes) ([]*types.ActionItem, error)
}

// Config tunes the session pipeline.
type Config struct {
	// SegmentUpdateThreshold is the number of new segments that triggers an
	// incremental minutes update.
	SegmentUpdateThreshold int
	// LiveMinutes enables the periodic incremental update task.
	LiveMinutes bool
	// LiveMinutesInterval is the period of that task.
	LiveMinutesInterval time.Duration
	// ChunkBuffer is the capacity of the chunk queue. Chunks arriving while
	// the queue is full are dropped.
	ChunkBuffer int
}

// Coordinator runs one transcription session at a time.
type Coordinator struct {
	recorder  types.AudioRecorder
	engine    types.SpeechEngine
	meetings  types.MeetingStore
	segments  types.SegmentStore
	items     types.ActionItemStore
	generator Generator
	bus       *bus.Bus
	cfg       Config
	logger    *slog.Logger

	mu   sync.Mutex
	sess *session
}

// session is the per-meeting mutable state. The chunk worker is its single
// writer for the segment buffer; the minutes cache is guarded by segMu
// because the detached generation task also writes it.
type session struct {
	meetingID int64
	captureID types.CaptureID
	startedAt time.Time

	chunks     chan types.AudioChunk
	workerDone chan struct{}
	stopTicker chan struct{}
	tickerDone chan struct{}

	segMu       sync.Mutex
	segments    []*types.TranscriptSegment
	minutes     *types.MeetingMinutes
	sinceUpdate int

	// genGate admits one minutes generation at a time so versions never
	// collide under concurrent triggers.
	genGate *semaphore.Weighted
	genWG   sync.WaitGroup
}

// New creates a coordinator.
func New(recorder types.AudioRecorder, engine types.SpeechEngine, meetings types.MeetingStore, segments types.SegmentStore, items types.ActionItemStore, generator Generator, b *bus.Bus, cfg Config, logger *slog.Logger) *Coordinator {
	if cfg.SegmentUpdateThreshold <= 0 {
		cfg.SegmentUpdateThreshold = 3
	}
	if cfg.LiveMinutesInterval <= 0 {
		cfg.LiveMinutesInterval = time.Minute
	}
	if cfg.ChunkBuffer <= 0 {
		cfg.ChunkBuffer = 32
	}
	return &Coordinator{
		recorder:  recorder,
		engine:    engine,
		meetings:  meetings,
		segments:  segments,
		items:     items,
		generator: generator,
		bus:       b,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start begins recording and transcription for a meeting. It is a no-op when
// a session is already running. The speech model must be downloaded; if it is
// downloaded but not loaded, loading blocks the start so the chunk callback
// always sees a ready model.
func (c *Coordinator) Start(ctx context.Context, meetingID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != nil {
		c.logger.Warn("transcription already running, ignoring start",
			"active_meeting_id", c.sess.meetingID, "meeting_id", meetingID)
		return nil
	}

	if !c.engine.IsModelDownloaded() {
		return ErrModelNotDownloaded
	}
	if !c.engine.IsModelLoaded() {
		c.logger.Info("loading transcription model", "meeting_id", meetingID)
		if err := c.engine.LoadModel(ctx); err != nil {
			return fmt.Errorf("load model: %w", err)
		}
	}

	s := &session{
		meetingID:  meetingID,
		captureID:  types.NewCaptureID(),
		startedAt:  time.Now(),
		chunks:     make(chan types.AudioChunk, c.cfg.ChunkBuffer),
		workerDone: make(chan struct{}),
		stopTicker: make(chan struct{}),
		tickerDone: make(chan struct{}),
		genGate:    semaphore.NewWeighted(1),
	}

	c.advanceStatus(ctx, meetingID, types.TranscriptionRecording)

	c.recorder.OnChunk(func(chunk types.AudioChunk) {
		select {
		case s.chunks <- chunk:
		default:
			c.logger.Warn("chunk queue full, dropping chunk",
				"meeting_id", s.meetingID, "seq", chunk.Seq)
		}
	})
	if err := c.recorder.StartRecording(s.captureID); err != nil {
		return fmt.Errorf("start recording: %w", err)
	}

	c.sess = s
	go c.chunkWorker(s)
	if c.cfg.LiveMinutes {
		go c.incrementalLoop(s)
	} else {
		close(s.tickerDone)
	}

	c.logger.Info("transcription started",
		"meeting_id", meetingID, "capture_id", s.captureID)
	return nil
}

// chunkWorker drains the chunk queue so transcription never blocks chunk
// delivery. It exits when the queue is closed and fully drained.
func (c *Coordinator) chunkWorker(s *session) {
	defer close(s.workerDone)
	for chunk := range s.chunks {
		c.processChunk(context.Background(), s, chunk)
	}
}

// processChunk transcribes one chunk. Failures drop the chunk and never abort
// the session.
func (c *Coordinator) processChunk(ctx context.Context, s *session, chunk types.AudioChunk) {
	seg, err := c.engine.TranscribeChunk(ctx, chunk)
	if err != nil {
		c.logger.Warn("chunk transcription failed, dropping chunk",
			"meeting_id", s.meetingID, "seq", chunk.Seq, "error", err)
		return
	}
	if seg == nil {
		// Silence.
		return
	}
	seg.MeetingID = s.meetingID

	if s.meetingID != 0 {
		if _, err := c.segments.Insert(ctx, seg); err != nil {
			c.logger.Warn("failed to persist segment",
				"meeting_id", s.meetingID, "error", err)
		}
	}

	s.segMu.Lock()
	s.segments = append(s.segments, seg)
	s.sinceUpdate++
	trigger := s.sinceUpdate >= c.cfg.SegmentUpdateThreshold
	if trigger {
		s.sinceUpdate = 0
	}
	s.segMu.Unlock()

	if trigger {
		c.triggerIncremental(s)
	}
}

// incrementalLoop fires a periodic incremental update while recording. It is
// cancelled by closing stopTicker as the first step of Stop.
func (c *Coordinator) incrementalLoop(s *session) {
	defer close(s.tickerDone)
	ticker := time.NewTicker(c.cfg.LiveMinutesInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopTicker:
			return
		case <-ticker.C:
			c.triggerIncremental(s)
		}
	}
}

// triggerIncremental starts one detached incremental minutes generation
// unless one is already in flight.
func (c *Coordinator) triggerIncremental(s *session) {
	if !s.genGate.TryAcquire(1) {
		return
	}

	s.segMu.Lock()
	segs := make([]*types.TranscriptSegment, len(s.segments))
	copy(segs, s.segments)
	prev := s.minutes
	s.segMu.Unlock()

	if len(segs) == 0 {
		s.genGate.Release(1)
		return
	}

	s.genWG.Add(1)
	go func() {
		defer s.genWG.Done()
		defer s.genGate.Release(1)

		m, err := c.generator.Generate(context.Background(), s.meetingID, segs, prev, true)
		if err != nil {
			c.logger.Warn("incremental minutes update failed",
				"meeting_id", s.meetingID, "error", err)
			return
		}
		s.segMu.Lock()
		if s.minutes == nil || m.Version > s.minutes.Version {
			s.minutes = m
		}
		s.segMu.Unlock()
	}()
}

// Stop ends the session, transcribes remaining audio, finalizes minutes and
// action items, and publishes transcription.completed. Every step past
// stopping capture is best-effort; a session where everything failed still
// completes with empty artifacts. Calling Stop with no session running is a
// no-op returning nil.
func (c *Coordinator) Stop(ctx context.Context) (*types.MeetingMinutes, error) {
	c.mu.Lock()
	s := c.sess
	c.sess = nil
	c.mu.Unlock()
	if s == nil {
		return nil, nil
	}

	// Cancel the incremental task before stopping capture so no update fires
	// after finalization starts.
	close(s.stopTicker)
	<-s.tickerDone

	audioPath, err := c.recorder.StopRecording()
	if err != nil {
		c.logger.Warn("stop recording failed",
			"meeting_id", s.meetingID, "error", err)
		audioPath = ""
	}

	close(s.chunks)
	<-s.workerDone

	c.advanceStatus(ctx, s.meetingID, types.TranscriptionTranscribing)

	if audioPath != "" {
		c.mergeFullTranscription(ctx, s, audioPath)
	}

	// Let any in-flight incremental update land before the final version.
	s.genWG.Wait()

	s.segMu.Lock()
	segs := s.segments
	prev := s.minutes
	s.segMu.Unlock()

	final, err := c.generator.Generate(ctx, s.meetingID, segs, prev, false)
	if err != nil {
		c.logger.Warn("final minutes generation failed",
			"meeting_id", s.meetingID, "error", err)
		// The last incremental version stands as the final minutes; it still
		// gets its finalized flag so the durable row reflects session end.
		final = prev
		if final != nil {
			final = c.generator.MarkFinalized(ctx, final)
		}
	}

	if final != nil {
		items, err := c.generator.ExtractActionItems(ctx, final)
		if err != nil {
			c.logger.Warn("action item extraction failed",
				"meeting_id", s.meetingID, "error", err)
		} else if len(items) > 0 && s.meetingID != 0 {
			if err := c.items.InsertBatch(ctx, items); err != nil {
				c.logger.Warn("failed to persist action items",
					"meeting_id", s.meetingID, "error", err)
			}
		}
	}

	c.updateMeetingArtifacts(ctx, s, segs, final, audioPath)
	c.advanceStatus(ctx, s.meetingID, types.TranscriptionCompleted)

	c.logger.Info("transcription completed",
		"meeting_id", s.meetingID, "segments", len(segs), "has_minutes", final != nil)
	c.bus.Publish(bus.Event{
		Topic: bus.TopicTranscriptionCompleted,
		Completion: &bus.Completion{
			MeetingID:    s.meetingID,
			SegmentCount: len(segs),
			Minutes:      final,
		},
	})
	return final, nil
}

// mergeFullTranscription re-transcribes the whole recording as a safety net
// against chunk-boundary loss. When the full pass yields at least as many
// segments as live chunking did, it becomes authoritative: the buffer is
// replaced and only segments past what was already persisted are inserted,
// keeping the durable log append-only.
func (c *Coordinator) mergeFullTranscription(ctx context.Context, s *session, audioPath string) {
	full, err := c.engine.Transcribe(ctx, audioPath)
	if err != nil {
		c.logger.Warn("full-file transcription failed, keeping live segments",
			"meeting_id", s.meetingID, "error", err)
		return
	}

	s.segMu.Lock()
	defer s.segMu.Unlock()

	if len(full) < len(s.segments) {
		return
	}

	var lastEnd float64
	for _, seg := range s.segments {
		if seg.EndTime > lastEnd {
			lastEnd = seg.EndTime
		}
	}
	for _, seg := range full {
		seg.MeetingID = s.meetingID
		if s.meetingID != 0 && seg.StartTime >= lastEnd {
			if _, err := c.segments.Insert(ctx, seg); err != nil {
				c.logger.Warn("failed to persist merged segment",
					"meeting_id", s.meetingID, "error", err)
			}
		}
	}
	s.segments = full
}

// updateMeetingArtifacts writes the transcript, summary, and audio path back
// onto the meeting record.
func (c *Coordinator) updateMeetingArtifacts(ctx context.Context, s *session, segs []*types.TranscriptSegment, final *types.MeetingMinutes, audioPath string) {
	if s.meetingID == 0 {
		return
	}
	m, err := c.meetings.Get(ctx, s.meetingID)
	if err != nil {
		c.logger.Warn("failed to load meeting for artifact update",
			"meeting_id", s.meetingID, "error", err)
		return
	}
	m.Transcript = JoinSegments(segs)
	if final != nil {
		m.AISummary = final.Summary
	}
	if audioPath != "" {
		m.AudioFilePath = audioPath
	}
	if err := c.meetings.Update(ctx, m); err != nil {
		c.logger.Warn("failed to persist meeting artifacts",
			"meeting_id", s.meetingID, "error", err)
	}
}

// advanceStatus moves the transcription status forward, best-effort.
func (c *Coordinator) advanceStatus(ctx context.Context, meetingID int64, next types.TranscriptionStatus) {
	if meetingID == 0 {
		return
	}
	if err := c.meetings.AdvanceTranscriptionStatus(ctx, meetingID, next); err != nil {
		c.logger.Warn("failed to advance transcription status",
			"meeting_id", meetingID, "next", next, "error", err)
	}
}

// Recording reports whether a session is running.
func (c *Coordinator) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil
}

// ActiveMeetingID returns the meeting id of the running session, or 0.
func (c *Coordinator) ActiveMeetingID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return 0
	}
	return c.sess.meetingID
}

// Minutes returns the latest minutes for the running session, or nil.
func (c *Coordinator) Minutes() *types.MeetingMinutes {
	c.mu.Lock()
	s := c.sess
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	s.segMu.Lock()
	defer s.segMu.Unlock()
	return s.minutes
}

// JoinSegments concatenates segment text in order.
func JoinSegments(segs []*types.TranscriptSegment) string {
	parts := make([]string, 0, len(segs))
	for _, seg := range segs {
		text := strings.TrimSpace(seg.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}
