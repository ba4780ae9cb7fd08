// Package httpapi is the local control surface: meeting confirmation and
// dismissal, manual end, status, and read access to archived meetings. It
// binds to loopback by default and carries no authentication.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/user/meetscribe/internal/coordinator"
	"github.com/user/meetscribe/internal/detector"
	"github.com/user/meetscribe/internal/minutes"
	"github.com/user/meetscribe/internal/types"
)

// Server handles control API requests.
type Server struct {
	detector  *detector.Detector
	coord     *coordinator.Coordinator
	meetings  types.MeetingStore
	segments  types.SegmentStore
	minStore  types.MinutesStore
	items     types.ActionItemStore
	generator coordinator.Generator
	logger    *slog.Logger
	mux       *http.ServeMux
}

// NewServer creates the control server.
func NewServer(d *detector.Detector, c *coordinator.Coordinator, meetings types.MeetingStore, segments types.SegmentStore, minStore types.MinutesStore, items types.ActionItemStore, generator coordinator.Generator, logger *slog.Logger) *Server {
	s := &Server{
		detector:  d,
		coord:     c,
		meetings:  meetings,
		segments:  segments,
		minStore:  minStore,
		items:     items,
		generator: generator,
		logger:    logger,
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("POST /meetings/confirm", s.handleConfirm)
	s.mux.HandleFunc("POST /meetings/dismiss", s.handleDismiss)
	s.mux.HandleFunc("POST /meetings/end", s.handleEnd)
	s.mux.HandleFunc("GET /api/meetings", s.handleListMeetings)
	s.mux.HandleFunc("GET /api/meetings/{id}", s.handleGetMeeting)
	s.mux.HandleFunc("POST /api/meetings/{id}/minutes/regenerate", s.handleRegenerate)
	s.mux.HandleFunc("POST /api/action-items/{id}/status", s.handleItemStatus)
	s.mux.HandleFunc("DELETE /api/action-items/{id}", s.handleItemDelete)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// statusResponse is the daemon state snapshot.
type statusResponse struct {
	DetectorState   detector.State        `json:"detector_state"`
	Pending         *types.AppSample      `json:"pending,omitempty"`
	Session         *types.MeetingSession `json:"session,omitempty"`
	Recording       bool                  `json:"recording"`
	ActiveMeetingID int64                 `json:"active_meeting_id,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, statusResponse{
		DetectorState:   s.detector.State(),
		Pending:         s.detector.Pending(),
		Session:         s.detector.ActiveSession(),
		Recording:       s.coord.Recording(),
		ActiveMeetingID: s.coord.ActiveMeetingID(),
	})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	sess, err := s.detector.ConfirmStart(r.Context())
	if err != nil {
		http.Error(w, `{"error":"no meeting awaiting confirmation"}`, http.StatusConflict)
		return
	}
	writeJSON(w, sess)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	s.detector.DismissStart()
	writeJSON(w, map[string]string{"status": "dismissed"})
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	if err := s.detector.EndMeeting(r.Context()); err != nil {
		http.Error(w, `{"error":"no active meeting"}`, http.StatusConflict)
		return
	}
	writeJSON(w, map[string]string{"status": "ended"})
}

func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}
	list, err := s.meetings.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("list meetings failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*types.Meeting{}
	}
	writeJSON(w, list)
}

// meetingResponse bundles a meeting with its artifacts.
type meetingResponse struct {
	Meeting  *types.Meeting             `json:"meeting"`
	Segments []*types.TranscriptSegment `json:"segments"`
	Minutes  *types.MeetingMinutes      `json:"minutes,omitempty"`
	Items    []*types.ActionItem        `json:"action_items"`
}

func (s *Server) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	m, err := s.meetings.Get(ctx, id)
	if err != nil {
		http.Error(w, `{"error":"meeting not found"}`, http.StatusNotFound)
		return
	}
	segs, err := s.segments.ListByMeeting(ctx, id)
	if err != nil {
		s.logger.Error("list segments failed", "meeting_id", id, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if segs == nil {
		segs = []*types.TranscriptSegment{}
	}
	mins, err := s.minStore.GetByMeeting(ctx, id)
	if err != nil {
		s.logger.Error("get minutes failed", "meeting_id", id, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	items, err := s.items.ListByMeeting(ctx, id)
	if err != nil {
		s.logger.Error("list action items failed", "meeting_id", id, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []*types.ActionItem{}
	}
	writeJSON(w, meetingResponse{Meeting: m, Segments: segs, Minutes: mins, Items: items})
}

// handleRegenerate is the one path that propagates generation errors: a
// user-invoked regenerate surfaces failures instead of degrading silently.
func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if _, err := s.meetings.Get(ctx, id); err != nil {
		http.Error(w, `{"error":"meeting not found"}`, http.StatusNotFound)
		return
	}
	segs, err := s.segments.ListByMeeting(ctx, id)
	if err != nil {
		s.logger.Error("list segments failed", "meeting_id", id, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	prev, err := s.minStore.GetByMeeting(ctx, id)
	if err != nil {
		s.logger.Error("get minutes failed", "meeting_id", id, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	m, err := s.generator.Generate(ctx, id, segs, prev, false)
	switch {
	case errors.Is(err, minutes.ErrNoSegments):
		http.Error(w, `{"error":"meeting has no transcript segments"}`, http.StatusUnprocessableEntity)
		return
	case errors.Is(err, minutes.ErrMalformedResponse):
		http.Error(w, `{"error":"model returned a malformed response"}`, http.StatusBadGateway)
		return
	case err != nil:
		s.logger.Error("regenerate minutes failed", "meeting_id", id, "error", err)
		http.Error(w, `{"error":"minutes generation failed"}`, http.StatusBadGateway)
		return
	}
	writeJSON(w, m)
}

// itemStatusRequest is the JSON body for POST /api/action-items/{id}/status.
type itemStatusRequest struct {
	Status types.ActionItemStatus `json:"status"`
}

func (s *Server) handleItemStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req itemStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Status != types.ActionItemPending && req.Status != types.ActionItemCompleted {
		http.Error(w, `{"error":"status must be pending or completed"}`, http.StatusBadRequest)
		return
	}
	if err := s.items.SetStatus(r.Context(), id, req.Status); err != nil {
		http.Error(w, `{"error":"action item not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"status": "updated"})
}

func (s *Server) handleItemDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.items.Delete(r.Context(), id); err != nil {
		http.Error(w, `{"error":"action item not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"status": "deleted"})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
