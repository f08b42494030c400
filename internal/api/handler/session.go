package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/photogrid/internal/api/middleware"
	"github.com/timmy/photogrid/internal/domain"
	"github.com/timmy/photogrid/internal/feed"
	"github.com/timmy/photogrid/internal/grid"
	"github.com/timmy/photogrid/internal/logger"
	"github.com/timmy/photogrid/internal/session"
	"github.com/timmy/photogrid/internal/source"
)

// AttemptLister reads the fetch journal.
type AttemptLister interface {
	ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.FetchAttempt, error)
	CountByOutcome(ctx context.Context, sessionID string, outcome domain.AttemptOutcome) (int64, error)
}

var journalOutcomes = []domain.AttemptOutcome{
	domain.AttemptOutcomeOK,
	domain.AttemptOutcomeEmpty,
	domain.AttemptOutcomeTransient,
	domain.AttemptOutcomePermanent,
}

// SessionHandler exposes screen sessions over HTTP.
type SessionHandler struct {
	sessions *session.Manager
	attempts AttemptLister
}

// NewSessionHandler creates a new session handler.
// Parameters:
//   - sessions: live session manager.
//   - attempts: journal reader; nil when the journal is disabled.
//
// Returns:
//   - *SessionHandler: initialized handler.
func NewSessionHandler(sessions *session.Manager, attempts AttemptLister) *SessionHandler {
	return &SessionHandler{sessions: sessions, attempts: attempts}
}

// FetchErrorBody renders a loader failure for inline retry UI.
type FetchErrorBody struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	Page       int    `json:"page,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

// StatusBody is feed.Status with its error rendered.
type StatusBody struct {
	NextPage  int             `json:"next_page"`
	InFlight  bool            `json:"in_flight"`
	Exhausted bool            `json:"exhausted"`
	Loaded    int             `json:"loaded"`
	LastError *FetchErrorBody `json:"last_error,omitempty"`
}

// SessionBody is the response for session reads.
type SessionBody struct {
	ID       string        `json:"id"`
	Snapshot grid.Snapshot `json:"snapshot"`
	Status   StatusBody    `json:"status"`
}

// RowsBody is the response for GET /sessions/:id/rows.
type RowsBody struct {
	ID            string     `json:"id"`
	Version       uint64     `json:"version"`
	SelectedIndex int        `json:"selected_index"`
	Rows          []grid.Row `json:"rows"`
}

// SelectionBody is the response for selection reads and writes.
type SelectionBody struct {
	SelectedID string              `json:"selected_id,omitempty"`
	Index      int                 `json:"index"`
	PagerIndex int                 `json:"pager_index"`
	Photo      *domain.PhotoRecord `json:"photo,omitempty"`
	Version    uint64              `json:"version"`
}

type selectRequest struct {
	ID string `json:"id"`
}

func renderFetchError(err error) *FetchErrorBody {
	if err == nil {
		return nil
	}
	body := &FetchErrorBody{Kind: string(source.KindOf(err)), Message: err.Error()}
	var fe *source.FetchError
	if errors.As(err, &fe) {
		body.Page = fe.Page
		body.StatusCode = fe.StatusCode
	}
	return body
}

func renderStatus(st feed.Status) StatusBody {
	return StatusBody{
		NextPage:  st.NextPage,
		InFlight:  st.InFlight,
		Exhausted: st.Exhausted,
		Loaded:    st.Loaded,
		LastError: renderFetchError(st.LastErr),
	}
}

func renderSession(sess *session.Session) SessionBody {
	v := sess.View()
	return SessionBody{ID: v.ID, Snapshot: v.Snapshot, Status: renderStatus(v.Status)}
}

func renderSelection(snap grid.Snapshot) SelectionBody {
	idx := snap.SelectedIndex()
	body := SelectionBody{SelectedID: snap.SelectedID, Index: idx, PagerIndex: max(idx, 0), Version: snap.Version}
	if photo, ok := snap.Selected(); ok {
		body.Photo = &photo
	}
	return body
}

// lookup resolves :id or writes a 404.
func (h *SessionHandler) lookup(c *gin.Context) (*session.Session, bool) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}
	return sess, true
}

// Open handles POST /api/v1/sessions.
func (h *SessionHandler) Open(c *gin.Context) {
	sess, err := h.sessions.Open(c.Request.Context())
	if err != nil {
		if errors.Is(err, session.ErrManagerClosed) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Server is shutting down"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open session: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, renderSession(sess))
}

// Get handles GET /api/v1/sessions/:id.
func (h *SessionHandler) Get(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, renderSession(sess))
}

// Rows handles GET /api/v1/sessions/:id/rows.
func (h *SessionHandler) Rows(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	snap := sess.Grid.Snapshot()
	c.JSON(http.StatusOK, RowsBody{
		ID:            sess.ID,
		Version:       snap.Version,
		SelectedIndex: snap.SelectedIndex(),
		Rows:          snap.Rows(),
	})
}

// Next handles POST /api/v1/sessions/:id/next.
func (h *SessionHandler) Next(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	if sess.Loader.LoadNext() {
		c.JSON(http.StatusAccepted, renderStatus(sess.Loader.Status()))
		return
	}

	st := sess.Loader.Status()
	if st.Closed {
		// Torn down by a concurrent DELETE.
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	reason := "busy"
	if st.Exhausted {
		reason = "exhausted"
	}
	c.JSON(http.StatusConflict, gin.H{
		"error":  "Fetch not started: " + reason,
		"status": renderStatus(st),
	})
}

// Restart handles POST /api/v1/sessions/:id/restart.
func (h *SessionHandler) Restart(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	if !sess.Loader.Start() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	middleware.GetLogger(c).Info("Feed restarted")
	c.JSON(http.StatusAccepted, renderStatus(sess.Loader.Status()))
}

// Selection handles GET /api/v1/sessions/:id/selection.
func (h *SessionHandler) Selection(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, renderSelection(sess.Grid.Snapshot()))
}

// Select handles PUT /api/v1/sessions/:id/selection. An empty id clears it.
func (h *SessionHandler) Select(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	sess.Grid.Select(req.ID)
	c.JSON(http.StatusOK, renderSelection(sess.Grid.Snapshot()))
}

// Attempts handles GET /api/v1/sessions/:id/attempts.
func (h *SessionHandler) Attempts(c *gin.Context) {
	if h.attempts == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Fetch journal is disabled"})
		return
	}
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	ctx := c.Request.Context()
	attempts, err := h.attempts.ListBySession(ctx, sess.ID, limit)
	if err != nil {
		logger.CtxError(ctx, "Failed to list fetch attempts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list attempts: " + err.Error()})
		return
	}

	// Counts cover the whole journal, not just the returned window.
	summary := make(map[domain.AttemptOutcome]int64, len(journalOutcomes))
	for _, outcome := range journalOutcomes {
		n, err := h.attempts.CountByOutcome(ctx, sess.ID, outcome)
		if err != nil {
			logger.CtxError(ctx, "Failed to count %s fetch attempts: %v", outcome, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count attempts: " + err.Error()})
			return
		}
		summary[outcome] = n
	}

	c.JSON(http.StatusOK, gin.H{
		"attempts": attempts,
		"total":    len(attempts),
		"summary":  summary,
	})
}

// Close handles DELETE /api/v1/sessions/:id.
func (h *SessionHandler) Close(c *gin.Context) {
	if err := h.sessions.Close(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
