package handlers

import (
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/services"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/store"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/models"
)

type ScrimHandler struct {
	sessions *services.SessionService
}

func NewScrimHandler(sessions *services.SessionService) *ScrimHandler {
	return &ScrimHandler{sessions: sessions}
}

// Create - POST /api/v1/scrims
func (h *ScrimHandler) Create(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Region        string    `json:"region"`
		Title         string    `json:"title"`
		GameStartTime time.Time `json:"gameStartTime"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	sess, err := h.sessions.CreateSession(e.Request.Context(), services.CreateSessionInput{
		Region:        req.Region,
		Title:         req.Title,
		GameStartTime: req.GameStartTime,
		CreatedBy:     e.Auth.Id,
	})
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusCreated, sess)
}

// Get - GET /api/v1/scrims/{id}
func (h *ScrimHandler) Get(e *core.RequestEvent) error {
	sess, err := h.sessions.GetSession(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, sess)
}

// List - GET /api/v1/scrims?region=&status=&from=&to=
func (h *ScrimHandler) List(e *core.RequestEvent) error {
	q := e.Request.URL.Query()
	filter := store.SessionFilter{
		Region: q.Get("region"),
		Status: models.Status(q.Get("status")),
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return apis.NewBadRequestError("Invalid from time", err)
		}
		filter.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return apis.NewBadRequestError("Invalid to time", err)
		}
		filter.To = t
	}

	list, err := h.sessions.ListSessions(e.Request.Context(), filter)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"scrims": list, "count": len(list)})
}

// Update - PATCH /api/v1/scrims/{id}, creator or admin only.
func (h *ScrimHandler) Update(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	id := e.Request.PathValue("id")

	sess, err := h.sessions.GetSession(e.Request.Context(), id)
	if err != nil {
		return apiError(e, err)
	}
	if sess.CreatedBy != e.Auth.Id && !e.Auth.GetBool("is_admin") {
		return apis.NewForbiddenError("Only the creator or an admin can edit a scrim", nil)
	}

	var req struct {
		Title         *string    `json:"title"`
		GameStartTime *time.Time `json:"gameStartTime"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	updated, err := h.sessions.UpdateSessionInfo(e.Request.Context(), id, e.Auth.Id, req.Title, req.GameStartTime)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, updated)
}

// SetWinner - POST /api/v1/scrims/{id}/winner, creator or admin.
func (h *ScrimHandler) SetWinner(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	id := e.Request.PathValue("id")

	sess, err := h.sessions.GetSession(e.Request.Context(), id)
	if err != nil {
		return apiError(e, err)
	}
	if sess.CreatedBy != e.Auth.Id && !e.Auth.GetBool("is_admin") {
		return apis.NewForbiddenError("Only the creator or an admin can set the winner", nil)
	}

	var req struct {
		WinningTeam string `json:"winningTeam"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	updated, err := h.sessions.SetWinner(e.Request.Context(), id, e.Auth.Id, req.WinningTeam)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, updated)
}

// Cancel - POST /api/v1/scrims/{id}/cancel, creator or admin.
func (h *ScrimHandler) Cancel(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	id := e.Request.PathValue("id")

	sess, err := h.sessions.GetSession(e.Request.Context(), id)
	if err != nil {
		return apiError(e, err)
	}
	if sess.CreatedBy != e.Auth.Id && !e.Auth.GetBool("is_admin") {
		return apis.NewForbiddenError("Only the creator or an admin can cancel a scrim", nil)
	}

	updated, err := h.sessions.CancelSession(e.Request.Context(), id, e.Auth.Id)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, updated)
}
