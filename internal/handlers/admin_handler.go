package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/services"
)

type AdminHandler struct {
	roster    *services.RosterService
	sessions  *services.SessionService
	scheduler *services.Scheduler
}

func NewAdminHandler(roster *services.RosterService, sessions *services.SessionService, scheduler *services.Scheduler) *AdminHandler {
	return &AdminHandler{roster: roster, sessions: sessions, scheduler: scheduler}
}

// RequireAdmin is route middleware for the admin group.
func RequireAdmin(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	if !e.Auth.GetBool("is_admin") {
		return apis.NewForbiddenError("Admin access required", nil)
	}
	return e.Next()
}

// Assign - POST /api/v1/admin/scrims/{id}/assign
func (h *AdminHandler) Assign(e *core.RequestEvent) error {
	var req struct {
		UserID string `json:"userId"`
		Team   string `json:"team"`
		Role   string `json:"role"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.UserID == "" {
		return apis.NewBadRequestError("User ID required", nil)
	}

	sess, err := h.roster.AdminAssignPlacement(e.Request.Context(), e.Request.PathValue("id"), e.Auth.Id, req.UserID, req.Team, req.Role)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, sess)
}

// FillRandom - POST /api/v1/admin/scrims/{id}/fill
// Fills every open slot from the region's eligible users, all or nothing.
func (h *AdminHandler) FillRandom(e *core.RequestEvent) error {
	sess, err := h.roster.AdminFillRandom(e.Request.Context(), e.Request.PathValue("id"), e.Auth.Id)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, sess)
}

// Initialize - POST /api/v1/admin/scrims/{id}/initialize
// Re-triggers the lobby setup after a provider failure. Safe to repeat:
// a completed setup is a no-op.
func (h *AdminHandler) Initialize(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	if err := h.scheduler.Initialize(e.Request.Context(), id); err != nil {
		return apiError(e, err)
	}
	sess, err := h.sessions.GetSession(e.Request.Context(), id)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, sess)
}

// Delete - DELETE /api/v1/admin/scrims/{id}
func (h *AdminHandler) Delete(e *core.RequestEvent) error {
	if err := h.sessions.DeleteSession(e.Request.Context(), e.Request.PathValue("id")); err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"message": "Scrim deleted"})
}

// Timers - GET /api/v1/admin/scheduler
// Operational view of the in-process countdown registry.
func (h *AdminHandler) Timers(e *core.RequestEvent) error {
	return e.JSON(http.StatusOK, map[string]any{
		"count":     h.scheduler.TimerCount(),
		"scrim_ids": h.scheduler.ScheduledIDs(),
	})
}
