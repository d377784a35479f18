package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/services"
)

// RosterHandler exposes the roster mutation engine. A user may move
// themselves; an admin may move anyone. The engine enforces the roster
// invariants, so the handler only gates identity.
type RosterHandler struct {
	roster *services.RosterService
}

func NewRosterHandler(roster *services.RosterService) *RosterHandler {
	return &RosterHandler{roster: roster}
}

// selfOrAdmin resolves the target user of a mutation: an empty requested
// id means the caller acts on themselves, a different id needs admin.
func selfOrAdmin(e *core.RequestEvent, requested string) (string, error) {
	if e.Auth == nil {
		return "", apis.NewUnauthorizedError("Unauthorized", nil)
	}
	if requested == "" || requested == e.Auth.Id {
		return e.Auth.Id, nil
	}
	if !e.Auth.GetBool("is_admin") {
		return "", apis.NewForbiddenError("Only admins can move other users", nil)
	}
	return requested, nil
}

// Join - POST /api/v1/scrims/{id}/players
func (h *RosterHandler) Join(e *core.RequestEvent) error {
	var req struct {
		UserID string `json:"userId"`
		Team   string `json:"team"`
		Role   string `json:"role"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	target, err := selfOrAdmin(e, req.UserID)
	if err != nil {
		return err
	}

	sess, err := h.roster.InsertPlacement(e.Request.Context(), e.Request.PathValue("id"), e.Auth.Id, target, req.Team, req.Role)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, sess)
}

// Leave - DELETE /api/v1/scrims/{id}/players
func (h *RosterHandler) Leave(e *core.RequestEvent) error {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	target, err := selfOrAdmin(e, req.UserID)
	if err != nil {
		return err
	}

	sess, err := h.roster.RemovePlacement(e.Request.Context(), e.Request.PathValue("id"), e.Auth.Id, target)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, sess)
}

// Move - PATCH /api/v1/scrims/{id}/players
func (h *RosterHandler) Move(e *core.RequestEvent) error {
	var req struct {
		UserID string `json:"userId"`
		Team   string `json:"team"`
		Role   string `json:"role"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	target, err := selfOrAdmin(e, req.UserID)
	if err != nil {
		return err
	}

	sess, err := h.roster.MovePlacement(e.Request.Context(), e.Request.PathValue("id"), e.Auth.Id, target, req.Team, req.Role)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, sess)
}

// Swap - POST /api/v1/scrims/{id}/swap
// A non-admin must be one of the two users being swapped.
func (h *RosterHandler) Swap(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	var req struct {
		UserA string `json:"userA"`
		UserB string `json:"userB"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if !e.Auth.GetBool("is_admin") && e.Auth.Id != req.UserA && e.Auth.Id != req.UserB {
		return apis.NewForbiddenError("You can only swap yourself", nil)
	}

	sess, err := h.roster.SwapPlacements(e.Request.Context(), e.Request.PathValue("id"), e.Auth.Id, req.UserA, req.UserB)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, sess)
}

// JoinCasters - POST /api/v1/scrims/{id}/casters
func (h *RosterHandler) JoinCasters(e *core.RequestEvent) error {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	target, err := selfOrAdmin(e, req.UserID)
	if err != nil {
		return err
	}

	sess, err := h.roster.InsertCaster(e.Request.Context(), e.Request.PathValue("id"), e.Auth.Id, target)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, sess)
}

// LeaveCasters - DELETE /api/v1/scrims/{id}/casters
func (h *RosterHandler) LeaveCasters(e *core.RequestEvent) error {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	target, err := selfOrAdmin(e, req.UserID)
	if err != nil {
		return err
	}

	sess, err := h.roster.RemoveCaster(e.Request.Context(), e.Request.PathValue("id"), e.Auth.Id, target)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, sess)
}
