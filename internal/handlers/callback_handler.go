package handlers

import (
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/services"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/status"
)

// CallbackHandler receives the tournament provider's game-result push.
// No user auth: the request is correlated by the opaque metaData tag we
// generated at lobby setup, an unknown tag is dropped with a 404.
type CallbackHandler struct {
	sessions *services.SessionService
}

func NewCallbackHandler(sessions *services.SessionService) *CallbackHandler {
	return &CallbackHandler{sessions: sessions}
}

type callbackParticipant struct {
	PUUID        string `json:"puuid"`
	SummonerName string `json:"summonerName"`
}

func (p callbackParticipant) id() string {
	if p.PUUID != "" {
		return p.PUUID
	}
	return p.SummonerName
}

// Receive - POST /api/v1/callbacks/tournament
func (h *CallbackHandler) Receive(e *core.RequestEvent) error {
	var req struct {
		ShortCode   string                `json:"shortCode"`
		MetaData    string                `json:"metaData"`
		GameID      int64                 `json:"gameId"`
		Region      string                `json:"region"`
		WinningTeam []callbackParticipant `json:"winningTeam"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid callback payload", err)
	}

	winners := make([]string, 0, len(req.WinningTeam))
	for _, p := range req.WinningTeam {
		if id := p.id(); id != "" {
			winners = append(winners, id)
		}
	}

	sess, err := h.sessions.CompleteFromCallback(e.Request.Context(), req.MetaData, winners)
	if err != nil {
		if status.IsNotFound(err) {
			slog.Warn("callback for unknown tag", "tag", req.MetaData, "game_id", req.GameID)
		} else {
			slog.Error("callback processing failed", "tag", req.MetaData, "error", err)
		}
		return apiError(e, err)
	}

	slog.Info("game result recorded", "scrim_id", sess.ID, "winning_team", sess.WinningTeam, "game_id", req.GameID)
	return e.JSON(http.StatusOK, map[string]any{"scrim_id": sess.ID, "winningTeam": sess.WinningTeam})
}
