// Package provider defines the tournament lobby provisioning contract.
// The core only needs the three-step setup (provider -> tournament -> code)
// plus the allowed-participants update; everything else about the external
// service is its own business.
package provider

import "context"

// Lobby code defaults for a standard 5v5 scrim.
const (
	DefaultMapType       = "SUMMONERS_RIFT"
	DefaultPickType      = "TOURNAMENT_DRAFT"
	DefaultSpectatorType = "ALL"
)

// CodeParams configures lobby code creation. Metadata is the opaque tag
// echoed back in the provider's game-completion callback; it is how a
// callback is correlated to a session.
type CodeParams struct {
	TeamSize            int      `json:"teamSize"`
	MapType             string   `json:"mapType"`
	PickType            string   `json:"pickType"`
	SpectatorType       string   `json:"spectatorType"`
	Metadata            string   `json:"metadata"`
	AllowedParticipants []string `json:"allowedParticipants,omitempty"`
}

// Provider is the stateless request/response wrapper around the external
// lobby-provisioning API.
type Provider interface {
	CreateProvider(ctx context.Context, region, callbackURL string) (int, error)
	CreateTournament(ctx context.Context, name string, providerID int) (int, error)
	CreateLobbyCode(ctx context.Context, tournamentID int, params CodeParams) ([]string, error)
	UpdateLobbyCode(ctx context.Context, code string, allowedParticipants []string) error
}
