package models

import (
	"strings"

	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/status"
)

// Role is one of the five fixed team positions.
type Role string

const (
	RoleTop     Role = "Top"
	RoleJungle  Role = "Jungle"
	RoleMid     Role = "Mid"
	RoleADC     Role = "ADC"
	RoleSupport Role = "Support"
)

// RoleOrder is the canonical slot order used for rendering rosters and for
// deterministic lobby host selection.
var RoleOrder = []Role{RoleTop, RoleJungle, RoleMid, RoleADC, RoleSupport}

// NormalizeRole maps any casing of a role name to its canonical form.
// All role input goes through here once, at the boundary.
func NormalizeRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "top":
		return RoleTop, nil
	case "jungle":
		return RoleJungle, nil
	case "mid", "middle":
		return RoleMid, nil
	case "adc", "bot", "bottom":
		return RoleADC, nil
	case "support", "supp":
		return RoleSupport, nil
	}
	return "", &status.ValidationError{Field: "role", Reason: "unknown role " + s}
}

// Team names as they appear on the wire and in storage.
const (
	TeamOne = "teamOne"
	TeamTwo = "teamTwo"
)

// NormalizeTeam validates a team name.
func NormalizeTeam(s string) (string, error) {
	switch strings.TrimSpace(s) {
	case TeamOne:
		return TeamOne, nil
	case TeamTwo:
		return TeamTwo, nil
	}
	return "", &status.ValidationError{Field: "team", Reason: "unknown team " + s}
}

// OtherTeam returns the opposing team name.
func OtherTeam(team string) string {
	if team == TeamOne {
		return TeamTwo
	}
	return TeamOne
}

// Roster holds one team's placements keyed by role. A missing key is an
// open slot, so "slot occupied" is a direct lookup and cross-team moves
// are two map writes with no transient duplicate.
type Roster map[Role]string

// TeamSize is the number of slots per team.
const TeamSize = 5

// Count returns the number of occupied slots.
func (r Roster) Count() int { return len(r) }

// Full reports whether all five slots are occupied.
func (r Roster) Full() bool { return len(r) == TeamSize }

// RoleOf returns the role a user occupies, if any.
func (r Roster) RoleOf(userID string) (Role, bool) {
	for role, uid := range r {
		if uid == userID {
			return role, true
		}
	}
	return "", false
}

// Users returns the user ids in canonical role order.
func (r Roster) Users() []string {
	out := make([]string, 0, len(r))
	for _, role := range RoleOrder {
		if uid, ok := r[role]; ok {
			out = append(out, uid)
		}
	}
	return out
}

// Clone returns a copy of the roster.
func (r Roster) Clone() Roster {
	out := make(Roster, len(r))
	for role, uid := range r {
		out[role] = uid
	}
	return out
}

// Placement is one (team, role, user) binding, the shape rosters take in
// API responses and edit history payloads.
type Placement struct {
	Team   string `json:"team"`
	Role   Role   `json:"role"`
	UserID string `json:"userId"`
}
