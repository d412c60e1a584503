// Package episode persists episodic conversation memory: an append-only log
// of dialogue turns indexed by embedding for similarity recall.
//
// Episodes are never updated or deleted. Recall orders by similarity, not
// time, but created_at is preserved for audit. No eviction policy exists;
// retention is an explicit extension point.
package episode

import (
	"errors"
	"fmt"
	"time"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var (
	// ErrInvalidRole is returned for roles outside the user/assistant enum.
	ErrInvalidRole = errors.New("invalid episode role")

	// ErrStore wraps connection and query failures so callers can tell
	// "store unavailable" apart from "no results".
	ErrStore = errors.New("episode store unavailable")
)

// Valid reports whether the role is part of the enum.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Episode represents one recorded turn of dialogue.
type Episode struct {
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Match is one similarity result. Distance is cosine distance, smaller is
// more similar.
type Match struct {
	Role      Role
	Content   string
	CreatedAt time.Time
	Distance  float64
}

func validateRole(r Role) error {
	if !r.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, r)
	}
	return nil
}
