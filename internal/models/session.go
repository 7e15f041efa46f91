package models

import (
	"encoding/json"
	"time"
)

// GateState is the closed state set of the session and authorization gate.
type GateState int

const (
	// StateUnauthenticated means no session marker, or the marker was invalid.
	StateUnauthenticated GateState = iota
	// StateLoading means a marker exists but the live record is not resolved yet.
	StateLoading
	// StateProfileMissing means the referenced identity record no longer exists;
	// the session must be torn down on this observation.
	StateProfileMissing
	// StatePendingApproval means the record exists but awaits admin approval.
	StatePendingApproval
	// StateAuthorized grants dashboard access for the resolved role.
	StateAuthorized
)

func (s GateState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateLoading:
		return "loading"
	case StateProfileMissing:
		return "profile_missing"
	case StatePendingApproval:
		return "pending_approval"
	case StateAuthorized:
		return "authorized"
	}
	return "unknown"
}

// MarshalJSON renders the state as its string name.
func (s GateState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// GateDecision is the resolved outcome for one request or session tick.
type GateDecision struct {
	State    GateState      `json:"state"`
	Role     Role           `json:"role,omitempty"`
	Identity *Identity      `json:"-"`
	Claims   *SessionClaims `json:"-"`
	// RedirectTo is the client area this state should land on, e.g. "/login",
	// "/pending" or a role home like "/student".
	RedirectTo string `json:"redirect_to,omitempty"`
}

// Session is the server-side record behind a session token.
type Session struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	CreatedAt  time.Time `json:"created_at"`
}
