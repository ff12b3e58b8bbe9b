package auth

import "github.com/Seann-Moser/afisha/session"

// State is the position of the Manager's state machine.
type State int

const (
	// StateRestoring is the initial state, held until the first restoration attempt ends.
	StateRestoring State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateRestoring:
		return "restoring"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the auth state handed to collaborators.
type Status struct {
	State State
	User  *session.User
}

// IsLoading is true only while the initial restoration is in flight.
func (s Status) IsLoading() bool {
	return s.State == StateRestoring
}

func (s Status) IsAuthenticated() bool {
	return s.State == StateAuthenticated && s.User != nil
}

// Result is what login, register and check-session report back. They never return errors.
type Result struct {
	Success bool
	Error   string
	// Redirect is where to navigate after a successful login.
	Redirect string
	Data     any
	// Err is the failure behind Error, classified by the apiclient sentinels.
	Err error
}
