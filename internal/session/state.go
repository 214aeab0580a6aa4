package session

import (
	"github.com/felixgeelhaar/taskdesk/internal/account"
)

// State is the position of the session in the restore state machine.
//
//	Idle -> Checking -> Authenticated | Unauthenticated | Error
//	Idle -> Unauthenticated              (no stored token)
type State int

const (
	StateIdle State = iota
	StateChecking
	StateAuthenticated
	StateUnauthenticated
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChecking:
		return "checking"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Settled reports whether the state is terminal for a restore pass.
func (s State) Settled() bool {
	return s == StateAuthenticated || s == StateUnauthenticated || s == StateError
}

// Snapshot is an immutable view of the session.
type Snapshot struct {
	State State
	// User is nil unless State is StateAuthenticated.
	User *account.User
	// HasToken reports whether a token is stored in either area.
	HasToken bool
	// Err explains StateError and, after a rejected token, StateUnauthenticated.
	Err error
	// Mount counts app mounts; it increases on every Remount.
	Mount int
}

// Authenticated is shorthand for a hydrated user being present.
func (s Snapshot) Authenticated() bool {
	return s.User != nil
}
