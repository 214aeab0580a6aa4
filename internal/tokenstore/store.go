// Package tokenstore persists the bearer token in one of two storage areas:
// a persistent area that survives restarts and a session-scoped area that
// dies with the process. At most one of them holds the token at a time.
package tokenstore

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/taskdesk/internal/errors"
	"github.com/felixgeelhaar/taskdesk/internal/log"
)

// Storage keys.
const (
	KeyToken    = "token"
	KeyLastUser = "lastUser"
)

// Kind identifies which area holds the token.
type Kind int

const (
	KindNone Kind = iota
	KindPersistent
	KindSession
)

func (k Kind) String() string {
	switch k {
	case KindPersistent:
		return "persistent"
	case KindSession:
		return "session"
	default:
		return "none"
	}
}

// KindFor maps a "remember me" choice to a storage kind.
func KindFor(persistent bool) Kind {
	if persistent {
		return KindPersistent
	}
	return KindSession
}

// LastUser is a diagnostic breadcrumb of the most recent login. It is never
// used for authorization.
type LastUser struct {
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	LoginTime time.Time `json:"loginTime"`
}

// Store is the single entry point for token persistence. Call sites never
// touch the areas directly.
//
// Storage failures are logged and swallowed: a broken area behaves as an
// empty one.
type Store struct {
	persistent Area
	session    Area
	logger     *log.Logger
}

// New creates a Store over the given areas.
func New(persistent, session Area, logger *log.Logger) *Store {
	return &Store{
		persistent: persistent,
		session:    session,
		logger:     log.Or(logger).With("component", "tokenstore"),
	}
}

func (s *Store) area(k Kind) Area {
	if k == KindPersistent {
		return s.persistent
	}
	return s.session
}

// Save clears both areas, then writes token to the area selected by
// persistent. It reports whether the write succeeded; failures are logged,
// never returned, and leave no token in either area.
func (s *Store) Save(token string, persistent bool) bool {
	s.Clear()

	kind := KindFor(persistent)
	if err := s.area(kind).Set(KeyToken, token); err != nil {
		s.warn("token write failed", kind, errors.Wrap(errors.ErrCodeStoreWriteFailed, "write token", err))
		return false
	}
	s.logger.Debug("token saved", "kind", kind.String(), "fingerprint", Fingerprint(token))
	return true
}

// Rewrite stores token again in the area of the given kind without touching
// the other one. Session restore uses it to refresh the live entry.
func (s *Store) Rewrite(token string, kind Kind) {
	if kind == KindNone || token == "" {
		return
	}
	if err := s.area(kind).Set(KeyToken, token); err != nil {
		s.warn("token rewrite failed", kind, errors.Wrap(errors.ErrCodeStoreWriteFailed, "rewrite token", err))
	}
}

// Read returns the persistent token if present, else the session token,
// else "" with KindNone.
func (s *Store) Read() (string, Kind) {
	for _, kind := range []Kind{KindPersistent, KindSession} {
		v, ok, err := s.area(kind).Get(KeyToken)
		if err != nil {
			s.warn("token read failed", kind, errors.Wrap(errors.ErrCodeStoreReadFailed, "read token", err))
			continue
		}
		if ok && v != "" {
			return v, kind
		}
	}
	return "", KindNone
}

// Token is Read without the kind.
func (s *Store) Token() string {
	t, _ := s.Read()
	return t
}

// HasToken reports whether any area holds a token.
func (s *Store) HasToken() bool {
	return s.Token() != ""
}

// Clear removes the token from both areas unconditionally.
func (s *Store) Clear() {
	for _, kind := range []Kind{KindPersistent, KindSession} {
		if err := s.area(kind).Delete(KeyToken); err != nil {
			s.warn("token delete failed", kind, errors.Wrap(errors.ErrCodeStoreWriteFailed, "delete token", err))
		}
	}
}

// RecordLastUser writes the login breadcrumb to the persistent area.
func (s *Store) RecordLastUser(email, role string, at time.Time) {
	b, err := json.Marshal(LastUser{Email: email, Role: role, LoginTime: at.UTC()})
	if err != nil {
		return
	}
	if err := s.persistent.Set(KeyLastUser, string(b)); err != nil {
		s.warn("breadcrumb write failed", KindPersistent, err)
	}
}

// LastUser returns the breadcrumb, if one was recorded and is readable.
func (s *Store) LastUser() (LastUser, bool) {
	v, ok, err := s.persistent.Get(KeyLastUser)
	if err != nil || !ok {
		return LastUser{}, false
	}
	var lu LastUser
	if err := json.Unmarshal([]byte(v), &lu); err != nil {
		return LastUser{}, false
	}
	return lu, true
}

func (s *Store) warn(msg string, kind Kind, err error) {
	s.logger.WithError(err).Warn(msg, "kind", kind.String())
}

// Fingerprint returns a short, stable, non-reversible identifier for a token
// that is safe to log.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := blake3.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}
