package session

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vibevideos/client/internal/models"
)

// ErrNoSession indicates an operation required an active session.
var ErrNoSession = errors.New("not logged in")

// Store is the process-wide holder of the current session. It owns durable
// token storage exclusively: no other component reads or writes it. A mutex
// guards state because teardown signals may arrive from bus callbacks.
type Store struct {
	mu      sync.Mutex
	storage Storage
	logger  *slog.Logger

	current models.Session
	loaded  bool
}

// NewStore constructs a Store over the provided Storage.
func NewStore(storage Storage, logger *slog.Logger) *Store {
	if storage == nil {
		panic("session: storage must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{storage: storage, logger: logger}
}

// Initialize loads a previously persisted token. It runs the load exactly
// once per process; later calls are no-ops. A stored token is trusted as-is:
// validity is checked lazily by the first authorized call.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return nil
	}
	s.loaded = true

	token, err := s.storage.Load()
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}

	s.current = models.Session{Token: token, UserID: userIDFromToken(token)}
	s.logger.Info("restored persisted session", "user_id", s.current.UserID)
	return nil
}

// Activate makes the session the process-wide current one and persists its
// token. Only a successful login calls it.
func (s *Store) Activate(session models.Session) error {
	if !session.Active() {
		return ErrNoSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Save(session.Token); err != nil {
		return err
	}
	s.current = session
	s.loaded = true
	s.logger.Info("session activated", "user_id", session.UserID)
	return nil
}

// Clear removes the session from memory and durable storage. Calling it
// with no active session is safe.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Clear(); err != nil {
		return err
	}
	if s.current.Active() {
		s.logger.Info("session cleared", "user_id", s.current.UserID)
	}
	s.current = models.Session{}
	return nil
}

// Current returns a copy of the active session. Callers never get a way to
// mutate the store's state.
func (s *Store) Current() (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current.Active()
}

type tokenClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// userIDFromToken recovers the user id from an unverified JWT so a restored
// session is attributable in logs. Advisory only: signature and expiry stay
// the server's problem.
func userIDFromToken(token string) string {
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return ""
	}
	if claims.UserID != "" {
		return claims.UserID
	}
	return claims.Subject
}
