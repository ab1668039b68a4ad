package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vibevideos/client/internal/api"
	"github.com/vibevideos/client/internal/identity"
	"github.com/vibevideos/client/internal/models"
)

// State names the step of the credential exchange the user is on.
type State string

const (
	// StateSignup collects a contact identity and secret for registration.
	StateSignup State = "signup"
	// StateVerify collects the one-time code proving contact ownership.
	StateVerify State = "verify"
	// StateLogin collects credentials for an existing verified account.
	StateLogin State = "login"
)

// phase gates re-entrant submissions. An explicit field rather than a bool
// so the one-request-at-a-time invariant is inspectable in tests.
type phase int

const (
	phaseIdle phase = iota
	phaseInFlight
)

var (
	// ErrRequestInFlight indicates a submission arrived while the previous
	// one was still pending. The caller retries after it settles.
	ErrRequestInFlight = errors.New("a request is already in flight")
	// ErrStateMismatch indicates an operation that does not belong to the
	// current flow state was submitted.
	ErrStateMismatch = errors.New("operation does not match the current step")
)

// Exchanger is the slice of the service client the flow drives.
type Exchanger interface {
	Signup(ctx context.Context, contact identity.Contact, password string) (api.SignupReceipt, error)
	Verify(ctx context.Context, contact identity.Contact, code string) error
	Login(ctx context.Context, contact identity.Contact, password string) (models.Session, error)
}

// SessionActivator receives the session produced by a successful login.
type SessionActivator interface {
	Activate(session models.Session) error
}

// Flow is the signup → verify → login state machine. Failed operations
// surface a message and leave the state unchanged; mode switches are free
// jumps with no protocol side effects.
type Flow struct {
	mu        sync.Mutex
	exchanger Exchanger
	sessions  SessionActivator
	logger    *slog.Logger

	state   State
	phase   phase
	message string
	authed  bool
}

// New constructs a Flow starting at StateSignup.
func New(exchanger Exchanger, sessions SessionActivator, logger *slog.Logger) *Flow {
	if exchanger == nil || sessions == nil {
		panic("authflow: exchanger and session activator must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		exchanger: exchanger,
		sessions:  sessions,
		logger:    logger,
		state:     StateSignup,
	}
}

// State returns the current flow state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Message returns the last surfaced status or failure message.
func (f *Flow) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// Authenticated reports whether the flow has exited into the logged-in
// state. Authenticated is terminal until Reset.
func (f *Flow) Authenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authed
}

// SwitchTo jumps directly to another step. It is a user-initiated UI
// transition and performs no protocol call.
func (f *Flow) SwitchTo(state State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.phase == phaseInFlight {
		return
	}
	f.state = state
	f.message = ""
}

// Reset drops the flow back to signup, forgetting any progress. Called when
// the session is torn down.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = StateSignup
	f.phase = phaseIdle
	f.message = ""
	f.authed = false
}

// Signup registers the contact identity. Success advances to StateVerify
// and surfaces the one-time code hint; no session exists yet.
func (f *Flow) Signup(ctx context.Context, contact identity.Contact, password string) error {
	if err := f.begin(StateSignup); err != nil {
		return err
	}

	receipt, err := f.exchanger.Signup(ctx, contact, password)
	if err != nil {
		f.fail(err)
		return err
	}

	f.advance(StateVerify, fmt.Sprintf("verification code: %s", receipt.OTPHint))
	f.logger.Info("signup accepted", "contact", contact.String())
	return nil
}

// Verify proves contact ownership. Success advances to StateLogin;
// verification creates no session.
func (f *Flow) Verify(ctx context.Context, contact identity.Contact, code string) error {
	if err := f.begin(StateVerify); err != nil {
		return err
	}

	if err := f.exchanger.Verify(ctx, contact, code); err != nil {
		f.fail(err)
		return err
	}

	f.advance(StateLogin, "verified, you can now log in")
	f.logger.Info("contact verified", "contact", contact.String())
	return nil
}

// Login exchanges credentials for a session and hands it to the session
// store. Success exits the machine into the authenticated state.
func (f *Flow) Login(ctx context.Context, contact identity.Contact, password string) error {
	if err := f.begin(StateLogin); err != nil {
		return err
	}

	session, err := f.exchanger.Login(ctx, contact, password)
	if err != nil {
		f.fail(err)
		return err
	}
	if err := f.sessions.Activate(session); err != nil {
		f.fail(err)
		return err
	}

	f.mu.Lock()
	f.phase = phaseIdle
	f.message = ""
	f.authed = true
	f.mu.Unlock()

	f.logger.Info("logged in", "user_id", session.UserID)
	return nil
}

func (f *Flow) begin(op State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != op {
		return fmt.Errorf("%w: %s submitted during %s", ErrStateMismatch, op, f.state)
	}
	if f.phase == phaseInFlight {
		return ErrRequestInFlight
	}
	f.phase = phaseInFlight
	f.message = ""
	return nil
}

// fail settles the in-flight request without advancing the state, so the
// user can retry in place.
func (f *Flow) fail(err error) {
	f.mu.Lock()
	f.phase = phaseIdle
	f.message = err.Error()
	f.mu.Unlock()
}

func (f *Flow) advance(next State, message string) {
	f.mu.Lock()
	f.state = next
	f.phase = phaseIdle
	f.message = message
	f.mu.Unlock()
}
