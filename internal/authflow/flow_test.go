package authflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vibevideos/client/internal/api"
	"github.com/vibevideos/client/internal/identity"
	"github.com/vibevideos/client/internal/models"
)

type fakeExchanger struct {
	signupErr error
	verifyErr error
	loginErr  error
	session   models.Session
	otp       string

	release chan struct{}
	started chan struct{}
}

func (f *fakeExchanger) Signup(ctx context.Context, contact identity.Contact, password string) (api.SignupReceipt, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.signupErr != nil {
		return api.SignupReceipt{}, f.signupErr
	}
	return api.SignupReceipt{OTPHint: f.otp}, nil
}

func (f *fakeExchanger) Verify(ctx context.Context, contact identity.Contact, code string) error {
	return f.verifyErr
}

func (f *fakeExchanger) Login(ctx context.Context, contact identity.Contact, password string) (models.Session, error) {
	if f.loginErr != nil {
		return models.Session{}, f.loginErr
	}
	return f.session, nil
}

type fakeActivator struct {
	activated []models.Session
	err       error
}

func (f *fakeActivator) Activate(session models.Session) error {
	if f.err != nil {
		return f.err
	}
	f.activated = append(f.activated, session)
	return nil
}

func contact(t *testing.T) identity.Contact {
	t.Helper()
	c, err := identity.Resolve("a@x.com", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return c
}

func TestFullExchange(t *testing.T) {
	exchanger := &fakeExchanger{otp: "000111", session: models.Session{Token: "T", UserID: "u-1"}}
	activator := &fakeActivator{}
	flow := New(exchanger, activator, nil)

	if err := flow.Signup(context.Background(), contact(t), "pw"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if flow.State() != StateVerify {
		t.Fatalf("expected verify state got %s", flow.State())
	}
	if !strings.Contains(flow.Message(), "000111") {
		t.Fatalf("otp hint not surfaced: %q", flow.Message())
	}

	if err := flow.Verify(context.Background(), contact(t), "000111"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if flow.State() != StateLogin {
		t.Fatalf("expected login state got %s", flow.State())
	}

	if err := flow.Login(context.Background(), contact(t), "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if !flow.Authenticated() {
		t.Fatal("expected authenticated flow")
	}
	if len(activator.activated) != 1 || activator.activated[0].Token != "T" {
		t.Fatalf("session not handed to store: %+v", activator.activated)
	}
}

func TestFailureDoesNotAdvanceState(t *testing.T) {
	exchanger := &fakeExchanger{signupErr: api.ErrConflict}
	flow := New(exchanger, &fakeActivator{}, nil)

	if err := flow.Signup(context.Background(), contact(t), "pw"); !errors.Is(err, api.ErrConflict) {
		t.Fatalf("expected ErrConflict got %v", err)
	}
	if flow.State() != StateSignup {
		t.Fatalf("failed signup must stay at signup, got %s", flow.State())
	}
	if flow.Message() == "" {
		t.Fatal("failure message must be surfaced")
	}

	flow.SwitchTo(StateVerify)
	exchanger.verifyErr = api.ErrInvalidCode
	if err := flow.Verify(context.Background(), contact(t), "999"); !errors.Is(err, api.ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode got %v", err)
	}
	if flow.State() != StateVerify {
		t.Fatalf("failed verify must stay at verify, got %s", flow.State())
	}
}

func TestModeSwitchesAreFreeJumps(t *testing.T) {
	flow := New(&fakeExchanger{}, &fakeActivator{}, nil)

	flow.SwitchTo(StateLogin)
	if flow.State() != StateLogin {
		t.Fatalf("expected login got %s", flow.State())
	}
	flow.SwitchTo(StateSignup)
	if flow.State() != StateSignup {
		t.Fatalf("expected signup got %s", flow.State())
	}
}

func TestOperationMustMatchState(t *testing.T) {
	flow := New(&fakeExchanger{}, &fakeActivator{}, nil)

	if err := flow.Login(context.Background(), contact(t), "pw"); !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected ErrStateMismatch got %v", err)
	}
}

func TestSecondSubmissionRejectedWhilePending(t *testing.T) {
	exchanger := &fakeExchanger{
		otp:     "1",
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	flow := New(exchanger, &fakeActivator{}, nil)

	done := make(chan error, 1)
	go func() {
		done <- flow.Signup(context.Background(), contact(t), "pw")
	}()
	<-exchanger.started

	if err := flow.Signup(context.Background(), contact(t), "pw"); !errors.Is(err, ErrRequestInFlight) {
		t.Fatalf("expected ErrRequestInFlight got %v", err)
	}

	close(exchanger.release)
	if err := <-done; err != nil {
		t.Fatalf("first signup: %v", err)
	}
	if flow.State() != StateVerify {
		t.Fatalf("expected verify after settle, got %s", flow.State())
	}
}

func TestActivationFailureKeepsLoginState(t *testing.T) {
	exchanger := &fakeExchanger{session: models.Session{Token: "T"}}
	activator := &fakeActivator{err: errors.New("disk full")}
	flow := New(exchanger, activator, nil)
	flow.SwitchTo(StateLogin)

	if err := flow.Login(context.Background(), contact(t), "pw"); err == nil {
		t.Fatal("expected activation failure to propagate")
	}
	if flow.Authenticated() {
		t.Fatal("flow must not be authenticated when activation fails")
	}
	if flow.State() != StateLogin {
		t.Fatalf("expected login state got %s", flow.State())
	}
}

func TestResetReturnsToSignup(t *testing.T) {
	exchanger := &fakeExchanger{session: models.Session{Token: "T"}}
	flow := New(exchanger, &fakeActivator{}, nil)
	flow.SwitchTo(StateLogin)
	if err := flow.Login(context.Background(), contact(t), "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	flow.Reset()
	if flow.Authenticated() || flow.State() != StateSignup {
		t.Fatalf("reset must return to signup, got state=%s authed=%v", flow.State(), flow.Authenticated())
	}
}
