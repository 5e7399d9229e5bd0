// Package auth runs the login flow: credential validation, the exchange with
// the remote service, and persisting the resulting session.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/frahmantamala/ledger-console/internal"
	"github.com/frahmantamala/ledger-console/internal/core/common/validation"
	"github.com/frahmantamala/ledger-console/internal/gateway"
	"github.com/frahmantamala/ledger-console/internal/guard"
	"github.com/frahmantamala/ledger-console/internal/session"
)

type State string

const (
	AnonymousIdle State = "anonymous_idle"
	Submitting    State = "submitting"
	Authenticated State = "authenticated"
	Failed        State = "failed"
)

const (
	msgLoginFailed = "Login failed"
	msgServerError = "Server error. Try again later."
)

// Gateway is the part of the remote client the login flow needs.
type Gateway interface {
	Login(ctx context.Context, creds gateway.Credentials) (*gateway.LoginResult, error)
}

// ServiceAPI is what the HTTP handler and the CLI drive.
type ServiceAPI interface {
	Mount(ctx context.Context) Snapshot
	Submit(ctx context.Context, creds gateway.Credentials) (Snapshot, error)
	Logout(ctx context.Context) error
	Current() Snapshot
}

// Snapshot is the observable state of the flow.
type Snapshot struct {
	State       State         `json:"state"`
	Message     string        `json:"message,omitempty"`
	Destination string        `json:"destination,omitempty"`
	User        *session.User `json:"user,omitempty"`
}

type Service struct {
	gateway   Gateway
	store     session.Store
	validator *validation.Validator
	logger    *slog.Logger

	mu          sync.Mutex
	state       State
	message     string
	destination string
	user        *session.User
}

func NewService(gw Gateway, store session.Store, v *validation.Validator, logger *slog.Logger) *Service {
	if v == nil {
		v = validation.NewValidator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		gateway:   gw,
		store:     store,
		validator: v,
		logger:    logger,
		state:     AnonymousIdle,
	}
}

// Mount is what happens when the login view opens. An existing session goes
// straight to its destination without contacting the server.
func (s *Service) Mount(ctx context.Context) Snapshot {
	current, err := s.store.Get(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		s.enterAuthenticated(current)
		return s.snapshotLocked()
	}

	if !errors.Is(err, session.ErrNoSession) {
		s.logger.Warn("failed to read session on mount", "error", err)
	}
	if s.state == Authenticated {
		s.resetLocked()
	}
	return s.snapshotLocked()
}

// Submit runs one login attempt. While an attempt is pending every further
// attempt is refused without reaching the network.
func (s *Service) Submit(ctx context.Context, creds gateway.Credentials) (Snapshot, error) {
	s.mu.Lock()
	if s.state == Submitting {
		s.mu.Unlock()
		return s.Current(), internal.ErrOperationBusy
	}

	if verr := s.validator.Struct(creds); verr != nil {
		s.state = AnonymousIdle
		s.message = verr.GetDetailedMessage()
		snap := s.failedLocked()
		s.mu.Unlock()
		return snap, verr
	}

	s.state = Submitting
	s.message = ""
	s.mu.Unlock()

	result, err := s.gateway.Login(ctx, creds)
	if err == nil {
		err = s.store.Set(ctx, session.Session{Token: result.Token, User: result.User})
		if err != nil {
			err = internal.NewInternalError("Failed to save session", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = AnonymousIdle
		s.message = failureMessage(err)
		s.logger.Info("login failed", "email", creds.Email, "error", err)
		return s.failedLocked(), err
	}

	s.enterAuthenticated(&session.Session{Token: result.Token, User: result.User})
	s.logger.Info("login succeeded", "user_id", result.User.ID, "role", result.User.Role)
	return s.snapshotLocked(), nil
}

// Logout destroys the session. It is idempotent.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return internal.NewInternalError("Failed to clear session", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	return nil
}

// Reset returns the flow to AnonymousIdle, typically because the session
// was destroyed elsewhere.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Submitting {
		s.resetLocked()
	}
}

func (s *Service) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Service) enterAuthenticated(current *session.Session) {
	user := current.User
	s.state = Authenticated
	s.message = ""
	s.destination = guard.Destination(current)
	s.user = &user
}

func (s *Service) resetLocked() {
	s.state = AnonymousIdle
	s.message = ""
	s.destination = ""
	s.user = nil
}

func (s *Service) snapshotLocked() Snapshot {
	return Snapshot{
		State:       s.state,
		Message:     s.message,
		Destination: s.destination,
		User:        s.user,
	}
}

// failedLocked reports the Failed transition; the flow itself is already
// back in AnonymousIdle.
func (s *Service) failedLocked() Snapshot {
	snap := s.snapshotLocked()
	snap.State = Failed
	return snap
}

func failureMessage(err error) string {
	appErr, ok := internal.AsAppError(err)
	if !ok {
		return msgLoginFailed
	}
	switch appErr.Type {
	case internal.ErrorTypeTransport, internal.ErrorTypeInternal:
		return msgServerError
	}
	if appErr.Message == "" {
		return msgLoginFailed
	}
	return appErr.Message
}
