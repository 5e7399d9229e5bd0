package ledger

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/frahmantamala/ledger-console/internal"
	"github.com/frahmantamala/ledger-console/internal/core/common/validation"
	"github.com/frahmantamala/ledger-console/internal/gateway"
	"github.com/frahmantamala/ledger-console/internal/permission"
	"github.com/frahmantamala/ledger-console/internal/session"
	"github.com/frahmantamala/ledger-console/internal/viewmodel"
)

// PermissionSource fetches the permission set of a user.
type PermissionSource interface {
	GetPermissions(ctx context.Context, token, userID string) (permission.Set, error)
}

var (
	errCannotEdit = &internal.AppError{
		Type:       internal.ErrorTypeForbidden,
		Code:       internal.ErrCodePermissionDenied,
		Message:    "You do not have permission to edit records!",
		StatusCode: http.StatusForbidden,
	}
	errCannotDelete = &internal.AppError{
		Type:       internal.ErrorTypeForbidden,
		Code:       internal.ErrCodePermissionDenied,
		Message:    "You do not have permission to delete records!",
		StatusCode: http.StatusForbidden,
	}
)

// policy gates ledger mutations on the caller's own permission set. Admins
// are never gated. The set is fetched on load and reused until the next one.
type policy struct {
	source PermissionSource
	logger *slog.Logger

	mu     sync.Mutex
	cached *permission.Set
}

func (p *policy) authorize(ctx context.Context, op viewmodel.Op, s *session.Session) error {
	if s.IsAdmin() {
		return nil
	}

	if op == viewmodel.OpLoad {
		_, err := p.refresh(ctx, s)
		return err
	}

	set, err := p.current(ctx, s)
	if err != nil {
		return err
	}

	switch op {
	case viewmodel.OpCreate, viewmodel.OpUpdate:
		if !set.Has(permission.CanEdit) {
			return errCannotEdit
		}
	case viewmodel.OpDelete:
		if !set.Has(permission.CanDelete) {
			return errCannotDelete
		}
	}
	return nil
}

func (p *policy) current(ctx context.Context, s *session.Session) (permission.Set, error) {
	p.mu.Lock()
	cached := p.cached
	p.mu.Unlock()

	if cached != nil {
		return *cached, nil
	}
	return p.refresh(ctx, s)
}

// refresh fetches the set. Any failure short of an expired session leaves
// the caller with no capabilities.
func (p *policy) refresh(ctx context.Context, s *session.Session) (permission.Set, error) {
	set, err := p.source.GetPermissions(ctx, s.Token, s.User.ID)
	if err != nil {
		if internal.IsUnauthorized(err) {
			return permission.Set{}, err
		}
		p.logger.Warn("failed to fetch permissions", "user_id", s.User.ID, "error", err)
		set = permission.Set{}
	}

	p.mu.Lock()
	p.cached = &set
	p.mu.Unlock()
	return set, nil
}

func (p *policy) snapshot() *permission.Set {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached == nil {
		return nil
	}
	cp := *p.cached
	return &cp
}

// View is one open ledger or history screen.
type View struct {
	*viewmodel.Collection[Entry]
	policy *policy
}

// Snapshot is what the screen renders.
type Snapshot struct {
	Rows        []Row           `json:"rows"`
	Loaded      bool            `json:"loaded"`
	Error       string          `json:"error,omitempty"`
	InFlight    []viewmodel.Op  `json:"in_flight,omitempty"`
	Permissions *permission.Set `json:"permissions,omitempty"`
}

func (v *View) Snapshot() Snapshot {
	snap := v.Collection.Snapshot()
	return Snapshot{
		Rows:        Rows(snap.Records),
		Loaded:      snap.Loaded,
		Error:       snap.Error,
		InFlight:    snap.InFlight,
		Permissions: v.policy.snapshot(),
	}
}

// Service opens ledger and history views.
type Service struct {
	client    *gateway.Client
	store     session.Store
	validator *validation.Validator
	logger    *slog.Logger
}

func NewService(client *gateway.Client, store session.Store, v *validation.Validator, logger *slog.Logger) (*Service, error) {
	if v == nil {
		v = validation.NewValidator()
	}
	if err := RegisterValidators(v); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, store: store, validator: v, logger: logger}, nil
}

// OpenLedger opens the full transaction log.
func (s *Service) OpenLedger(_ context.Context) (*View, error) {
	remote := gateway.NewResource[Entry](s.client, gateway.LedgerEndpoint)
	return s.open("ledger", remote), nil
}

// OpenHistory opens the low-purchase history of the logged-in user.
func (s *Service) OpenHistory(ctx context.Context) (*View, error) {
	current, err := viewmodel.RequireSession(ctx, s.store)
	if err != nil {
		return nil, err
	}
	remote := gateway.NewResource[Entry](s.client, gateway.HistoryEndpoint).
		Bind(map[string]string{"userId": current.User.ID})
	return s.open("history", remote), nil
}

func (s *Service) open(name string, remote viewmodel.Remote[Entry]) *View {
	p := &policy{source: s.client, logger: s.logger}
	return &View{
		Collection: viewmodel.New[Entry](name, remote, s.store, viewmodel.Options{
			Validate:  viewmodel.ValidateWith(s.validator),
			Authorize: p.authorize,
			Logger:    s.logger,
		}),
		policy: p,
	}
}
