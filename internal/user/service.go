package user

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/frahmantamala/ledger-console/internal"
	"github.com/frahmantamala/ledger-console/internal/core/common/validation"
	"github.com/frahmantamala/ledger-console/internal/gateway"
	"github.com/frahmantamala/ledger-console/internal/notice"
	"github.com/frahmantamala/ledger-console/internal/permission"
	"github.com/frahmantamala/ledger-console/internal/session"
	"github.com/frahmantamala/ledger-console/internal/viewmodel"
)

// PermissionAssigner submits a user's full permission set.
type PermissionAssigner interface {
	AssignPermissions(ctx context.Context, token, userID string, set permission.Set) error
}

type toggleKey struct {
	userID     string
	capability permission.Capability
}

// View is one open user-management screen.
type View struct {
	*viewmodel.Collection[ManagedUser]
	assigner PermissionAssigner
	store    session.Store
	notice   *notice.Notice
	logger   *slog.Logger

	mu   sync.Mutex
	busy map[string]bool
	seq  map[toggleKey]uint64
}

type Snapshot struct {
	Users    []ManagedUser  `json:"users"`
	Loaded   bool           `json:"loaded"`
	Error    string         `json:"error,omitempty"`
	InFlight []viewmodel.Op `json:"in_flight,omitempty"`
	Toggling []string       `json:"toggling,omitempty"`
	Notice   string         `json:"notice,omitempty"`
}

func (v *View) Snapshot() Snapshot {
	snap := v.Collection.Snapshot()
	out := Snapshot{
		Users:    snap.Records,
		Loaded:   snap.Loaded,
		Error:    snap.Error,
		InFlight: snap.InFlight,
		Notice:   v.notice.Current(),
	}

	v.mu.Lock()
	for id := range v.busy {
		out.Toggling = append(out.Toggling, id)
	}
	v.mu.Unlock()
	sort.Strings(out.Toggling)
	return out
}

// Load refetches the list. Toggles still in flight no longer apply to it.
func (v *View) Load(ctx context.Context) error {
	v.invalidate()
	return v.Collection.Load(ctx)
}

func (v *View) Close() {
	v.invalidate()
	v.Collection.Close()
}

func (v *View) invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for k := range v.seq {
		v.seq[k]++
	}
}

// CreateUser adds an account and confirms it with a notice.
func (v *View) CreateUser(ctx context.Context, form NewUser) (*ManagedUser, error) {
	created, err := v.Create(ctx, form)
	if err != nil {
		return nil, err
	}
	v.notice.Show("User created successfully!")
	return created, nil
}

// Toggle flips one capability of userID and submits the resulting set. The
// local set changes only once the service accepts it, and only for the
// toggled capability.
func (v *View) Toggle(ctx context.Context, userID string, c permission.Capability) (*ManagedUser, error) {
	target, ok := v.Get(userID)
	if !ok {
		return nil, internal.NewInvariantError("user " + userID + " is not in the current list")
	}
	next := target.Permissions.Flip(c)

	s, err := viewmodel.RequireSession(ctx, v.store)
	if err != nil {
		return nil, err
	}
	if !s.IsAdmin() {
		return nil, internal.ErrPermissionDenied
	}

	key := toggleKey{userID: userID, capability: c}
	seq, err := v.begin(key)
	if err != nil {
		return nil, err
	}
	defer v.end(userID)

	if err := v.assigner.AssignPermissions(ctx, s.Token, userID, next); err != nil {
		if internal.IsUnauthorized(err) {
			return nil, viewmodel.Expire(ctx, v.store, v.logger, err)
		}
		v.logger.Warn("failed to update permissions", "user_id", userID, "capability", c, "error", err)
		return nil, toggleFailed(err)
	}

	if !v.latest(key, seq) {
		v.logger.Debug("discarding stale toggle response", "user_id", userID, "capability", c)
		return nil, internal.ErrSuperseded
	}

	granted := next.Has(c)
	var updated ManagedUser
	patched := v.Patch(userID, func(u ManagedUser) ManagedUser {
		u.Permissions = u.Permissions.With(c, granted)
		updated = u
		return u
	})
	if !patched {
		return nil, internal.ErrSuperseded
	}

	v.logger.Info("permission updated", "user_id", userID, "capability", c, "granted", granted)
	v.notice.Show(fmt.Sprintf("Permission updated successfully for %s", target.Name))
	return &updated, nil
}

func (v *View) begin(key toggleKey) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.Closed() {
		return 0, internal.ErrViewClosed
	}
	if v.busy[key.userID] {
		return 0, internal.ErrOperationBusy
	}
	v.busy[key.userID] = true
	v.seq[key]++
	return v.seq[key], nil
}

func (v *View) end(userID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.busy, userID)
}

func (v *View) latest(key toggleKey, seq uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.seq[key] == seq
}

func toggleFailed(err error) *internal.AppError {
	appErr, ok := internal.AsAppError(err)
	if !ok {
		return internal.NewInternalError("Failed to update permissions", err)
	}
	return &internal.AppError{
		Type:       appErr.Type,
		Code:       appErr.Code,
		Message:    "Failed to update permissions",
		StatusCode: appErr.StatusCode,
		Cause:      err,
	}
}

func requireAdmin(_ context.Context, _ viewmodel.Op, s *session.Session) error {
	if !s.IsAdmin() {
		return internal.ErrPermissionDenied
	}
	return nil
}

// Service opens user-management views.
type Service struct {
	client    *gateway.Client
	store     session.Store
	validator *validation.Validator
	notice    *notice.Notice
	logger    *slog.Logger
}

func NewService(client *gateway.Client, store session.Store, v *validation.Validator, n *notice.Notice, logger *slog.Logger) *Service {
	if v == nil {
		v = validation.NewValidator()
	}
	if n == nil {
		n = notice.New(notice.DefaultDuration)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, store: store, validator: v, notice: n, logger: logger}
}

// OpenUsers opens the managed user list.
func (s *Service) OpenUsers(_ context.Context) (*View, error) {
	remote := managedOnly{Remote: gateway.NewResource[ManagedUser](s.client, gateway.UserEndpoint)}
	return &View{
		Collection: viewmodel.New[ManagedUser]("users", remote, s.store, viewmodel.Options{
			Validate:  viewmodel.ValidateWith(s.validator),
			Authorize: requireAdmin,
			Logger:    s.logger,
		}),
		assigner: s.client,
		store:    s.store,
		notice:   s.notice,
		logger:   s.logger,
		busy:     make(map[string]bool),
		seq:      make(map[toggleKey]uint64),
	}, nil
}
