// Package viewmodel mirrors one remote collection locally. Every mutation is
// a direct remote call; the local copy changes only once the remote agrees.
package viewmodel

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/frahmantamala/ledger-console/internal"
	"github.com/frahmantamala/ledger-console/internal/core/common/validation"
	"github.com/frahmantamala/ledger-console/internal/session"
)

// Record is a server-owned entity identified by its id.
type Record[T any] interface {
	RecordID() string
	WithRecordID(id string) T
}

// Remote is the collection endpoint a view mirrors.
type Remote[T any] interface {
	List(ctx context.Context, token string) ([]T, error)
	Create(ctx context.Context, token string, draft interface{}) (*T, error)
	Update(ctx context.Context, token, id string, fields interface{}) (*T, error)
	Delete(ctx context.Context, token, id string) error
}

type Op string

const (
	OpLoad   Op = "load"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Options customise a collection. Both hooks run before any network call.
type Options struct {
	Validate  func(v interface{}) error
	Authorize func(ctx context.Context, op Op, s *session.Session) error
	Logger    *slog.Logger
}

// ValidateWith adapts a struct validator to the Validate hook.
func ValidateWith(v *validation.Validator) func(interface{}) error {
	return func(form interface{}) error {
		if err := v.Struct(form); err != nil {
			return err
		}
		return nil
	}
}

// Snapshot is what a view renders.
type Snapshot[T any] struct {
	Records  []T    `json:"records"`
	Loaded   bool   `json:"loaded"`
	Error    string `json:"error,omitempty"`
	InFlight []Op   `json:"in_flight,omitempty"`
}

type Collection[T Record[T]] struct {
	name   string
	remote Remote[T]
	store  session.Store
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	records  []T
	loaded   bool
	errMsg   string
	inflight map[Op]bool
	closed   bool
}

func New[T Record[T]](name string, remote Remote[T], store session.Store, opts Options) *Collection[T] {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Collection[T]{
		name:     name,
		remote:   remote,
		store:    store,
		opts:     opts,
		logger:   logger.With("view", name),
		inflight: make(map[Op]bool),
	}
}

func (c *Collection[T]) Name() string {
	return c.name
}

// Load fetches the whole collection and replaces the local copy. On failure
// the previous copy is kept and the view enters an error state.
func (c *Collection[T]) Load(ctx context.Context) error {
	if err := c.begin(OpLoad); err != nil {
		return err
	}

	s, err := c.authorize(ctx, OpLoad)
	if err != nil {
		c.end(OpLoad)
		return err
	}

	items, err := c.remote.List(ctx, s.Token)
	return c.finish(ctx, OpLoad, err, func() {
		c.replaceLocked(items)
	})
}

// Create submits draft and appends the server's canonical record. When the
// server only acknowledges, the collection is reloaded to learn the record.
func (c *Collection[T]) Create(ctx context.Context, draft interface{}) (*T, error) {
	if err := c.validate(draft); err != nil {
		return nil, err
	}

	if err := c.begin(OpCreate); err != nil {
		return nil, err
	}

	s, err := c.authorize(ctx, OpCreate)
	if err != nil {
		c.end(OpCreate)
		return nil, err
	}

	created, err := c.remote.Create(ctx, s.Token, draft)
	if err == nil && created == nil {
		var items []T
		items, err = c.remote.List(ctx, s.Token)
		if err == nil {
			err = c.finish(ctx, OpCreate, nil, func() {
				c.replaceLocked(items)
			})
			return nil, err
		}
		c.logger.Warn("reload after create failed", "error", err)
	}

	err = c.finish(ctx, OpCreate, err, func() {
		c.records = append(c.records, *created)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update submits edit for id. The id must already be in the local copy.
// The server's record wins over the submitted edit when it returns one.
func (c *Collection[T]) Update(ctx context.Context, id string, edit T) (*T, error) {
	if _, ok := c.Get(id); !ok {
		return nil, notFound(c.name, id)
	}
	if err := c.validate(edit); err != nil {
		return nil, err
	}

	if err := c.begin(OpUpdate); err != nil {
		return nil, err
	}

	s, err := c.authorize(ctx, OpUpdate)
	if err != nil {
		c.end(OpUpdate)
		return nil, err
	}

	updated, err := c.remote.Update(ctx, s.Token, id, edit)
	result := edit.WithRecordID(id)
	if updated != nil {
		result = *updated
	}

	err = c.finish(ctx, OpUpdate, err, func() {
		c.replaceOneLocked(id, result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Delete removes id after confirm approves it. A declined confirmation
// issues no network call and reports false.
func (c *Collection[T]) Delete(ctx context.Context, id string, confirm func(T) bool) (bool, error) {
	record, ok := c.Get(id)
	if !ok {
		return false, notFound(c.name, id)
	}
	if confirm == nil || !confirm(record) {
		return false, nil
	}

	if err := c.begin(OpDelete); err != nil {
		return false, err
	}

	s, err := c.authorize(ctx, OpDelete)
	if err != nil {
		c.end(OpDelete)
		return false, err
	}

	err = c.remote.Delete(ctx, s.Token, id)
	err = c.finish(ctx, OpDelete, err, func() {
		c.removeLocked(id)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range c.records {
		if r.RecordID() == id {
			return r, true
		}
	}
	var zero T
	return zero, false
}

// Patch rewrites the local record id in place. It reports false when the
// record is gone or the view is closed.
func (c *Collection[T]) Patch(id string, fn func(T) T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	for i, r := range c.records {
		if r.RecordID() == id {
			c.records[i] = fn(r)
			return true
		}
	}
	return false
}

func (c *Collection[T]) Records() []T {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]T, len(c.records))
	copy(out, c.records)
	return out
}

func (c *Collection[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]T, len(c.records))
	copy(out, c.records)

	snap := Snapshot[T]{Records: out, Loaded: c.loaded, Error: c.errMsg}
	for _, op := range []Op{OpLoad, OpCreate, OpUpdate, OpDelete} {
		if c.inflight[op] {
			snap.InFlight = append(snap.InFlight, op)
		}
	}
	return snap
}

// Close tears the view down. Responses still in flight are discarded.
func (c *Collection[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.records = nil
}

func (c *Collection[T]) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Collection[T]) begin(op Op) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return internal.ErrViewClosed
	}
	if c.inflight[op] {
		return internal.ErrOperationBusy
	}
	c.inflight[op] = true
	return nil
}

func (c *Collection[T]) end(op Op) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, op)
}

// finish settles one remote call: apply runs under the lock only when the
// call succeeded and the view was not torn down meanwhile. Authorization
// failures destroy the session.
func (c *Collection[T]) finish(ctx context.Context, op Op, err error, apply func()) error {
	if err != nil && internal.IsUnauthorized(err) {
		c.end(op)
		return Expire(ctx, c.store, c.logger, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inflight, op)

	if c.closed {
		c.logger.Debug("discarding late response", "op", op)
		return internal.ErrViewClosed
	}

	if err != nil {
		if op == OpLoad {
			c.errMsg = message(err)
		}
		c.logger.Info("remote call failed", "op", op, "error", err)
		return err
	}

	apply()
	if op == OpLoad {
		c.errMsg = ""
	}
	return nil
}

func (c *Collection[T]) replaceLocked(items []T) {
	if items == nil {
		items = []T{}
	}
	c.records = items
	c.loaded = true
	c.errMsg = ""
}

func (c *Collection[T]) replaceOneLocked(id string, record T) {
	for i, r := range c.records {
		if r.RecordID() == id {
			c.records[i] = record
			return
		}
	}
}

func (c *Collection[T]) removeLocked(id string) {
	for i, r := range c.records {
		if r.RecordID() == id {
			c.records = append(c.records[:i], c.records[i+1:]...)
			return
		}
	}
}

func (c *Collection[T]) validate(v interface{}) error {
	if c.opts.Validate == nil {
		return nil
	}
	return c.opts.Validate(v)
}

func (c *Collection[T]) authorize(ctx context.Context, op Op) (*session.Session, error) {
	s, err := RequireSession(ctx, c.store)
	if err != nil {
		return nil, err
	}
	if c.opts.Authorize != nil {
		if err := c.opts.Authorize(ctx, op, s); err != nil {
			if internal.IsUnauthorized(err) {
				return nil, Expire(ctx, c.store, c.logger, err)
			}
			return nil, err
		}
	}
	return s, nil
}

// RequireSession returns the current session or the not-logged-in error.
func RequireSession(ctx context.Context, store session.Store) (*session.Session, error) {
	s, err := store.Get(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return nil, internal.ErrNotLoggedIn
	}
	if err != nil {
		return nil, internal.NewInternalError("failed to read session", err)
	}
	return s, nil
}

// Expire destroys the session in response to an authorization failure and
// returns err so callers can pass it on.
func Expire(ctx context.Context, store session.Store, logger *slog.Logger, err error) error {
	logger.Info("session rejected by remote service", "error", err)
	if clearErr := store.Clear(ctx); clearErr != nil {
		logger.Error("failed to clear session", "error", clearErr)
	}
	return err
}

func notFound(name, id string) *internal.AppError {
	return internal.NewNotFoundError(name+" "+id+" is not in the current list", internal.ErrCodeRecordNotFound)
}

func message(err error) string {
	if appErr, ok := internal.AsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}
