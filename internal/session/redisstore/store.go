package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/frahmantamala/ledger-console/internal/session"
)

// Store keeps the session pair in Redis under two keys.
type Store struct {
	client   redis.UniversalClient
	tokenKey string
	userKey  string
	logger   *slog.Logger
}

func NewStore(client redis.UniversalClient, keyPrefix string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client:   client,
		tokenKey: keyPrefix + "token",
		userKey:  keyPrefix + "user",
		logger:   logger,
	}
}

// reader is the part of a client or a WATCH transaction Get needs.
type reader interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

var errHalfPair = errors.New("half-stored session")

func (s *Store) Get(ctx context.Context) (*session.Session, error) {
	out, err := s.read(ctx, s.client)
	if !errors.Is(err, errHalfPair) {
		return out, err
	}
	return s.discardHalf(ctx)
}

// read loads both halves with one MGET.
func (s *Store) read(ctx context.Context, r reader) (*session.Session, error) {
	vals, err := r.MGet(ctx, s.tokenKey, s.userKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	token, _ := vals[0].(string)
	rawUser, _ := vals[1].(string)
	if token == "" && rawUser == "" {
		return nil, session.ErrNoSession
	}

	var user session.User
	if rawUser != "" {
		if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
			s.logger.Warn("stored session user is unreadable", "error", err)
		}
	}

	out := session.Session{Token: token, User: user}
	if err := out.Validate(); err != nil {
		return nil, errHalfPair
	}
	return &out, nil
}

// discardHalf deletes a half-stored pair under WATCH, so a Set landing
// meanwhile is never wiped.
func (s *Store) discardHalf(ctx context.Context) (*session.Session, error) {
	var current *session.Session
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		out, err := s.read(ctx, tx)
		if !errors.Is(err, errHalfPair) {
			current = out
			return err
		}
		s.logger.Warn("discarding half-stored session")
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.tokenKey, s.userKey)
			return nil
		})
		return err
	}, s.tokenKey, s.userKey)

	switch {
	case err == nil && current != nil:
		return current, nil
	case err == nil, errors.Is(err, session.ErrNoSession):
		return nil, session.ErrNoSession
	case errors.Is(err, redis.TxFailedErr):
		// a concurrent write won; whatever it left is the truth
		out, err := s.read(ctx, s.client)
		if errors.Is(err, errHalfPair) {
			return nil, session.ErrNoSession
		}
		return out, err
	default:
		return nil, fmt.Errorf("failed to discard half-stored session: %w", err)
	}
}

func (s *Store) Set(ctx context.Context, sess session.Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}

	rawUser, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("failed to encode session user: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey, sess.Token, 0)
		pipe.Set(ctx, s.userKey, string(rawUser), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.tokenKey, s.userKey).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
