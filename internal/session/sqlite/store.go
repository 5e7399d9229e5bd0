package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
	sqlitedriver "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/ledger-console/db"
	sessionDatamodel "github.com/frahmantamala/ledger-console/internal/core/datamodel/session"
	"github.com/frahmantamala/ledger-console/internal/session"
)

const (
	tokenKey = "token"
	userKey  = "user"
)

// Store persists the session in a SQLite file so it outlives the process.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewStore(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Open opens (creating if needed) the SQLite file at path.
func Open(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
	}

	gdb, err := gorm.Open(sqlitedriver.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access session database: %w", err)
	}
	// one writer keeps sqlite free of "database is locked"
	sqlDB.SetMaxOpenConns(1)

	return gdb, nil
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("failed to access session database: %w", err)
	}

	goose.SetBaseFS(db.Migrations)
	goose.SetTableName("schema_migrations")
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose: %w", err)
	}

	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Get reads the pair and, when only half of it is stored, removes that half
// in the same transaction.
func (s *Store) Get(ctx context.Context) (*session.Session, error) {
	var out *session.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entries []sessionDatamodel.Entry
		if err := tx.Where("name IN ?", []string{tokenKey, userKey}).
			Find(&entries).Error; err != nil {
			return fmt.Errorf("failed to read session: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}

		var token, rawUser string
		for _, e := range entries {
			switch e.Name {
			case tokenKey:
				token = e.Value
			case userKey:
				rawUser = e.Value
			}
		}

		var user session.User
		if rawUser != "" {
			if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
				s.logger.Warn("stored session user is unreadable", "error", err)
			}
		}

		current := session.Session{Token: token, User: user}
		if err := current.Validate(); err != nil {
			s.logger.Warn("discarding half-stored session", "has_token", token != "", "has_user", user.ID != "")
			if err := tx.Where("name IN ?", []string{tokenKey, userKey}).
				Delete(&sessionDatamodel.Entry{}).Error; err != nil {
				return fmt.Errorf("failed to clear session: %w", err)
			}
			return nil
		}
		out = &current
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, session.ErrNoSession
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, sess session.Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}

	rawUser, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("failed to encode session user: %w", err)
	}

	entries := []sessionDatamodel.Entry{
		{Name: tokenKey, Value: sess.Token},
		{Name: userKey, Value: string(rawUser)},
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&entries).Error
	})
	if err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).
		Where("name IN ?", []string{tokenKey, userKey}).
		Delete(&sessionDatamodel.Entry{}).Error; err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
