// Package gormstore provides a SQL-backed implementation of the durable
// stores (refresh tokens and user consents) using gorm. Rotation safety
// comes from TakeRefreshToken running a conditional delete inside a
// transaction: only the caller whose DELETE affects a row gets the record.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/solstice-id/idp-oauth/storage"
)

// Store is a gorm-backed durable store.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ storage.DurableStore = (*Store)(nil)

// New wraps an open gorm DB and migrates the refresh token and consent
// tables. The caller owns the connection lifecycle.
func New(db *gorm.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := db.AutoMigrate(&storage.RefreshToken{}, &storage.Consent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying SQL connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateRefreshToken inserts a new refresh token row. A duplicate token value
// maps to storage.ErrAlreadyExists.
func (s *Store) CreateRefreshToken(ctx context.Context, rec *storage.RefreshToken) error {
	if rec == nil || rec.Token == "" {
		return fmt.Errorf("invalid refresh token record")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&storage.RefreshToken{}).
			Where("token = ?", rec.Token).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return storage.ErrAlreadyExists
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create refresh token: %w", err)
	}
	return nil
}

// TakeRefreshToken atomically retrieves and deletes a refresh token.
// The DELETE is conditional on the token value; RowsAffected == 0 means a
// concurrent take already consumed it. Expired rows are consumed but
// reported as not found (fails closed).
func (s *Store) TakeRefreshToken(ctx context.Context, token string) (*storage.RefreshToken, error) {
	var rec storage.RefreshToken

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("token = ?", token).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return storage.ErrNotFound
			}
			return err
		}

		res := tx.Where("token = ?", token).Delete(&storage.RefreshToken{})
		if res.Error != nil {
			return res.Error
		}
		// A concurrent take consumed the row between the read and the
		// delete; this caller loses.
		if res.RowsAffected == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to take refresh token: %w", err)
	}

	if time.Now().After(rec.ExpiresAt) {
		return nil, storage.ErrNotFound
	}
	return &rec, nil
}

// DeleteRefreshToken removes a refresh token row. Idempotent.
func (s *Store) DeleteRefreshToken(ctx context.Context, token string) error {
	err := s.db.WithContext(ctx).
		Where("token = ?", token).
		Delete(&storage.RefreshToken{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}

// UpsertConsent creates or fully replaces the consent for (UserID, ClientID).
func (s *Store) UpsertConsent(ctx context.Context, consent *storage.Consent) error {
	if consent == nil || consent.UserID == "" || consent.ClientID == "" {
		return fmt.Errorf("invalid consent record")
	}

	consent.UpdatedAt = time.Now()

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "client_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"approved_scopes", "updated_at"}),
	}).Create(consent).Error
	if err != nil {
		return fmt.Errorf("failed to upsert consent: %w", err)
	}

	s.logger.Debug("Consent upserted", "client_id", consent.ClientID)
	return nil
}

// GetConsent retrieves the consent for (userID, clientID).
func (s *Store) GetConsent(ctx context.Context, userID, clientID string) (*storage.Consent, error) {
	var consent storage.Consent
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND client_id = ?", userID, clientID).
		First(&consent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get consent: %w", err)
	}
	return &consent, nil
}
