package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"todozen/internal/model"
)

func (s *Store) GetProfile(ctx context.Context, username string) (model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, cancel := s.conn(ctx)
	defer cancel()
	var rec profileRecord
	err := db.Where("username = ?", username).Take(&rec).Error
	switch {
	case err == nil:
		return rec.toProfile(), nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return model.Profile{}, fmt.Errorf("profile %s: %w", username, ErrNotFound)
	default:
		return model.Profile{}, fmt.Errorf("%w: get profile %s: %w", ErrUnavailable, username, err)
	}
}

// UpsertProfile inserts or fully replaces the profile keyed by username.
func (s *Store) UpsertProfile(ctx context.Context, p model.Profile) error {
	if p.Username == "" {
		return fmt.Errorf("upsert profile: empty username")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	db, cancel := s.conn(ctx)
	defer cancel()
	rec := toProfileRecord(p)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		UpdateAll: true,
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("%w: upsert profile %s: %w", ErrUnavailable, p.Username, err)
	}
	return nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, cancel := s.conn(ctx)
	defer cancel()
	var recs []profileRecord
	if err := db.Order("username ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("%w: list profiles: %w", ErrUnavailable, err)
	}
	out := make([]model.Profile, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toProfile())
	}
	return out, nil
}

// UpdateProfile applies fn to the stored profile and writes it back while
// holding the store lock.
func (s *Store) UpdateProfile(ctx context.Context, username string, fn func(*model.Profile) error) (model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, cancel := s.conn(ctx)
	defer cancel()
	var rec profileRecord
	err := db.Where("username = ?", username).Take(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return model.Profile{}, fmt.Errorf("profile %s: %w", username, ErrNotFound)
	case err != nil:
		return model.Profile{}, fmt.Errorf("%w: get profile %s: %w", ErrUnavailable, username, err)
	}

	p := rec.toProfile()
	if err := fn(&p); err != nil {
		return model.Profile{}, err
	}
	p.Username = username
	out := toProfileRecord(p)
	if err := db.Save(&out).Error; err != nil {
		return model.Profile{}, fmt.Errorf("%w: update profile %s: %w", ErrUnavailable, username, err)
	}
	return p, nil
}
