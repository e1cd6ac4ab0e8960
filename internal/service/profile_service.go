package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"todozen/internal/model"
)

// ProfileService manages owner profiles and their credentials.
type ProfileService struct {
	store ProfileStore
	cost  int
}

func NewProfileService(store ProfileStore) *ProfileService {
	return &ProfileService{store: store, cost: bcrypt.DefaultCost}
}

// WithCost sets the bcrypt cost used for new credentials.
func (s *ProfileService) WithCost(cost int) *ProfileService {
	s.cost = cost
	return s
}

// Register creates a profile for username with a hashed secret.
func (s *ProfileService) Register(ctx context.Context, username, secret string) (model.Profile, error) {
	username = strings.TrimSpace(username)
	if err := validate.Var(username, "required,max=64,printascii"); err != nil {
		return model.Profile{}, fmt.Errorf("%w: username: %v", ErrInvalidInput, err)
	}
	if strings.ContainsAny(username, " \t") {
		return model.Profile{}, fmt.Errorf("%w: username must not contain spaces", ErrInvalidInput)
	}
	if strings.EqualFold(username, model.GuestOwner) {
		return model.Profile{}, fmt.Errorf("%w: %q is reserved", ErrInvalidInput, model.GuestOwner)
	}
	if len(secret) < 4 || len(secret) > 72 {
		return model.Profile{}, fmt.Errorf("%w: password must be 4 to 72 bytes", ErrInvalidInput)
	}

	if _, err := s.store.GetProfile(ctx, username); err == nil {
		return model.Profile{}, fmt.Errorf("profile %s: %w", username, ErrConflict)
	} else if !isNotFound(err) {
		return model.Profile{}, storeErr("register", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return model.Profile{}, fmt.Errorf("hash credential: %w", err)
	}
	p := model.Profile{Username: username, Credential: hash}
	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return model.Profile{}, storeErr("register", err)
	}
	return p, nil
}

// Authenticate returns the profile when secret matches its credential.
// Unknown users and wrong secrets are indistinguishable to the caller.
func (s *ProfileService) Authenticate(ctx context.Context, username, secret string) (model.Profile, error) {
	p, err := s.store.GetProfile(ctx, strings.TrimSpace(username))
	if err != nil {
		if isNotFound(err) {
			return model.Profile{}, ErrUnauthorized
		}
		return model.Profile{}, storeErr("authenticate", err)
	}
	if err := bcrypt.CompareHashAndPassword(p.Credential, []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return model.Profile{}, ErrUnauthorized
		}
		return model.Profile{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return p, nil
}

// Get returns the profile for username. The guest owner has a zero profile.
func (s *ProfileService) Get(ctx context.Context, username string) (model.Profile, error) {
	if username == "" || username == model.GuestOwner {
		return model.Profile{Username: model.GuestOwner}, nil
	}
	p, err := s.store.GetProfile(ctx, username)
	if err != nil {
		return model.Profile{}, storeErr("get profile", err)
	}
	return p, nil
}
