package application

import (
	"context"
	"errors"
	"log"
	"time"

	mapping "axis-studio/internal/mapping/domain"
	profiles "axis-studio/internal/profiles/domain"
)

// ErrLastSubProfile rejects removing the only sub-profile of a profile.
var ErrLastSubProfile = errors.New("profile service: cannot remove the last sub-profile")

// Service manages profiles and their sub-profile mode layers. Deleting
// a scope cascades into the pending override buffer so no orphaned
// edits survive their owner.
type Service struct {
	repo      profiles.Repository
	subs      profiles.SubRepository
	overrides mapping.OverrideStore
	logger    *log.Logger
	now       func() time.Time
}

// NewService constructs a profile service.
func NewService(repo profiles.Repository, subs profiles.SubRepository, overrides mapping.OverrideStore, logger *log.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("profile service: nil repository")
	}
	if subs == nil {
		return nil, errors.New("profile service: nil sub-profile repository")
	}
	if overrides == nil {
		return nil, errors.New("profile service: nil override store")
	}
	return &Service{repo: repo, subs: subs, overrides: overrides, logger: logger, now: time.Now}, nil
}

// List returns every profile.
func (s *Service) List(ctx context.Context) ([]profiles.Profile, error) {
	return s.repo.List(ctx)
}

// Get loads one profile with its sub-profiles.
func (s *Service) Get(ctx context.Context, id string) (*profiles.Profile, []profiles.SubProfile, error) {
	profile, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if profile == nil {
		return nil, nil, profiles.ErrNotFound
	}
	subs, err := s.subs.ListByProfile(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return profile, subs, nil
}

// Create makes a new profile with one default sub-profile, so a fresh
// profile is immediately editable.
func (s *Service) Create(ctx context.Context, name, deviceName string) (*profiles.Profile, error) {
	if name == "" {
		return nil, errors.New("profile service: empty name")
	}
	profile := &profiles.Profile{
		ID:         profiles.NewID(),
		Name:       name,
		DeviceName: deviceName,
	}
	if err := s.repo.Save(ctx, profile); err != nil {
		return nil, err
	}
	sub := &profiles.SubProfile{
		ID:        profiles.NewID(),
		ProfileID: profile.ID,
		Name:      "Default",
	}
	if err := s.subs.Save(ctx, sub); err != nil {
		return nil, err
	}
	return profile, nil
}

// Rename changes a profile's display name.
func (s *Service) Rename(ctx context.Context, id, name string) error {
	if name == "" {
		return errors.New("profile service: empty name")
	}
	profile, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if profile == nil {
		return profiles.ErrNotFound
	}
	profile.Name = name
	return s.repo.Save(ctx, profile)
}

// Delete removes a profile, its sub-profiles, and every pending
// override buffered under any of its scopes.
func (s *Service) Delete(ctx context.Context, id string) error {
	profile, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if profile == nil {
		return profiles.ErrNotFound
	}
	if err := s.overrides.PurgeScope(ctx, id, ""); err != nil {
		return err
	}
	if err := s.subs.DeleteByProfile(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logf("profiles: deleted profile %s (%s) with cascade", id, profile.Name)
	return nil
}

// AddSubProfile appends a mode layer to a profile.
func (s *Service) AddSubProfile(ctx context.Context, profileID, name string) (*profiles.SubProfile, error) {
	if name == "" {
		return nil, errors.New("profile service: empty sub-profile name")
	}
	profile, err := s.repo.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, profiles.ErrNotFound
	}
	existing, err := s.subs.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	sub := &profiles.SubProfile{
		ID:        profiles.NewID(),
		ProfileID: profileID,
		Name:      name,
		Position:  len(existing),
	}
	if err := s.subs.Save(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// RemoveSubProfile deletes one mode layer and purges its overrides. The
// last sub-profile of a profile cannot be removed.
func (s *Service) RemoveSubProfile(ctx context.Context, profileID, subID string) error {
	sub, err := s.subs.Get(ctx, subID)
	if err != nil {
		return err
	}
	if sub == nil || sub.ProfileID != profileID {
		return profiles.ErrNotFound
	}
	existing, err := s.subs.ListByProfile(ctx, profileID)
	if err != nil {
		return err
	}
	if len(existing) <= 1 {
		return ErrLastSubProfile
	}
	if err := s.overrides.PurgeScope(ctx, profileID, subID); err != nil {
		return err
	}
	if err := s.subs.Delete(ctx, subID); err != nil {
		return err
	}
	s.logf("profiles: deleted sub-profile %s of profile %s", subID, profileID)
	return nil
}

func (s *Service) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
