package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	profiles "axis-studio/internal/profiles/domain"
)

// Repository is an in-memory profile repository for tests and the
// standalone editor mode.
type Repository struct {
	mu       sync.RWMutex
	profiles map[string]profiles.Profile
}

// NewRepository constructs an empty repository.
func NewRepository() *Repository {
	return &Repository{profiles: make(map[string]profiles.Profile)}
}

// Get loads a profile by id.
func (r *Repository) Get(_ context.Context, id string) (*profiles.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	profile, ok := r.profiles[id]
	if !ok {
		return nil, nil
	}
	return &profile, nil
}

// List returns all profiles ordered by name.
func (r *Repository) List(_ context.Context) ([]profiles.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]profiles.Profile, 0, len(r.profiles))
	for _, profile := range r.profiles {
		out = append(out, profile)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Save upserts a profile.
func (r *Repository) Save(_ context.Context, profile *profiles.Profile) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	r.profiles[profile.ID] = *profile
	return nil
}

// Delete removes a profile.
func (r *Repository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.profiles, id)
	return nil
}

// SubRepository is an in-memory sub-profile repository.
type SubRepository struct {
	mu   sync.RWMutex
	subs map[string]profiles.SubProfile
}

// NewSubRepository constructs an empty repository.
func NewSubRepository() *SubRepository {
	return &SubRepository{subs: make(map[string]profiles.SubProfile)}
}

// Get loads a sub-profile by id.
func (r *SubRepository) Get(_ context.Context, id string) (*profiles.SubProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[id]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

// ListByProfile returns a profile's sub-profiles in position order.
func (r *SubRepository) ListByProfile(_ context.Context, profileID string) ([]profiles.SubProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []profiles.SubProfile
	for _, sub := range r.subs {
		if sub.ProfileID == profileID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Save upserts a sub-profile.
func (r *SubRepository) Save(_ context.Context, sub *profiles.SubProfile) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	r.subs[sub.ID] = *sub
	return nil
}

// Delete removes a sub-profile.
func (r *SubRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, id)
	return nil
}

// DeleteByProfile removes every sub-profile of a profile.
func (r *SubRepository) DeleteByProfile(_ context.Context, profileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sub := range r.subs {
		if sub.ProfileID == profileID {
			delete(r.subs, id)
		}
	}
	return nil
}
