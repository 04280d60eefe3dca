package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	mapping "axis-studio/internal/mapping/domain"
)

// OverrideStore is an in-memory pending override buffer for demo/testing.
type OverrideStore struct {
	mu   sync.RWMutex
	data map[int64]*mapping.Override
}

// NewOverrideStore constructs a store.
func NewOverrideStore() *OverrideStore {
	return &OverrideStore{data: make(map[int64]*mapping.Override)}
}

// Get loads an override by key.
func (s *OverrideStore) Get(ctx context.Context, key int64) (*mapping.Override, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	override := s.data[key]
	if override == nil {
		return nil, mapping.ErrOverrideNotFound
	}
	copied := *override
	return &copied, nil
}

// Put upserts an override.
func (s *OverrideStore) Put(ctx context.Context, override *mapping.Override) error {
	_ = ctx
	if override == nil {
		return errors.New("memory override store: nil override")
	}
	copied := *override
	if copied.UpdatedAt.IsZero() {
		copied.UpdatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[copied.Key] = &copied
	return nil
}

// Delete removes an override. Deleting a missing key is a no-op.
func (s *OverrideStore) Delete(ctx context.Context, key int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Move rekeys an override so it follows its record across a remap.
func (s *OverrideStore) Move(ctx context.Context, oldKey, newKey int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	override := s.data[oldKey]
	if override == nil {
		return mapping.ErrOverrideNotFound
	}
	delete(s.data, oldKey)
	override.Key = newKey
	s.data[newKey] = override
	return nil
}

// ListScope returns overrides for a profile/sub-profile, ordered by key.
func (s *OverrideStore) ListScope(ctx context.Context, profileID, subProfileID string) ([]*mapping.Override, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*mapping.Override
	for _, override := range s.data {
		if override.ProfileID != profileID || override.SubProfileID != subProfileID {
			continue
		}
		copied := *override
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// PurgeScope removes all overrides in a profile or sub-profile scope.
func (s *OverrideStore) PurgeScope(ctx context.Context, profileID, subProfileID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, override := range s.data {
		if override.ProfileID != profileID {
			continue
		}
		if subProfileID != "" && override.SubProfileID != subProfileID {
			continue
		}
		delete(s.data, key)
	}
	return nil
}
