package profiles

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// Profile groups the mapping configuration of one physical device.
type Profile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks profile invariants.
func (p Profile) Validate() error {
	if p.ID == "" {
		return errors.New("profile: empty id")
	}
	if p.Name == "" {
		return errors.New("profile: empty name")
	}
	return nil
}

// SubProfile is one mode layer inside a profile. Each sub-profile holds
// its own mapping set; switching sub-profiles swaps the whole set.
type SubProfile struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profile_id"`
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks sub-profile invariants.
func (s SubProfile) Validate() error {
	if s.ID == "" {
		return errors.New("sub-profile: empty id")
	}
	if s.ProfileID == "" {
		return errors.New("sub-profile: empty profile id")
	}
	if s.Name == "" {
		return errors.New("sub-profile: empty name")
	}
	return nil
}

// NewID generates a random profile-scope id.
func NewID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// ErrNotFound is returned when a profile or sub-profile does not exist.
var ErrNotFound = errors.New("profiles: not found")

// Repository manages profile persistence.
type Repository interface {
	Get(ctx context.Context, id string) (*Profile, error)
	List(ctx context.Context) ([]Profile, error)
	Save(ctx context.Context, profile *Profile) error
	Delete(ctx context.Context, id string) error
}

// SubRepository manages sub-profile persistence.
type SubRepository interface {
	Get(ctx context.Context, id string) (*SubProfile, error)
	ListByProfile(ctx context.Context, profileID string) ([]SubProfile, error)
	Save(ctx context.Context, sub *SubProfile) error
	Delete(ctx context.Context, id string) error
	DeleteByProfile(ctx context.Context, profileID string) error
}
