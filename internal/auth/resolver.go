package auth

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/nurpe/marketplace-api/internal/model"
)

// HeaderProfileID carries the caller identity on every request.
const HeaderProfileID = "profile_id"

var (
	ErrMissingIdentity = errors.New("missing profile id")
	ErrInvalidIdentity = errors.New("invalid profile id")
	ErrUnknownProfile  = errors.New("profile not found")
)

type ProfileFinder interface {
	GetByID(ctx context.Context, id int64) (*model.Profile, error)
}

// Resolver turns the opaque caller token into a stored profile.
type Resolver struct {
	profiles ProfileFinder
}

func NewResolver(profiles ProfileFinder) *Resolver {
	return &Resolver{profiles: profiles}
}

func (r *Resolver) Resolve(ctx context.Context, raw string) (*model.Profile, error) {
	id, err := ParseProfileID(raw)
	if err != nil {
		return nil, err
	}

	profile, err := r.profiles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownProfile
		}
		return nil, err
	}
	return profile, nil
}

func ParseProfileID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrMissingIdentity
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidIdentity
	}
	return id, nil
}
