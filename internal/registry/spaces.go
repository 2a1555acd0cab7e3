package registry

import (
	"context"
	"fmt"
	"strings"

	"homelink/internal/models"
)

// CreateSpace creates a space owned by the caller's principal
func (r *Registry) CreateSpace(ctx context.Context, caller models.Caller, name, description string) (*models.Space, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", models.ErrValidation)
	}
	s := &models.Space{Name: name, Description: description, OwnerID: caller.OwnerID}
	if err := r.store.CreateSpace(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// ListSpaces returns the spaces the caller owns or belongs to
func (r *Registry) ListSpaces(ctx context.Context, caller models.Caller) ([]models.Space, error) {
	return r.store.ListSpaces(ctx, caller.OwnerID)
}

// SpaceDevices lists the devices placed in a space the caller belongs to
func (r *Registry) SpaceDevices(ctx context.Context, caller models.Caller, spaceID int64) ([]models.Device, error) {
	if _, err := r.memberSpace(ctx, caller, spaceID); err != nil {
		return nil, err
	}
	return r.store.ListSpaceDevices(ctx, spaceID)
}

// ListMembers lists the members of a space the caller belongs to
func (r *Registry) ListMembers(ctx context.Context, caller models.Caller, spaceID int64) ([]models.User, error) {
	if _, err := r.memberSpace(ctx, caller, spaceID); err != nil {
		return nil, err
	}
	return r.store.ListSpaceMembers(ctx, spaceID)
}

// AddMember enrolls a user by username. Owner only.
func (r *Registry) AddMember(ctx context.Context, caller models.Caller, spaceID int64, username string) (*models.User, error) {
	if _, err := r.ownedSpace(ctx, caller, spaceID); err != nil {
		return nil, err
	}
	u, err := r.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := r.store.AddSpaceMember(ctx, spaceID, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

// RemoveMember removes a user from a space. Owner only; the owner cannot be removed.
func (r *Registry) RemoveMember(ctx context.Context, caller models.Caller, spaceID, userID int64) error {
	s, err := r.ownedSpace(ctx, caller, spaceID)
	if err != nil {
		return err
	}
	if userID == s.OwnerID {
		return fmt.Errorf("%w: the owner cannot leave their space", models.ErrValidation)
	}
	return r.store.RemoveSpaceMember(ctx, spaceID, userID)
}

func (r *Registry) requireMember(ctx context.Context, spaceID, userID int64) error {
	ok, err := r.store.IsSpaceMember(ctx, spaceID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("space %d: %w", spaceID, models.ErrNotFound)
	}
	return nil
}

func (r *Registry) memberSpace(ctx context.Context, caller models.Caller, spaceID int64) (*models.Space, error) {
	s, err := r.store.GetSpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	if s.OwnerID == caller.OwnerID {
		return s, nil
	}
	if err := r.requireMember(ctx, spaceID, caller.OwnerID); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Registry) ownedSpace(ctx context.Context, caller models.Caller, spaceID int64) (*models.Space, error) {
	s, err := r.memberSpace(ctx, caller, spaceID)
	if err != nil {
		return nil, err
	}
	if s.OwnerID != caller.OwnerID {
		return nil, fmt.Errorf("space %d: only the owner may change members: %w", spaceID, models.ErrForbidden)
	}
	return s, nil
}
