package engine

import (
	"context"
	"errors"
	"fmt"

	"homelink/internal/models"
)

// LinkStore is the link persistence the link service needs
type LinkStore interface {
	CreateLink(ctx context.Context, l *models.CommandsLink) error
	GetLink(ctx context.Context, id int64) (*models.CommandsLink, error)
	ListLinks(ctx context.Context, ownerID int64) ([]models.CommandsLink, error)
	UpdateLink(ctx context.Context, l *models.CommandsLink) error
	DeleteLink(ctx context.Context, id int64) error
}

// DeviceLookup checks that a caller may reference a device
type DeviceLookup interface {
	Get(ctx context.Context, caller models.Caller, id int64) (*models.Device, error)
}

// LinkService manages CommandsLink definitions on behalf of their owners
type LinkService struct {
	store   LinkStore
	devices DeviceLookup
}

// NewLinkService creates a link service
func NewLinkService(store LinkStore, devices DeviceLookup) *LinkService {
	return &LinkService{store: store, devices: devices}
}

// Create stores a new link owned by the caller's principal. Any client supplied
// owner, id or started_at is ignored.
func (s *LinkService) Create(ctx context.Context, caller models.Caller, l *models.CommandsLink) (*models.CommandsLink, error) {
	if err := s.check(ctx, caller, l); err != nil {
		return nil, err
	}
	l.ID = 0
	l.OwnerID = caller.OwnerID
	l.StartedAt = nil
	if err := s.store.CreateLink(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// List returns the caller's links
func (s *LinkService) List(ctx context.Context, caller models.Caller) ([]models.CommandsLink, error) {
	links, err := s.store.ListLinks(ctx, caller.OwnerID)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []models.CommandsLink{}
	}
	return links, nil
}

// Get returns one of the caller's links
func (s *LinkService) Get(ctx context.Context, caller models.Caller, id int64) (*models.CommandsLink, error) {
	l, err := s.store.GetLink(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.OwnerID != caller.OwnerID {
		return nil, fmt.Errorf("link %d: %w", id, models.ErrNotFound)
	}
	return l, nil
}

// Update replaces triggers, results and ttl. Satisfaction state starts over.
func (s *LinkService) Update(ctx context.Context, caller models.Caller, id int64, in *models.CommandsLink) (*models.CommandsLink, error) {
	cur, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.check(ctx, caller, in); err != nil {
		return nil, err
	}
	in.ID = cur.ID
	in.OwnerID = cur.OwnerID
	in.StartedAt = nil
	if err := s.store.UpdateLink(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

// Delete removes one of the caller's links
func (s *LinkService) Delete(ctx context.Context, caller models.Caller, id int64) error {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return err
	}
	return s.store.DeleteLink(ctx, id)
}

func (s *LinkService) check(ctx context.Context, caller models.Caller, l *models.CommandsLink) error {
	if err := l.Validate(); err != nil {
		return err
	}
	for _, id := range l.DeviceIDs() {
		if _, err := s.devices.Get(ctx, caller, id); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return fmt.Errorf("%w: device %d is not visible to you", models.ErrValidation, id)
			}
			return err
		}
	}
	return nil
}
