package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"homelink/internal/logging"
	"homelink/internal/models"

	"github.com/rs/zerolog"
)

// Store is the persistence the registry needs
type Store interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	CreateDevice(ctx context.Context, d *models.Device) error
	GetDevice(ctx context.Context, id int64) (*models.Device, error)
	UpdateDevice(ctx context.Context, d *models.Device) error
	ListUserDevices(ctx context.Context, userID int64, f models.DeviceFilter) ([]models.Device, error)
	ListSpaceDevices(ctx context.Context, spaceID int64) ([]models.Device, error)
	ListDevicesByAccount(ctx context.Context, accountID int64) ([]models.Device, error)

	CreateSpace(ctx context.Context, s *models.Space) error
	GetSpace(ctx context.Context, id int64) (*models.Space, error)
	ListSpaces(ctx context.Context, userID int64) ([]models.Space, error)
	AddSpaceMember(ctx context.Context, spaceID, userID int64) error
	RemoveSpaceMember(ctx context.Context, spaceID, userID int64) error
	IsSpaceMember(ctx context.Context, spaceID, userID int64) (bool, error)
	ListSpaceMembers(ctx context.Context, spaceID int64) ([]models.User, error)
}

// Registry owns device identity, ownership, spaces and capability schemas
type Registry struct {
	store Store
	log   zerolog.Logger
}

// NewRegistry creates a registry over store
func NewRegistry(store Store) *Registry {
	return &Registry{store: store, log: logging.Component("registry")}
}

// RegisterRequest describes a new device
type RegisterRequest struct {
	Name        string
	Description string
	Data        json.RawMessage
	SpaceID     *int64
	AccountID   *int64
}

// DeviceUpdate holds optional changes; nil fields are left alone
type DeviceUpdate struct {
	Name        *string
	Description *string
	Data        json.RawMessage
	SpaceID     *int64
	ClearSpace  bool
	AccountID   *int64
}

// Register creates a device owned by the caller's principal.
// A device caller that names no account becomes the device's account.
func (r *Registry) Register(ctx context.Context, caller models.Caller, req RegisterRequest) (*models.Device, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", models.ErrValidation)
	}
	caps, err := ParseCapabilities(req.Data)
	if err != nil {
		return nil, err
	}

	dev := &models.Device{
		Name:         req.Name,
		Description:  req.Description,
		Capabilities: caps,
		OwnerID:      caller.OwnerID,
		AccountID:    req.AccountID,
		SpaceID:      req.SpaceID,
	}
	if dev.AccountID == nil && caller.IsDevice() {
		id := caller.ID
		dev.AccountID = &id
	}
	if err := r.checkAccount(ctx, caller, dev.AccountID); err != nil {
		return nil, err
	}
	if dev.SpaceID != nil {
		if err := r.requireMember(ctx, *dev.SpaceID, caller.OwnerID); err != nil {
			return nil, err
		}
	}

	if err := r.store.CreateDevice(ctx, dev); err != nil {
		return nil, err
	}
	r.log.Info().Int64("device_id", dev.ID).Int64("owner_id", dev.OwnerID).Str("name", dev.Name).Msg("device registered")
	return dev, nil
}

// GetUserDevices returns owned devices plus devices reachable through the user's spaces
func (r *Registry) GetUserDevices(ctx context.Context, userID int64, f models.DeviceFilter) ([]models.Device, error) {
	return r.store.ListUserDevices(ctx, userID, f)
}

// List returns the devices visible to the caller's principal
func (r *Registry) List(ctx context.Context, caller models.Caller, f models.DeviceFilter) ([]models.Device, error) {
	return r.GetUserDevices(ctx, caller.OwnerID, f)
}

// Get returns a device visible to the caller, or ErrNotFound
func (r *Registry) Get(ctx context.Context, caller models.Caller, id int64) (*models.Device, error) {
	dev, err := r.store.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := r.canSee(ctx, dev, caller.OwnerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("device %d: %w", id, models.ErrNotFound)
	}
	return dev, nil
}

// Update applies a partial update. Only the owner may change a device.
func (r *Registry) Update(ctx context.Context, caller models.Caller, id int64, u DeviceUpdate) (*models.Device, error) {
	dev, err := r.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if dev.OwnerID != caller.OwnerID {
		return nil, fmt.Errorf("device %d: only the owner may change it: %w", id, models.ErrForbidden)
	}

	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", models.ErrValidation)
		}
		dev.Name = name
	}
	if u.Description != nil {
		dev.Description = *u.Description
	}
	if len(u.Data) > 0 {
		caps, err := ParseCapabilities(u.Data)
		if err != nil {
			return nil, err
		}
		dev.Capabilities = caps
	}
	switch {
	case u.ClearSpace:
		dev.SpaceID = nil
	case u.SpaceID != nil:
		if err := r.requireMember(ctx, *u.SpaceID, caller.OwnerID); err != nil {
			return nil, err
		}
		dev.SpaceID = u.SpaceID
	}
	if u.AccountID != nil {
		if err := r.checkAccount(ctx, caller, u.AccountID); err != nil {
			return nil, err
		}
		dev.AccountID = u.AccountID
	}

	if err := r.store.UpdateDevice(ctx, dev); err != nil {
		return nil, err
	}
	return dev, nil
}

// UpdateCapabilities replaces a device's capability schema.
// Used for direct edits and for overrides produced by the automation source.
func (r *Registry) UpdateCapabilities(ctx context.Context, caller models.Caller, id int64, schema models.CapabilitySchema) (*models.Device, error) {
	dev, err := r.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	caps, err := CheckCapabilities(schema)
	if err != nil {
		return nil, err
	}
	dev.Capabilities = caps
	if err := r.store.UpdateDevice(ctx, dev); err != nil {
		return nil, err
	}
	r.log.Info().Int64("device_id", id).Int("components", len(caps.Components)).Msg("capabilities replaced")
	return dev, nil
}

// DeviceForAccount resolves the device a device account authenticates as
func (r *Registry) DeviceForAccount(ctx context.Context, accountID int64) (*models.Device, error) {
	devices, err := r.store.ListDevicesByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no device for account %d: %w", accountID, models.ErrNotFound)
	}
	return &devices[0], nil
}

func (r *Registry) canSee(ctx context.Context, dev *models.Device, userID int64) (bool, error) {
	if dev.OwnerID == userID {
		return true, nil
	}
	if dev.SpaceID == nil {
		return false, nil
	}
	return r.store.IsSpaceMember(ctx, *dev.SpaceID, userID)
}

func (r *Registry) checkAccount(ctx context.Context, caller models.Caller, accountID *int64) error {
	if accountID == nil {
		return nil
	}
	acct, err := r.store.GetUser(ctx, *accountID)
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("%w: account %d does not exist", models.ErrValidation, *accountID)
	}
	if err != nil {
		return err
	}
	if !acct.IsDevice || acct.OwnerID == nil || *acct.OwnerID != caller.OwnerID {
		return fmt.Errorf("%w: account %d is not a device account of yours", models.ErrValidation, *accountID)
	}
	return nil
}

// AccountDevices lists every device a device account authenticates as
func (r *Registry) AccountDevices(ctx context.Context, accountID int64) ([]models.Device, error) {
	return r.store.ListDevicesByAccount(ctx, accountID)
}
