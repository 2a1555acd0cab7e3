// Package memstore is an in-process store with the same semantics as the Postgres store.
// It backs the "memory" database driver and the package tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"homelink/internal/models"
)

type userRow struct {
	user models.User
	hash string
}

type spaceKey struct {
	space, user int64
}

// Store holds all state behind a single mutex
type Store struct {
	mu sync.Mutex

	nextID   int64
	users    map[int64]*userRow
	spaces   map[int64]*models.Space
	members  map[spaceKey]bool
	devices  map[int64]*models.Device
	commands map[int64]*models.Command
	links    map[int64]*models.CommandsLink

	now func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		users:    make(map[int64]*userRow),
		spaces:   make(map[int64]*models.Space),
		members:  make(map[spaceKey]bool),
		devices:  make(map[int64]*models.Device),
		commands: make(map[int64]*models.Command),
		links:    make(map[int64]*models.CommandsLink),
		now:      time.Now,
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func notFound(what string, id int64) error {
	return fmt.Errorf("%s %d: %w", what, id, models.ErrNotFound)
}

// Users

func (s *Store) CreateUser(_ context.Context, u *models.User, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.users {
		if r.user.Username == u.Username {
			return fmt.Errorf("create user %q: %w", u.Username, models.ErrConflict)
		}
	}
	if u.OwnerID != nil {
		if _, ok := s.users[*u.OwnerID]; !ok {
			return notFound("user", *u.OwnerID)
		}
	}
	u.ID = s.id()
	s.users[u.ID] = &userRow{user: copyUser(*u), hash: passwordHash}
	return nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	u := copyUser(r.user)
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	u, _, err := s.GetUserCredentials(ctx, username)
	return u, err
}

func (s *Store) GetUserCredentials(_ context.Context, username string) (*models.User, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.users {
		if r.user.Username == username {
			u := copyUser(r.user)
			return &u, r.hash, nil
		}
	}
	return nil, "", fmt.Errorf("user %q: %w", username, models.ErrNotFound)
}

func (s *Store) GetPasswordHash(_ context.Context, id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.users[id]
	if !ok {
		return "", notFound("user", id)
	}
	return r.hash, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.users[id]
	if !ok {
		return notFound("user", id)
	}
	r.hash = passwordHash
	return nil
}

func (s *Store) UpdateUserEmail(_ context.Context, id int64, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.users[id]
	if !ok {
		return notFound("user", id)
	}
	r.user.Email = email
	return nil
}

// Spaces

func (s *Store) CreateSpace(_ context.Context, sp *models.Space) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[sp.OwnerID]; !ok {
		return notFound("user", sp.OwnerID)
	}
	sp.ID = s.id()
	sp.CreatedAt = s.now()
	c := *sp
	s.spaces[sp.ID] = &c
	s.members[spaceKey{sp.ID, sp.OwnerID}] = true
	return nil
}

func (s *Store) GetSpace(_ context.Context, id int64) (*models.Space, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spaces[id]
	if !ok {
		return nil, notFound("space", id)
	}
	c := *sp
	return &c, nil
}

func (s *Store) ListSpaces(_ context.Context, userID int64) ([]models.Space, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Space
	for _, sp := range s.spaces {
		if sp.OwnerID == userID || s.members[spaceKey{sp.ID, userID}] {
			out = append(out, *sp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) AddSpaceMember(_ context.Context, spaceID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.spaces[spaceID]; !ok {
		return notFound("space", spaceID)
	}
	if _, ok := s.users[userID]; !ok {
		return notFound("user", userID)
	}
	s.members[spaceKey{spaceID, userID}] = true
	return nil
}

func (s *Store) RemoveSpaceMember(_ context.Context, spaceID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := spaceKey{spaceID, userID}
	if !s.members[k] {
		return fmt.Errorf("member %d of space %d: %w", userID, spaceID, models.ErrNotFound)
	}
	delete(s.members, k)
	return nil
}

func (s *Store) IsSpaceMember(_ context.Context, spaceID, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[spaceKey{spaceID, userID}], nil
}

func (s *Store) ListSpaceMembers(_ context.Context, spaceID int64) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for k := range s.members {
		if k.space == spaceID {
			if r, ok := s.users[k.user]; ok {
				out = append(out, copyUser(r.user))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Devices

func (s *Store) CreateDevice(_ context.Context, d *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[d.OwnerID]; !ok {
		return notFound("user", d.OwnerID)
	}
	if d.SpaceID != nil {
		if _, ok := s.spaces[*d.SpaceID]; !ok {
			return notFound("space", *d.SpaceID)
		}
	}
	d.ID = s.id()
	d.AddedAt = s.now()
	s.devices[d.ID] = copyDevice(d)
	return nil
}

func (s *Store) GetDevice(_ context.Context, id int64) (*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return nil, notFound("device", id)
	}
	return copyDevice(d), nil
}

func (s *Store) UpdateDevice(_ context.Context, d *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.devices[d.ID]
	if !ok {
		return notFound("device", d.ID)
	}
	if d.SpaceID != nil {
		if _, ok := s.spaces[*d.SpaceID]; !ok {
			return notFound("space", *d.SpaceID)
		}
	}
	next := copyDevice(d)
	next.OwnerID = cur.OwnerID
	next.AddedAt = cur.AddedAt
	s.devices[d.ID] = next
	return nil
}

func (s *Store) listDevices(match func(*models.Device) bool) []models.Device {
	var out []models.Device
	for _, d := range s.devices {
		if match(d) {
			out = append(out, *copyDevice(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListUserDevices(_ context.Context, userID int64, f models.DeviceFilter) ([]models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listDevices(func(d *models.Device) bool {
		visible := d.OwnerID == userID || (d.SpaceID != nil && s.members[spaceKey{*d.SpaceID, userID}])
		if !visible {
			return false
		}
		if f.SpaceID != nil && (d.SpaceID == nil || *d.SpaceID != *f.SpaceID) {
			return false
		}
		return !f.Spaceless || d.SpaceID == nil
	}), nil
}

func (s *Store) ListSpaceDevices(_ context.Context, spaceID int64) ([]models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listDevices(func(d *models.Device) bool {
		return d.SpaceID != nil && *d.SpaceID == spaceID
	}), nil
}

func (s *Store) ListDevicesByAccount(_ context.Context, accountID int64) ([]models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listDevices(func(d *models.Device) bool {
		return d.AccountID != nil && *d.AccountID == accountID
	}), nil
}

// Commands

func (s *Store) CreateCommand(_ context.Context, c *models.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[c.DeviceID]; !ok {
		return notFound("device", c.DeviceID)
	}
	c.ID = s.id()
	c.CreatedAt = s.now()
	s.commands[c.ID] = copyCommand(c)
	return nil
}

func (s *Store) GetCommand(_ context.Context, id int64) (*models.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commands[id]
	if !ok {
		return nil, notFound("command", id)
	}
	return copyCommand(c), nil
}

func (s *Store) ListCommands(_ context.Context, f models.CommandFilter) ([]models.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Command
	for _, c := range s.commands {
		if f.Matches(c) {
			out = append(out, *copyCommand(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) MarkCommandExecuted(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commands[id]
	if !ok {
		return false, notFound("command", id)
	}
	if c.Executed {
		return false, nil
	}
	c.Executed = true
	return true, nil
}

func (s *Store) DeleteCommand(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.commands[id]; !ok {
		return notFound("command", id)
	}
	delete(s.commands, id)
	return nil
}

func (s *Store) PruneExecutedCommands(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, c := range s.commands {
		if c.Executed && c.CreatedAt.Before(before) {
			delete(s.commands, id)
			n++
		}
	}
	return n, nil
}

// Links

func (s *Store) CreateLink(_ context.Context, l *models.CommandsLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = s.id()
	l.Version = 1
	s.links[l.ID] = copyLink(l)
	return nil
}

func (s *Store) GetLink(_ context.Context, id int64) (*models.CommandsLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[id]
	if !ok {
		return nil, notFound("link", id)
	}
	return copyLink(l), nil
}

func (s *Store) ListLinks(_ context.Context, ownerID int64) ([]models.CommandsLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CommandsLink
	for _, l := range s.links {
		if l.OwnerID == ownerID {
			out = append(out, *copyLink(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateLink(_ context.Context, l *models.CommandsLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.links[l.ID]
	if !ok {
		return notFound("link", l.ID)
	}
	next := copyLink(l)
	next.OwnerID = cur.OwnerID
	next.Version = cur.Version + 1
	s.links[l.ID] = next
	l.Version = next.Version
	return nil
}

func (s *Store) UpdateLinkTriggers(_ context.Context, id int64, triggers []models.Trigger, startedAt *time.Time, expected int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.links[id]
	if !ok {
		return 0, notFound("link", id)
	}
	if cur.Version != expected {
		return 0, fmt.Errorf("update link %d triggers: %w", id, models.ErrConflict)
	}
	cur.Triggers = copyTriggers(triggers)
	cur.StartedAt = copyTime(startedAt)
	cur.Version++
	return cur.Version, nil
}

func (s *Store) DeleteLink(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[id]; !ok {
		return notFound("link", id)
	}
	delete(s.links, id)
	return nil
}

func (s *Store) FindLinksWithPendingTrigger(_ context.Context, deviceID int64, p models.CommandPayload) ([]models.CommandsLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CommandsLink
	for _, l := range s.links {
		if l.PendingTriggerIndex(deviceID, p) >= 0 {
			out = append(out, *copyLink(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
