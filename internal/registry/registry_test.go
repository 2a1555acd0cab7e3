package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"homelink/internal/memstore"
	"homelink/internal/models"
)

type fixture struct {
	store *memstore.Store
	reg   *Registry
	alice models.Caller
	bob   models.Caller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memstore.New()
	alice := &models.User{Username: "alice"}
	bob := &models.User{Username: "bob"}
	for _, u := range []*models.User{alice, bob} {
		if err := s.CreateUser(ctx, u, "x"); err != nil {
			t.Fatal(err)
		}
	}
	return &fixture{
		store: s,
		reg:   NewRegistry(s),
		alice: models.HumanCaller(alice.ID),
		bob:   models.HumanCaller(bob.ID),
	}
}

func TestRegister_ValidatesAndOwns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dev, err := f.reg.Register(ctx, f.alice, RegisterRequest{
		Name: "Desk lamp",
		Data: json.RawMessage(`{"components": [{"name": "LED", "actions": ["on", "off"]}]}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if dev.OwnerID != f.alice.ID {
		t.Errorf("expected owner %d, got %d", f.alice.ID, dev.OwnerID)
	}

	_, err = f.reg.Register(ctx, f.alice, RegisterRequest{Name: "bad", Data: json.RawMessage(`{"components": 1}`)})
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = f.reg.Register(ctx, f.alice, RegisterRequest{Name: "  "})
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}
}

func TestRegister_DeviceCallerBecomesAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.alice.ID
	acct := &models.User{Username: "pico-1", IsDevice: true, OwnerID: &owner}
	if err := f.store.CreateUser(ctx, acct, "x"); err != nil {
		t.Fatal(err)
	}
	caller := models.CallerFor(acct)

	dev, err := f.reg.Register(ctx, caller, RegisterRequest{Name: "pico"})
	if err != nil {
		t.Fatal(err)
	}
	if dev.OwnerID != f.alice.ID || dev.AccountID == nil || *dev.AccountID != acct.ID {
		t.Fatalf("expected owner alice and account pico-1, got %+v", dev)
	}

	got, err := f.reg.DeviceForAccount(ctx, acct.ID)
	if err != nil || got.ID != dev.ID {
		t.Fatalf("expected device %d for account, got %+v %v", dev.ID, got, err)
	}

	// bob cannot attach alice's device account
	_, err = f.reg.Register(ctx, f.bob, RegisterRequest{Name: "stolen", AccountID: &acct.ID})
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVisibilityThroughSpaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	space, err := f.reg.CreateSpace(ctx, f.alice, "Living room", "")
	if err != nil {
		t.Fatal(err)
	}
	dev, err := f.reg.Register(ctx, f.alice, RegisterRequest{Name: "tv", SpaceID: &space.ID})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.reg.Get(ctx, f.bob, dev.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected bob blind to device, got %v", err)
	}
	if _, err := f.reg.AddMember(ctx, f.bob, space.ID, "bob"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected non-member to see no space, got %v", err)
	}
	if _, err := f.reg.AddMember(ctx, f.alice, space.ID, "bob"); err != nil {
		t.Fatal(err)
	}

	if _, err := f.reg.Get(ctx, f.bob, dev.ID); err != nil {
		t.Fatalf("expected member to see device, got %v", err)
	}
	devices, _ := f.reg.List(ctx, f.bob, models.DeviceFilter{})
	if len(devices) != 1 {
		t.Fatalf("expected one visible device, got %d", len(devices))
	}

	name := "renamed"
	if _, err := f.reg.Update(ctx, f.bob, dev.ID, DeviceUpdate{Name: &name}); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("expected forbidden for member edit, got %v", err)
	}
	if _, err := f.reg.AddMember(ctx, f.bob, space.ID, "alice"); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("expected forbidden for member adding members, got %v", err)
	}

	if err := f.reg.RemoveMember(ctx, f.alice, space.ID, f.alice.ID); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected owner removal rejected, got %v", err)
	}
	if err := f.reg.RemoveMember(ctx, f.alice, space.ID, f.bob.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.reg.Get(ctx, f.bob, dev.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected removed member blind again, got %v", err)
	}
}

func TestUpdateCapabilities_FullReplace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dev, _ := f.reg.Register(ctx, f.alice, RegisterRequest{
		Name: "strip",
		Data: json.RawMessage(`{"components": [{"name": "LED", "actions": ["on"]}]}`),
	})

	next := models.CapabilitySchema{Components: []models.Component{{Name: "Fan", Actions: []string{"spin"}}}}
	got, err := f.reg.UpdateCapabilities(ctx, f.alice, dev.ID, next)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Capabilities.Components) != 1 || got.Capabilities.Components[0].Name != "Fan" {
		t.Fatalf("expected full replace, got %+v", got.Capabilities)
	}

	dup := models.CapabilitySchema{Components: []models.Component{{Name: "A"}, {Name: "A"}}}
	if _, err := f.reg.UpdateCapabilities(ctx, f.alice, dev.ID, dup); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
