package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"homelink/internal/memstore"
	"homelink/internal/models"

	"golang.org/x/crypto/bcrypt"
)

func newTestAuth() *AuthModule {
	a := NewAuthModule(memstore.New(), "test-secret", time.Hour)
	a.cost = bcrypt.MinCost
	return a
}

func TestRegisterAndLogin(t *testing.T) {
	a := newTestAuth()
	ctx := context.Background()

	token, u, err := a.RegisterWithJWT(ctx, RegisterRequest{Username: "alice", Password: "pw", Email: "a@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	caller, err := a.CallerFromToken(ctx, token)
	if err != nil {
		t.Fatal(err)
	}
	if caller != models.HumanCaller(u.ID) {
		t.Fatalf("unexpected caller %+v", caller)
	}

	if _, err := a.LoginWithJWT(ctx, "alice", "wrong"); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := a.LoginWithJWT(ctx, "nobody", "pw"); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for unknown user, got %v", err)
	}
	if _, _, err := a.RegisterWithJWT(ctx, RegisterRequest{Username: "alice", Password: "x"}); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected conflict for duplicate username, got %v", err)
	}
}

func TestRegisterDeviceAccount(t *testing.T) {
	a := newTestAuth()
	ctx := context.Background()

	_, owner, err := a.RegisterWithJWT(ctx, RegisterRequest{Username: "alice", Password: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	_, dev, err := a.RegisterWithJWT(ctx, RegisterRequest{Username: "pico", Password: "pw", OwnerUsername: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if !dev.IsDevice || dev.OwnerID == nil || *dev.OwnerID != owner.ID {
		t.Fatalf("expected device account owned by alice, got %+v", dev)
	}

	caller, err := a.CallerFromBasic(ctx, "pico", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if !caller.IsDevice() || caller.OwnerID != owner.ID {
		t.Fatalf("unexpected caller %+v", caller)
	}

	if _, _, err := a.RegisterWithJWT(ctx, RegisterRequest{Username: "x", Password: "pw", OwnerUsername: "ghost"}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error for unknown owner, got %v", err)
	}
	if _, _, err := a.RegisterWithJWT(ctx, RegisterRequest{Username: "y", Password: "pw", OwnerUsername: "pico"}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error for device owner, got %v", err)
	}
}

func TestValidateTokenJWT_Rejects(t *testing.T) {
	a := newTestAuth()
	other := NewAuthModule(memstore.New(), "other-secret", time.Hour)

	token, err := other.generateJWT(1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.ValidateTokenJWT(token); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for foreign signature, got %v", err)
	}

	expired := NewAuthModule(memstore.New(), "test-secret", time.Hour)
	expired.ttl = -time.Minute
	token, _ = expired.generateJWT(1)
	if _, err := a.ValidateTokenJWT(token); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for expired token, got %v", err)
	}
}

func TestChangePasswordAndEmail(t *testing.T) {
	a := newTestAuth()
	ctx := context.Background()
	_, u, err := a.RegisterWithJWT(ctx, RegisterRequest{Username: "alice", Password: "old"})
	if err != nil {
		t.Fatal(err)
	}

	if err := a.ChangePassword(ctx, u.ID, "bad", "new"); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := a.ChangePassword(ctx, u.ID, "old", "new"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.LoginWithJWT(ctx, "alice", "new"); err != nil {
		t.Fatalf("expected login with new password, got %v", err)
	}

	if err := a.ChangeEmail(ctx, u.ID, "new", "alice@example.com"); err != nil {
		t.Fatal(err)
	}
	stored, _ := a.store.GetUser(ctx, u.ID)
	if stored.Email != "alice@example.com" {
		t.Fatalf("expected email updated, got %q", stored.Email)
	}
}
