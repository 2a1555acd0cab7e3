package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"homelink/internal/logging"
	"homelink/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// Store persists accounts and password hashes
type Store interface {
	CreateUser(ctx context.Context, u *models.User, passwordHash string) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserCredentials(ctx context.Context, username string) (*models.User, string, error)
	GetPasswordHash(ctx context.Context, id int64) (string, error)
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error
	UpdateUserEmail(ctx context.Context, id int64, email string) error
}

type AuthModule struct {
	store     Store
	JWTSecret string
	ttl       time.Duration
	cost      int
	log       zerolog.Logger
}

func NewAuthModule(store Store, JWTSecret string, ttl time.Duration) *AuthModule {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthModule{
		store:     store,
		JWTSecret: JWTSecret,
		ttl:       ttl,
		cost:      bcrypt.DefaultCost,
		log:       logging.Component("auth"),
	}
}

// RegisterRequest describes a new account. OwnerUsername makes it a device account.
type RegisterRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	Email         string `json:"email"`
	OwnerUsername string `json:"owner_username,omitempty"`
}

var errInvalidCredentials = fmt.Errorf("%w: invalid credentials", models.ErrUnauthorized)

func (a *AuthModule) createUser(ctx context.Context, req RegisterRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", models.ErrValidation)
	}

	u := &models.User{Username: req.Username, Email: req.Email}
	if req.OwnerUsername != "" {
		owner, err := a.store.GetUserByUsername(ctx, req.OwnerUsername)
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: owner %q does not exist", models.ErrValidation, req.OwnerUsername)
		}
		if err != nil {
			return nil, err
		}
		if owner.IsDevice {
			return nil, fmt.Errorf("%w: a device account cannot own another account", models.ErrValidation)
		}
		u.IsDevice = true
		u.OwnerID = &owner.ID
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), a.cost)
	if err != nil {
		return nil, err
	}
	if err := a.store.CreateUser(ctx, u, string(hashedPassword)); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("%w: username already exists", models.ErrConflict)
		}
		return nil, err
	}

	a.log.Info().Int64("user_id", u.ID).Bool("device", u.IsDevice).Msg("account created")
	return u, nil
}

func (a *AuthModule) generateJWT(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.Add(a.ttl).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.JWTSecret))
}

// Authenticate checks a username and password pair
func (a *AuthModule) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, passwordHash, err := a.store.GetUserCredentials(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}
	return u, nil
}

func (a *AuthModule) RegisterWithJWT(ctx context.Context, req RegisterRequest) (string, *models.User, error) {
	u, err := a.createUser(ctx, req)
	if err != nil {
		return "", nil, err
	}

	token, err := a.generateJWT(u.ID)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (a *AuthModule) LoginWithJWT(ctx context.Context, username, password string) (string, error) {
	u, err := a.Authenticate(ctx, username, password)
	if err != nil {
		return "", err
	}
	return a.generateJWT(u.ID)
}

// ValidateTokenJWT returns the user id carried by a signed token
func (a *AuthModule) ValidateTokenJWT(token string) (int64, error) {
	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.JWTSecret), nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok || !parsedToken.Valid {
		return 0, fmt.Errorf("%w: invalid token", models.ErrUnauthorized)
	}
	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		return 0, fmt.Errorf("%w: invalid user_id in token", models.ErrUnauthorized)
	}
	return int64(userIDFloat), nil
}

// CallerFromToken resolves the identity behind a bearer token
func (a *AuthModule) CallerFromToken(ctx context.Context, token string) (models.Caller, error) {
	userID, err := a.ValidateTokenJWT(token)
	if err != nil {
		return models.Caller{}, err
	}
	u, err := a.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.Caller{}, fmt.Errorf("%w: account no longer exists", models.ErrUnauthorized)
		}
		return models.Caller{}, err
	}
	return models.CallerFor(u), nil
}

// CallerFromBasic resolves the identity behind HTTP basic credentials, used by firmware
func (a *AuthModule) CallerFromBasic(ctx context.Context, username, password string) (models.Caller, error) {
	u, err := a.Authenticate(ctx, username, password)
	if err != nil {
		return models.Caller{}, err
	}
	return models.CallerFor(u), nil
}

func (a *AuthModule) checkPassword(ctx context.Context, userID int64, password string) error {
	passwordHash, err := a.store.GetPasswordHash(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return fmt.Errorf("%w: invalid password", models.ErrUnauthorized)
	}
	return nil
}

// ChangePassword changes the user's password after verifying the old password
func (a *AuthModule) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", models.ErrValidation)
	}
	if err := a.checkPassword(ctx, userID, oldPassword); err != nil {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), a.cost)
	if err != nil {
		return err
	}
	return a.store.UpdateUserPassword(ctx, userID, string(hashedPassword))
}

// ChangeEmail changes the user's email after verifying the password
func (a *AuthModule) ChangeEmail(ctx context.Context, userID int64, password, newEmail string) error {
	if err := a.checkPassword(ctx, userID, password); err != nil {
		return err
	}
	return a.store.UpdateUserEmail(ctx, userID, newEmail)
}
