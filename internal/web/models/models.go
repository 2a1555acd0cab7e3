package models

import (
	"encoding/json"
	"time"

	domain "homelink/internal/models"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	Email         string `json:"email"`
	OwnerUsername string `json:"owner_username,omitempty"`
}

type TokenResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user,omitempty"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type ChangeEmailRequest struct {
	Password string `json:"password"`
	Email    string `json:"email"`
}

type DeviceRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Data        json.RawMessage `json:"data"`
	SpaceID     *int64          `json:"space_id"`
	AccountID   *int64          `json:"account_id"`
}

// DeviceUpdateRequest holds a partial device update; absent fields are unchanged
type DeviceUpdateRequest struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Data        json.RawMessage `json:"data"`
	SpaceID     *int64          `json:"space_id"`
	ClearSpace  bool            `json:"clear_space"`
	AccountID   *int64          `json:"account_id"`
}

type SpaceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type AddMemberRequest struct {
	Username string `json:"username"`
}

type CommandRequest struct {
	DeviceID       *int64                `json:"device_id"`
	Data           domain.CommandPayload `json:"data"`
	Description    string                `json:"description"`
	ScheduledAt    *time.Time            `json:"scheduled_at"`
	RepeatInterval *domain.Duration      `json:"repeat_interval"`
	SelfExecute    bool                  `json:"self_execute"`
}

type PromptRequest struct {
	Prompt string `json:"prompt"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
