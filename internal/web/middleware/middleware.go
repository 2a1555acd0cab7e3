package middleware

import (
	"homelink/auth"
	"homelink/internal/logging"

	"github.com/rs/zerolog"
)

type MiddlewareManager struct {
	auth *auth.AuthModule
	log  zerolog.Logger
}

func NewMiddlewareManager(auth *auth.AuthModule) *MiddlewareManager {
	return &MiddlewareManager{
		auth: auth,
		log:  logging.Component("api"),
	}
}
