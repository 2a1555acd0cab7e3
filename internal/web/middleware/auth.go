package middleware

import (
	"net/http"
	"strings"

	"homelink/internal/models"
	webModels "homelink/internal/web/models"

	"github.com/gin-gonic/gin"
)

const callerKey = "caller"

// RequireAuth accepts a bearer JWT or HTTP basic credentials and stores the caller
func (m *MiddlewareManager) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			caller models.Caller
			err    error
		)
		if username, password, ok := c.Request.BasicAuth(); ok {
			caller, err = m.auth.CallerFromBasic(c, username, password)
		} else {
			token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
			if token == "" {
				err = models.ErrUnauthorized
			} else {
				caller, err = m.auth.CallerFromToken(c, token)
			}
		}
		if err != nil {
			m.log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("authentication failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, webModels.ErrorResponse{Error: "unauthorized", Message: "authentication required"})
			return
		}

		c.Set(callerKey, caller)
		c.Set("user_id", caller.ID)
		c.Next()
	}
}

// Caller returns the identity stored by RequireAuth
func Caller(c *gin.Context) models.Caller {
	v, _ := c.Get(callerKey)
	caller, _ := v.(models.Caller)
	return caller
}
