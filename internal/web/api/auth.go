package api

import (
	"net/http"

	"homelink/auth"
	"homelink/internal/web/middleware"
	"homelink/internal/web/models"

	"github.com/gin-gonic/gin"
)

func RegisterAuthRoutes(router gin.IRouter, authModule *auth.AuthModule) {
	r := router.Group("/auth")
	{
		r.POST("/login", func(c *gin.Context) {
			var loginRequest models.LoginRequest
			if err := c.ShouldBindJSON(&loginRequest); err != nil {
				badRequest(c, "invalid request")
				return
			}
			token, err := authModule.LoginWithJWT(c, loginRequest.Username, loginRequest.Password)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, models.TokenResponse{Token: token})
		})
		r.POST("/register", func(c *gin.Context) {
			var registerRequest models.RegisterRequest
			if err := c.ShouldBindJSON(&registerRequest); err != nil {
				badRequest(c, "invalid request")
				return
			}
			token, user, err := authModule.RegisterWithJWT(c, auth.RegisterRequest{
				Username:      registerRequest.Username,
				Password:      registerRequest.Password,
				Email:         registerRequest.Email,
				OwnerUsername: registerRequest.OwnerUsername,
			})
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusCreated, models.TokenResponse{Token: token, User: user})
		})
	}
}

func RegisterUserRoutes(router gin.IRouter, mw *middleware.MiddlewareManager, authModule *auth.AuthModule, users UserLookup) {
	r := router.Group("/users")
	r.Use(mw.RequireAuth())
	{
		r.GET("/me", func(c *gin.Context) {
			user, err := users.GetUser(c, middleware.Caller(c).ID)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, user)
		})
		r.PUT("/me/password", func(c *gin.Context) {
			var req models.ChangePasswordRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, "invalid request")
				return
			}
			if err := authModule.ChangePassword(c, middleware.Caller(c).ID, req.OldPassword, req.NewPassword); err != nil {
				respondError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})
		r.PUT("/me/email", func(c *gin.Context) {
			var req models.ChangeEmailRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, "invalid request")
				return
			}
			if err := authModule.ChangeEmail(c, middleware.Caller(c).ID, req.Password, req.Email); err != nil {
				respondError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})
	}
}
