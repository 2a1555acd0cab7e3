package api

import (
	"net/http"

	"homelink/internal/registry"
	"homelink/internal/web/middleware"
	webModels "homelink/internal/web/models"

	"github.com/gin-gonic/gin"
)

func RegisterSpaceRoutes(router gin.IRouter, mw *middleware.MiddlewareManager, reg *registry.Registry) {
	spaces := router.Group("/spaces")
	spaces.Use(mw.RequireAuth())
	{
		spaces.GET("", func(c *gin.Context) {
			list, err := reg.ListSpaces(c, middleware.Caller(c))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, list)
		})

		spaces.POST("", func(c *gin.Context) {
			var req webModels.SpaceRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, "invalid request")
				return
			}
			space, err := reg.CreateSpace(c, middleware.Caller(c), req.Name, req.Description)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusCreated, space)
		})

		spaces.GET("/:id/devices", func(c *gin.Context) {
			id, ok := idParam(c, "id")
			if !ok {
				return
			}
			list, err := reg.SpaceDevices(c, middleware.Caller(c), id)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, list)
		})

		spaces.GET("/:id/members", func(c *gin.Context) {
			id, ok := idParam(c, "id")
			if !ok {
				return
			}
			list, err := reg.ListMembers(c, middleware.Caller(c), id)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, list)
		})

		spaces.POST("/:id/members", func(c *gin.Context) {
			id, ok := idParam(c, "id")
			if !ok {
				return
			}
			var req webModels.AddMemberRequest
			if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" {
				badRequest(c, "username is required")
				return
			}
			user, err := reg.AddMember(c, middleware.Caller(c), id, req.Username)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusCreated, user)
		})

		spaces.DELETE("/:id/members/:user_id", func(c *gin.Context) {
			id, ok := idParam(c, "id")
			if !ok {
				return
			}
			userID, ok := idParam(c, "user_id")
			if !ok {
				return
			}
			if err := reg.RemoveMember(c, middleware.Caller(c), id, userID); err != nil {
				respondError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})
	}
}
