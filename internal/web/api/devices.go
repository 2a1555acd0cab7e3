package api

import (
	"net/http"
	"strconv"

	"homelink/internal/models"
	"homelink/internal/registry"
	"homelink/internal/web/middleware"
	webModels "homelink/internal/web/models"

	"github.com/gin-gonic/gin"
)

func RegisterDeviceRoutes(router gin.IRouter, mw *middleware.MiddlewareManager, reg *registry.Registry) {
	devices := router.Group("/devices")
	devices.Use(mw.RequireAuth())
	{
		devices.GET("", func(c *gin.Context) {
			var f models.DeviceFilter
			if v := c.Query("space_id"); v != "" {
				id, err := strconv.ParseInt(v, 10, 64)
				if err != nil {
					badRequest(c, "invalid space_id")
					return
				}
				f.SpaceID = &id
			}
			f.Spaceless = flag(c, "spaceless")

			list, err := reg.List(c, middleware.Caller(c), f)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, list)
		})

		devices.POST("", func(c *gin.Context) {
			var req webModels.DeviceRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, "invalid request")
				return
			}
			dev, err := reg.Register(c, middleware.Caller(c), registry.RegisterRequest{
				Name:        req.Name,
				Description: req.Description,
				Data:        req.Data,
				SpaceID:     req.SpaceID,
				AccountID:   req.AccountID,
			})
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusCreated, dev)
		})

		devices.GET("/:id", func(c *gin.Context) {
			id, ok := idParam(c, "id")
			if !ok {
				return
			}
			dev, err := reg.Get(c, middleware.Caller(c), id)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, dev)
		})

		devices.PATCH("/:id", func(c *gin.Context) {
			id, ok := idParam(c, "id")
			if !ok {
				return
			}
			var req webModels.DeviceUpdateRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, "invalid request")
				return
			}
			dev, err := reg.Update(c, middleware.Caller(c), id, registry.DeviceUpdate{
				Name:        req.Name,
				Description: req.Description,
				Data:        req.Data,
				SpaceID:     req.SpaceID,
				ClearSpace:  req.ClearSpace,
				AccountID:   req.AccountID,
			})
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, dev)
		})

		devices.PUT("/:id/capabilities", func(c *gin.Context) {
			id, ok := idParam(c, "id")
			if !ok {
				return
			}
			var schema models.CapabilitySchema
			if err := c.ShouldBindJSON(&schema); err != nil {
				badRequest(c, "invalid capability schema")
				return
			}
			dev, err := reg.UpdateCapabilities(c, middleware.Caller(c), id, schema)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, dev)
		})
	}
}
