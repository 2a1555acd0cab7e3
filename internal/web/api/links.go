package api

import (
	"net/http"

	"homelink/internal/engine"
	"homelink/internal/models"
	"homelink/internal/web/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterLinkRoutes(router gin.IRouter, mw *middleware.MiddlewareManager, links *engine.LinkService) {
	r := router.Group("/links")
	r.Use(mw.RequireAuth())
	{
		r.GET("", func(c *gin.Context) {
			list, err := links.List(c, middleware.Caller(c))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, list)
		})

		r.POST("", func(c *gin.Context) {
			var l models.CommandsLink
			if err := c.ShouldBindJSON(&l); err != nil {
				badRequest(c, "invalid request: "+err.Error())
				return
			}
			created, err := links.Create(c, middleware.Caller(c), &l)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusCreated, created)
		})

		r.GET("/:id", func(c *gin.Context) {
			id, ok := idParam(c, "id")
			if !ok {
				return
			}
			l, err := links.Get(c, middleware.Caller(c), id)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, l)
		})

		r.PUT("/:id", func(c *gin.Context) {
			id, ok := idParam(c, "id")
			if !ok {
				return
			}
			var l models.CommandsLink
			if err := c.ShouldBindJSON(&l); err != nil {
				badRequest(c, "invalid request: "+err.Error())
				return
			}
			updated, err := links.Update(c, middleware.Caller(c), id, &l)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, updated)
		})

		r.DELETE("/:id", func(c *gin.Context) {
			id, ok := idParam(c, "id")
			if !ok {
				return
			}
			if err := links.Delete(c, middleware.Caller(c), id); err != nil {
				respondError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})
	}
}
