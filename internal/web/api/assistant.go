package api

import (
	"net/http"

	"homelink/internal/automation"
	"homelink/internal/web/middleware"
	webModels "homelink/internal/web/models"

	"github.com/gin-gonic/gin"
)

func RegisterAssistantRoutes(router gin.IRouter, mw *middleware.MiddlewareManager, assistant *automation.Assistant) {
	r := router.Group("/assistant")
	r.Use(mw.RequireAuth())
	{
		r.POST("/prompt", func(c *gin.Context) {
			var req webModels.PromptRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, "invalid request")
				return
			}
			reply, err := assistant.Prompt(c.Request.Context(), middleware.Caller(c), req.Prompt)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, reply)
		})

		r.POST("/links/suggest", func(c *gin.Context) {
			links, err := assistant.SuggestLinks(c.Request.Context(), middleware.Caller(c))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"links": links})
		})
	}
}
