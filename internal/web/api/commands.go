package api

import (
	"net/http"
	"strconv"
	"time"

	"homelink/internal/queue"
	"homelink/internal/web/middleware"
	webModels "homelink/internal/web/models"

	"github.com/gin-gonic/gin"
)

func RegisterCommandRoutes(router gin.IRouter, mw *middleware.MiddlewareManager, q *queue.Queue) {
	commands := router.Group("/commands")
	commands.Use(mw.RequireAuth())
	{
		commands.GET("", func(c *gin.Context) {
			list, err := q.ListPending(c.Request.Context(), middleware.Caller(c), flag(c, "all"))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, list)
		})

		commands.GET("/poll", func(c *gin.Context) {
			var timeout time.Duration
			if v := c.Query("timeout"); v != "" {
				secs, err := strconv.ParseFloat(v, 64)
				if err != nil || secs < 0 {
					badRequest(c, "invalid timeout")
					return
				}
				timeout = time.Duration(secs * float64(time.Second))
			}
			list, err := q.LongPoll(c.Request.Context(), middleware.Caller(c), timeout)
			if err != nil {
				if c.Request.Context().Err() != nil {
					// client went away
					return
				}
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, list)
		})

		commands.POST("", func(c *gin.Context) {
			var req webModels.CommandRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, "invalid request")
				return
			}
			cmd, err := q.Enqueue(c.Request.Context(), middleware.Caller(c), queue.EnqueueRequest{
				DeviceID:       req.DeviceID,
				Data:           req.Data,
				Description:    req.Description,
				ScheduledAt:    req.ScheduledAt,
				RepeatInterval: req.RepeatInterval,
				SelfExecute:    req.SelfExecute,
			})
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusCreated, cmd)
		})

		commands.DELETE("/:id", func(c *gin.Context) {
			id, ok := idParam(c, "id")
			if !ok {
				return
			}
			if err := q.Complete(c.Request.Context(), middleware.Caller(c), id, flag(c, "cancel")); err != nil {
				respondError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})
	}
}
