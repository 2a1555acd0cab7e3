package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"homelink/auth"
	"homelink/internal/automation"
	"homelink/internal/engine"
	"homelink/internal/logging"
	"homelink/internal/queue"
	"homelink/internal/registry"
	"homelink/internal/web/api"
	"homelink/internal/web/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HealthCheck reports whether a backing service is reachable
type HealthCheck func(ctx context.Context) error

// Dependencies are the services exposed over HTTP. Assistant may be nil.
type Dependencies struct {
	Auth      *auth.AuthModule
	Users     api.UserLookup
	Registry  *registry.Registry
	Queue     *queue.Queue
	Links     *engine.LinkService
	Assistant *automation.Assistant
	Health    HealthCheck
}

type WebServer struct {
	router *gin.Engine
	server *http.Server
	log    zerolog.Logger
}

func NewWebServer(deps Dependencies) *WebServer {
	router := gin.New()

	middlewareManager := middleware.NewMiddlewareManager(deps.Auth)
	router.Use(gin.Recovery(), middlewareManager.RequestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r := router.Group("/api")
	api.RegisterAuthRoutes(r, deps.Auth)
	api.RegisterUserRoutes(r, middlewareManager, deps.Auth, deps.Users)
	api.RegisterDeviceRoutes(r, middlewareManager, deps.Registry)
	api.RegisterSpaceRoutes(r, middlewareManager, deps.Registry)
	api.RegisterCommandRoutes(r, middlewareManager, deps.Queue)
	api.RegisterLinkRoutes(r, middlewareManager, deps.Links)
	if deps.Assistant != nil {
		api.RegisterAssistantRoutes(r, middlewareManager, deps.Assistant)
	}

	return &WebServer{
		router: router,
		server: &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second},
		log:    logging.Component("web"),
	}
}

// Handler exposes the router, used by tests and the remote access bridge
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start serves until Shutdown is called
func (ws *WebServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ws.log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
	if err := ws.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (ws *WebServer) Shutdown(ctx context.Context) error {
	return ws.server.Shutdown(ctx)
}
