package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"weibalance/internal/api/handlers"
	"weibalance/internal/api/middleware"
)

// Router wraps the Gin router with handlers
type Router struct {
	engine         *gin.Engine
	balanceHandler *handlers.BalanceHandler
	logger         zerolog.Logger
}

// NewRouter creates a new Router serving balances from fetcher
func NewRouter(fetcher handlers.BalanceFetcher, requestTimeout time.Duration, logger zerolog.Logger) *Router {
	gin.SetMode(gin.ReleaseMode)

	r := &Router{
		engine:         gin.New(),
		balanceHandler: handlers.NewBalanceHandler(fetcher, requestTimeout, logger),
		logger:         logger,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// setupMiddleware configures middleware
func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery(r.logger))
	r.engine.Use(middleware.Logger(r.logger))
	r.engine.Use(middleware.CORS())
}

// setupRoutes configures API routes
func (r *Router) setupRoutes() {
	r.engine.GET("/", handlers.Root)
	r.engine.GET("/balance/:address", r.balanceHandler.Get)
	r.engine.NoRoute(handlers.NotFound)
}

// Engine returns the underlying Gin engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
