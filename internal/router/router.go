package router

import (
	"github.com/anonto42/nano-midea/notifications/internal/handlers"
	"github.com/anonto42/nano-midea/notifications/internal/middleware"
	"github.com/anonto42/nano-midea/notifications/internal/queue"
	"github.com/anonto42/nano-midea/notifications/internal/realtime"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// Dependencies are the components the HTTP surface talks to
type Dependencies struct {
	Queue    handlers.EventSubmitter
	Jobs     handlers.EventSubmitter
	Consumer *queue.Consumer
	Hub      *realtime.Hub
}

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo, log zerolog.Logger) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(eMiddleware.CORS())
	log.Info().Msg("Global middleware configured.")
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, deps Dependencies, log zerolog.Logger) {
	e.GET("/health", handlers.NewHealthHandler(deps.Consumer).HealthCheck)

	api := e.Group("/api/v1")

	eventHandler := handlers.NewEventHandler(deps.Queue, deps.Jobs)
	eventHandler.RegisterEventRoutes(api)
	log.Info().Bool("jobs_enabled", deps.Jobs != nil).Msg("Event routes configured.")

	realtimeHandler := handlers.NewRealtimeHandler(deps.Hub)
	realtimeHandler.RegisterRealtimeRoutes(api)
	log.Info().Msg("Realtime routes configured.")

	adminHandler := handlers.NewAdminHandler(deps.Consumer)
	adminHandler.RegisterAdminRoutes(api)
	log.Info().Msg("Admin routes configured.")

	log.Info().Msg("All routes configured.")
}
