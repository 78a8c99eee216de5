package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/nano-midea/notifications/internal/models"
	"github.com/labstack/echo/v4"
)

const (
	TransportQueue = "queue"
	TransportJobs  = "jobs"
)

// EventSubmitter is implemented by both transport clients
type EventSubmitter interface {
	SubmitEvent(ctx context.Context, event models.Event) error
	SubmitEventBatch(ctx context.Context, events []models.Event) error
}

// EventHandler accepts interaction events from producers over HTTP
type EventHandler struct {
	transports map[string]EventSubmitter
}

// NewEventHandler creates a new EventHandler. jobs may be nil when the job queue is disabled.
func NewEventHandler(queue, jobs EventSubmitter) *EventHandler {
	transports := map[string]EventSubmitter{TransportQueue: queue}
	if jobs != nil {
		transports[TransportJobs] = jobs
	}
	return &EventHandler{transports: transports}
}

// RegisterEventRoutes registers event submission routes
func (h *EventHandler) RegisterEventRoutes(g *echo.Group) {
	g.POST("/events", h.SubmitEvent)
	g.POST("/events/batch", h.SubmitEventBatch)
}

func (h *EventHandler) transport(c echo.Context) (EventSubmitter, error) {
	name := c.QueryParam("transport")
	if name == "" {
		name = TransportQueue
	}
	t, ok := h.transports[name]
	if !ok {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Unknown or disabled transport: "+name)
	}
	return t, nil
}

// SubmitEvent enqueues a single event
func (h *EventHandler) SubmitEvent(c echo.Context) error {
	t, err := h.transport(c)
	if err != nil {
		return err
	}

	var event models.Event
	if err := c.Bind(&event); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&event); err != nil {
		return err
	}

	if err := t.SubmitEvent(c.Request().Context(), event); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusAccepted, echo.Map{"success": true})
}

// SubmitEventBatch enqueues a list of events
func (h *EventHandler) SubmitEventBatch(c echo.Context) error {
	t, err := h.transport(c)
	if err != nil {
		return err
	}

	var events []models.Event
	if err := c.Bind(&events); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if len(events) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "At least one event is required")
	}
	for i := range events {
		if err := c.Validate(&events[i]); err != nil {
			return err
		}
	}

	if err := t.SubmitEventBatch(c.Request().Context(), events); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusAccepted, echo.Map{
		"success": true,
		"count":   len(events),
	})
}
