package handlers

import (
	"net/http"

	"github.com/anonto42/nano-midea/notifications/internal/queue"
	"github.com/labstack/echo/v4"
)

// ConsumerStatus reports the state of the queue consumer
type ConsumerStatus interface {
	Status() queue.Status
}

type HealthHandler struct {
	consumer ConsumerStatus
}

func NewHealthHandler(consumer ConsumerStatus) *HealthHandler {
	return &HealthHandler{consumer: consumer}
}

func (h *HealthHandler) HealthCheck(c echo.Context) error {
	st := h.consumer.Status()
	status := "healthy"
	if !st.Running {
		status = "degraded"
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":   status,
		"service":  "notifications",
		"consumer": st,
	})
}
