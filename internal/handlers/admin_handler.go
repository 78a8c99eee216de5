package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/anonto42/nano-midea/notifications/internal/queue"
	"github.com/labstack/echo/v4"
)

// QueueChecker runs an ad-hoc poll of the managed queue
type QueueChecker interface {
	CheckNow(ctx context.Context) (int, error)
}

type AdminHandler struct {
	checker QueueChecker
}

func NewAdminHandler(checker QueueChecker) *AdminHandler {
	return &AdminHandler{checker: checker}
}

func (h *AdminHandler) RegisterAdminRoutes(g *echo.Group) {
	g.POST("/admin/queue/poll", h.PollQueue)
}

// PollQueue receives one batch with the short visibility timeout
func (h *AdminHandler) PollQueue(c echo.Context) error {
	n, err := h.checker.CheckNow(c.Request().Context())
	if errors.Is(err, queue.ErrPollInFlight) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":  true,
		"received": n,
	})
}
