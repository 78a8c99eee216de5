package handlers

import (
	"net/http"

	"github.com/anonto42/nano-midea/notifications/internal/realtime"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// RealtimeHandler upgrades clients to websockets subscribed to their notification channel
type RealtimeHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
}

func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *RealtimeHandler) RegisterRealtimeRoutes(g *echo.Group) {
	g.GET("/realtime", h.Subscribe)
}

// Subscribe streams {type} messages published on notification_<receiverId>
func (h *RealtimeHandler) Subscribe(c echo.Context) error {
	receiverID := c.QueryParam("receiverId")
	if receiverID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "receiverId is required")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the error response
		return nil
	}
	h.hub.Serve(conn, realtime.ChannelFor(receiverID))
	return nil
}
