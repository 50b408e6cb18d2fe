package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"classroom-rollcall-go/app"
	"classroom-rollcall-go/ws"
)

type WSHandler struct {
	hub       *ws.Hub
	classroom *app.Classroom
	log       zerolog.Logger
}

func NewWSHandler(hub *ws.Hub, classroom *app.Classroom, log zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, classroom: classroom, log: log}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket handles GET /ws/session. The client first receives the
// current snapshot, then every session cue until it disconnects.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade error")
		return
	}

	if err := conn.WriteJSON(ws.Message{Type: "snapshot", Data: h.classroom.Session()}); err != nil {
		conn.Close()
		return
	}

	h.hub.Add(conn)
	defer h.hub.Remove(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
