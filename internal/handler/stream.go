package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"waselni/internal/logger"
	"waselni/internal/viewmodel"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The identity gateway in front of the API authenticates the caller.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Stream handles GET /v1/trips/stream. Every change applied to the caller's
// trips is written as a JSON text frame until the client disconnects or the
// session ends.
func (h *TripHandler) Stream(c *gin.Context) {
	s, ok := currentSession(c, h.sessions)
	if !ok {
		return
	}

	changes, stop := s.Trips.Watch()
	defer stop()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return
	}
	log := logger.FromContext(c.Request.Context(), logrus.StandardLogger())

	gone := make(chan struct{})
	go readPump(conn, gone, s.Touch)

	writePump(conn, changes, gone, s.Context().Done(), s.Touch, log)
}

// readPump discards client frames and closes gone when the peer leaves.
// Every pong counts as activity.
func readPump(conn *websocket.Conn, gone chan<- struct{}, touch func()) {
	defer close(gone)
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		touch()
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump writes changes and pings until the peer or the session goes
// away. Every delivered change counts as activity.
func writePump(conn *websocket.Conn, changes <-chan viewmodel.TripChange, gone <-chan struct{}, done <-chan struct{}, touch func(), log logrus.FieldLogger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case change, ok := <-changes:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
				return
			}
			if err := conn.WriteJSON(change); err != nil {
				log.WithError(err).Debug("trip stream write failed")
				return
			}
			touch()

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "session ended"))
			return

		case <-gone:
			return
		}
	}
}
