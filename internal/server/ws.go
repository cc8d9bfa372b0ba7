package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleJobSocket streams job events as JSON text frames, with the same
// replay rules as the SSE endpoint. The connection is closed normally
// after the done event.
func (s *Server) handleJobSocket(c *gin.Context) {
	id := c.Param("id")
	after := lastEventID(c)

	if _, _, _, ok := s.jobs.EventsAfter(id, after); !ok {
		c.JSON(http.StatusNotFound, Response{Code: 404, Message: "job not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("job_id", id).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// The reader only notices the peer going away.
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		events, complete, changed, ok := s.jobs.EventsAfter(id, after)
		if !ok {
			return
		}
		for _, e := range events {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
			after = e.Seq
		}
		if complete {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
			return
		}
		if len(events) > 0 {
			continue
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return
		}
	}
}
