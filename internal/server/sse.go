package server

import (
	"strconv"

	"github.com/gin-contrib/sse"

	"github.com/guiyumin/textube/internal/core/pipeline"
)

// sseEvent renders a job event with its sequence number as the event id,
// so clients can resume with Last-Event-ID.
func sseEvent(e pipeline.Event) sse.Event {
	return sse.Event{
		Id:    strconv.FormatUint(e.Seq, 10),
		Event: e.Kind.String(),
		Data:  e,
	}
}
