package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/swappy/picora/internal/booking"
	"go.uber.org/zap"
)

const (
	realtimeEventSnapshot  = "snapshot"
	realtimeEventHeartbeat = "heartbeat"
	realtimeHeartbeat      = 25 * time.Second
)

type snapshotEventPayload struct {
	Topic string `json:"topic"`
	Items any    `json:"items"`
}

// handleEvents streams the full content of one topic as server-sent events: first the
// current state, then a fresh copy after every committed change. Streams end when the
// client leaves or the server begins shutting down.
func (h *httpHandler) handleEvents(c *gin.Context) {
	topic, ok := booking.ParseTopic(c.Query("topic"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_topic"})
		return
	}

	ctx := c.Request.Context()
	stream, cleanup, err := h.service.Watch(ctx, topic)
	if err != nil {
		h.writeServiceError(c, err, "watch_failed")
		return
	}
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(realtimeHeartbeat)
	defer heartbeat.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-h.streamsDone:
			return false
		case <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, h.clock().UTC().Format(time.RFC3339))
			return true
		case snapshot := <-stream:
			data, err := json.Marshal(snapshotEventPayload{
				Topic: string(snapshot.Topic),
				Items: snapshotBody(snapshot, h.location),
			})
			if err != nil {
				h.logger.Error("snapshot encoding failed", zap.String("topic", string(topic)), zap.Error(err))
				return false
			}
			c.SSEvent(realtimeEventSnapshot, string(data))
			return true
		}
	})
}
