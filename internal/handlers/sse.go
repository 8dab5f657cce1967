package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kravdesk/kravdesk-backend/internal/services"
	"github.com/kravdesk/kravdesk-backend/internal/sse"
)

type SSEHandler struct {
	hub *sse.SSEHub
}

func NewSSEHandler(hub *sse.SSEHub) *SSEHandler {
	return &SSEHandler{hub: hub}
}

// Stream subscribes the caller to progress channels. Defaults to the
// grouping channel; ?channel= adds an import run channel.
func (h *SSEHandler) Stream(c *gin.Context) {
	channels := []string{services.GroupingChannel}
	if ch := c.Query("channel"); ch != "" {
		channels = append(channels, ch)
	}
	client := h.hub.NewSSEClient(channels...)
	defer h.hub.Remove(client)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-client.Done():
			return
		case msg := <-client.Outbound:
			data, err := json.Marshal(msg.Data)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", msg.Event, data)
			c.Writer.Flush()
		}
	}
}
