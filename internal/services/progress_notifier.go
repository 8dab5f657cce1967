package services

import (
	"context"

	"github.com/kravdesk/kravdesk-backend/internal/modules/krav/steps"
	"github.com/kravdesk/kravdesk-backend/internal/platform/logger"
	"github.com/kravdesk/kravdesk-backend/internal/realtime/bus"
	"github.com/kravdesk/kravdesk-backend/internal/sse"
)

// GroupingChannel is the SSE channel grouping-run progress is broadcast on.
const GroupingChannel = "grouping"

type ProgressNotifier interface {
	GroupingEvent(ev steps.ProgressEvent)
	ImportEvent(channel string, ev steps.ProgressEvent)
}

type progressNotifier struct {
	hub *sse.SSEHub
	bus bus.Bus
	log *logger.Logger
}

// NewProgressNotifier pushes pipeline progress to the in-process SSE hub
// and, when a bus is configured, to the cross-instance channel.
func NewProgressNotifier(hub *sse.SSEHub, b bus.Bus, log *logger.Logger) ProgressNotifier {
	return &progressNotifier{hub: hub, bus: b, log: log.With("service", "ProgressNotifier")}
}

func (n *progressNotifier) send(msg sse.SSEMessage) {
	if n.hub != nil {
		n.hub.Broadcast(msg)
	}
	if n.bus != nil {
		if err := n.bus.Publish(context.Background(), msg); err != nil {
			n.log.Warn("bus publish failed", "channel", msg.Channel, "error", err.Error())
		}
	}
}

func (n *progressNotifier) GroupingEvent(ev steps.ProgressEvent) {
	n.send(sse.SSEMessage{
		Channel: GroupingChannel,
		Event:   sse.SSEEventGroupingProgress,
		Data:    ev,
	})
}

func (n *progressNotifier) ImportEvent(channel string, ev steps.ProgressEvent) {
	n.send(sse.SSEMessage{
		Channel: channel,
		Event:   sse.SSEEventImportProgress,
		Data:    ev,
	})
}
