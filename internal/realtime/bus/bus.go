package bus

import (
	"context"

	"github.com/kravdesk/kravdesk-backend/internal/sse"
)

// Bus carries SSE messages between instances so progress events reach
// clients regardless of which instance ran the work.
type Bus interface {
	Publish(ctx context.Context, msg sse.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m sse.SSEMessage)) error
	Close() error
}
