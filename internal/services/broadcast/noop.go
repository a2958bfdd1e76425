package broadcast

import (
	"context"

	"github.com/voluma/forge/internal/interfaces"
)

// NoopBroadcaster is used when no pub/sub medium is configured. State is
// still durably stored; there is just no live push.
type NoopBroadcaster struct{}

func NewNoopBroadcaster() *NoopBroadcaster {
	return &NoopBroadcaster{}
}

func (b *NoopBroadcaster) Publish(ctx context.Context, event *interfaces.ProgressEvent) error {
	return nil
}

func (b *NoopBroadcaster) Close() error {
	return nil
}
