package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/signal-bridge/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisher publishes lifecycle events to the channel's lifecycle subject.
type CommsPublisher struct {
	nc *comms.Conn
}

// NewCommsPublisher creates a new CommsPublisher.
func NewCommsPublisher(nc *comms.Conn) *CommsPublisher {
	return &CommsPublisher{nc: nc}
}

// PublishLifecycle publishes event on <event.Subject>.lifecycle.
func (p *CommsPublisher) PublishLifecycle(_ context.Context, event *LifecycleEvent) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	subject := commsutil.BuildLifecycleSubject(event.Subject)
	if err := p.nc.Publish(subject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, subject, err))
		return err
	}

	slog.Debug(fmt.Sprintf("%s - Published %s event on %s", commsPublisherLogPrefix, event.State, subject))
	return nil
}
