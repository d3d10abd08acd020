// Package bridge binds the dispatcher to its message channel. Attach resolves
// the platform service handles once and subscribes the handler; Detach
// unsubscribes it and releases the handles.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/signal-bridge/pkg/commsutil"
	"github.com/morezero/signal-bridge/pkg/dispatcher"
	"github.com/morezero/signal-bridge/pkg/events"
	"github.com/morezero/signal-bridge/pkg/manifest"
	"github.com/morezero/signal-bridge/pkg/metrics"
	"github.com/morezero/signal-bridge/pkg/platform"
)

const logPrefix = "bridge:bridge"

// DefaultRequestTimeout bounds a single platform query.
const DefaultRequestTimeout = 5 * time.Second

// ErrDetached is returned when a detached bridge is used.
var ErrDetached = errors.New("bridge: detached")

// Options configures Attach. Zero values use defaults.
type Options struct {
	// Subject is the channel subject; defaults to the manifest's channel subject.
	Subject string
	// RequestTimeout bounds each platform query.
	RequestTimeout time.Duration
	// Manifest is served on the manifest side subject; defaults to manifest.Default().
	Manifest *manifest.Manifest
	Metrics  *metrics.Metrics
	// Events receives attach and detach events; nil disables them.
	Events events.EventPublisher
}

// Bridge is an attached dispatcher.
type Bridge struct {
	mu          sync.Mutex
	nc          *comms.Conn
	subject     string
	timeout     time.Duration
	metrics     *metrics.Metrics
	manifest    *manifest.Manifest
	events      events.EventPublisher
	telephony   platform.Telephony
	wifi        platform.Wifi
	disp        *dispatcher.Dispatcher
	sub         *comms.Subscription
	manifestSub *comms.Subscription
}

// Attach resolves the service handles from pctx and binds the dispatcher to
// its subject on nc. A service the context does not provide is left nil and
// its methods answer UNAVAILABLE.
func Attach(nc *comms.Conn, pctx platform.Context, opts Options) (*Bridge, error) {
	if nc == nil {
		return nil, fmt.Errorf("%s - nil connection", logPrefix)
	}
	if pctx == nil {
		return nil, fmt.Errorf("%s - nil platform context", logPrefix)
	}

	telephony, err := pctx.Telephony()
	if err != nil {
		if !errors.Is(err, platform.ErrServiceNotFound) {
			return nil, fmt.Errorf("%s - failed to resolve telephony service: %w", logPrefix, err)
		}
		slog.Warn(fmt.Sprintf("%s - Telephony service not available: %v", logPrefix, err))
		telephony = nil
	}
	wifi, err := pctx.Wifi()
	if err != nil {
		if !errors.Is(err, platform.ErrServiceNotFound) {
			return nil, fmt.Errorf("%s - failed to resolve wifi service: %w", logPrefix, err)
		}
		slog.Warn(fmt.Sprintf("%s - WiFi service not available: %v", logPrefix, err))
		wifi = nil
	}

	b := &Bridge{
		nc:        nc,
		subject:   opts.Subject,
		timeout:   opts.RequestTimeout,
		metrics:   opts.Metrics,
		manifest:  opts.Manifest,
		events:    opts.Events,
		telephony: telephony,
		wifi:      wifi,
		disp:      dispatcher.NewDispatcher(telephony, wifi),
	}
	if b.manifest == nil {
		b.manifest = manifest.Default()
	}
	if b.subject == "" {
		b.subject = b.manifest.ChannelSubject()
	}
	if b.timeout <= 0 {
		b.timeout = DefaultRequestTimeout
	}
	if b.events == nil {
		b.events = &events.NoOpPublisher{}
	}
	b.manifest = b.manifest.WithSubject(b.subject)

	sub, err := nc.Subscribe(b.subject, b.handleCall)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, b.subject, err)
	}
	b.sub = sub

	manifestSubject := commsutil.BuildManifestSubject(b.subject)
	manifestSub, err := nc.Subscribe(manifestSubject, b.handleManifest)
	if err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, manifestSubject, err)
	}
	b.manifestSub = manifestSub

	b.metrics.SetAttached(true)
	b.publish(events.StateAttached)
	slog.Info(fmt.Sprintf("%s - Attached to %s (telephony=%t wifi=%t)", logPrefix, b.subject, telephony != nil, wifi != nil))
	return b, nil
}

// Subject returns the channel subject the bridge is bound to.
func (b *Bridge) Subject() string {
	return b.subject
}

// Attached reports whether the handler is still bound.
func (b *Bridge) Attached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sub != nil
}

// Detach unbinds the handler and releases the service handles. Detaching
// twice returns ErrDetached.
func (b *Bridge) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sub == nil {
		return ErrDetached
	}

	var errs []error
	if err := b.sub.Unsubscribe(); err != nil && !errors.Is(err, comms.ErrConnectionClosed) {
		errs = append(errs, fmt.Errorf("%s - unsubscribe %s: %w", logPrefix, b.subject, err))
	}
	if err := b.manifestSub.Unsubscribe(); err != nil && !errors.Is(err, comms.ErrConnectionClosed) {
		errs = append(errs, fmt.Errorf("%s - unsubscribe manifest: %w", logPrefix, err))
	}

	b.publish(events.StateDetached)

	b.sub = nil
	b.manifestSub = nil
	b.disp = nil
	b.telephony = nil
	b.wifi = nil
	b.metrics.SetAttached(false)

	slog.Info(fmt.Sprintf("%s - Detached from %s", logPrefix, b.subject))
	return errors.Join(errs...)
}

// Call runs one method call through the dispatcher without the channel.
func (b *Bridge) Call(ctx context.Context, call *dispatcher.MethodCall) (*dispatcher.MethodResult, error) {
	b.mu.Lock()
	disp := b.disp
	b.mu.Unlock()

	if disp == nil {
		return nil, ErrDetached
	}

	reqCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	resp := disp.Dispatch(reqCtx, call)
	b.metrics.ObserveCall(methodLabel(call.Method), outcome(resp), time.Since(start))
	return resp, nil
}

func (b *Bridge) handleCall(msg *comms.Msg) {
	var call dispatcher.MethodCall
	if err := commsutil.DecodePayload(msg.Data, &call); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to decode request: %v", logPrefix, err))
		b.metrics.ObserveCall(metrics.MethodUnknown, metrics.OutcomeInvalid, 0)
		resp := &dispatcher.MethodResult{
			Ok: false,
			Error: &dispatcher.ErrorDetail{
				Code:    dispatcher.CodeInvalidRequest,
				Message: "Failed to decode request",
			},
		}
		b.respond(msg, resp)
		return
	}

	resp, err := b.Call(context.Background(), &call)
	if err != nil {
		// Detached between delivery and dispatch.
		slog.Warn(fmt.Sprintf("%s - dropping %s: %v", logPrefix, call.Method, err))
		return
	}
	b.respond(msg, resp)
}

func (b *Bridge) handleManifest(msg *comms.Msg) {
	if err := commsutil.RespondJSON(msg, b.manifest); err != nil {
		slog.Error(fmt.Sprintf("%s - manifest reply: %v", logPrefix, err))
	}
}

// publish reports a lifecycle change. Failures are logged, not returned.
func (b *Bridge) publish(state string) {
	event := &events.LifecycleEvent{
		Channel:   commsutil.ChannelName,
		Subject:   b.subject,
		State:     state,
		Telephony: b.telephony != nil,
		Wifi:      b.wifi != nil,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := b.events.PublishLifecycle(context.Background(), event); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish %s event: %v", logPrefix, state, err))
	}
}

func (b *Bridge) respond(msg *comms.Msg, resp *dispatcher.MethodResult) {
	if msg.Reply == "" {
		slog.Debug(fmt.Sprintf("%s - no reply subject for id=%s", logPrefix, resp.ID))
		return
	}
	if err := commsutil.RespondJSON(msg, resp); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to send response: %v", logPrefix, err))
	}
}

// methodLabel keeps the metric label set bounded to the implemented methods.
func methodLabel(name string) string {
	if dispatcher.IsMethod(name) {
		return name
	}
	return metrics.MethodUnknown
}

func outcome(resp *dispatcher.MethodResult) string {
	switch {
	case resp.Ok:
		return metrics.OutcomeSuccess
	case resp.NotImplemented:
		return metrics.OutcomeNotImplemented
	case resp.Error != nil:
		return resp.Error.Code
	default:
		return metrics.OutcomeInvalid
	}
}
