// Package wa owns the WhatsApp session: the connection state machine
// and the serialized loop through which every transport event and
// every outbound send passes. Events are processed one at a time in
// arrival order, so no two state transitions or acknowledgement
// applications race.
package wa

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"studio-messaging/internal/autoreply"
	"studio-messaging/internal/models"
	"studio-messaging/internal/templates"
	"studio-messaging/internal/tracker"
	"studio-messaging/internal/transport"

	"go.uber.org/zap"
)

// ErrNotConnected is returned for sends attempted while the session is
// not ready. Callers fail fast instead of queueing.
var ErrNotConnected = errors.New("whatsapp session is not ready")

// ErrClosed is returned for sends attempted after shutdown.
var ErrClosed = errors.New("whatsapp gateway is shut down")

// SendContext associates an outbound message with business records.
type SendContext struct {
	ClientID      *uint
	AppointmentID *uint
	Automated     bool
}

// Notifier receives live updates for dashboards. Implementations must
// not block.
type Notifier interface {
	MessageUpdated(msg models.Message)
	SessionUpdated(status SessionStatus)
}

type sendRequest struct {
	to           string
	body         string
	templateName string
	sctx         SendContext
}

type sendResult struct {
	msg *models.Message
	err error
}

type sendCommand struct {
	ctx   context.Context
	req   sendRequest
	reply chan sendResult
}

// Gateway owns the process-wide session. Create one per process and
// pass it to dependents; the state is deliberately not ambient.
type Gateway struct {
	transport transport.Transport
	tracker   *tracker.Tracker
	renderer  *templates.Renderer
	auto      *autoreply.Processor
	notifier  Notifier
	log       *zap.Logger

	commands chan sendCommand
	done     chan struct{}
	stopOnce sync.Once

	mu         sync.RWMutex
	state      State
	qrPayload  string
	readySince *time.Time
}

func NewGateway(tp transport.Transport, tr *tracker.Tracker, rd *templates.Renderer, auto *autoreply.Processor, log *zap.Logger) *Gateway {
	return &Gateway{
		transport: tp,
		tracker:   tr,
		renderer:  rd,
		auto:      auto,
		log:       log,
		commands:  make(chan sendCommand, 16),
		done:      make(chan struct{}),
		state:     StateDisconnected,
	}
}

// SetNotifier attaches a live-update sink. Call before Start.
func (g *Gateway) SetNotifier(n Notifier) {
	g.notifier = n
}

// Start initializes the transport and begins consuming its event
// stream. Connection progress arrives through events.
func (g *Gateway) Start(ctx context.Context) error {
	if err := g.transport.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize transport: %w", err)
	}
	go g.loop()
	return nil
}

// Stop shuts the loop down. In-flight sends resolve; new sends fail
// with ErrClosed.
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() {
		close(g.done)
	})
}

// SendFreeform sends a literal text body.
func (g *Gateway) SendFreeform(ctx context.Context, to, body string, sctx SendContext) (*models.Message, error) {
	return g.enqueue(ctx, sendRequest{to: to, body: body, sctx: sctx})
}

// SendTemplate renders the named template and sends the result. Usage
// statistics are committed only after the transport accepts the send.
func (g *Gateway) SendTemplate(ctx context.Context, to, templateName string, vars map[string]string, sctx SendContext) (*models.Message, error) {
	body, err := g.renderer.Render(templateName, vars)
	if err != nil {
		return nil, err
	}
	return g.enqueue(ctx, sendRequest{to: to, body: body, templateName: templateName, sctx: sctx})
}

// enqueue appends a send to the serialized command stream and waits
// for its result.
func (g *Gateway) enqueue(ctx context.Context, req sendRequest) (*models.Message, error) {
	cmd := sendCommand{ctx: ctx, req: req, reply: make(chan sendResult, 1)}

	select {
	case g.commands <- cmd:
	case <-g.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-cmd.reply:
		return res.msg, res.err
	case <-g.done:
		return nil, ErrClosed
	}
}

// loop is the single consumer of transport events and send commands.
// Everything that mutates session or message state funnels through
// here in order.
func (g *Gateway) loop() {
	for {
		select {
		case <-g.done:
			return
		case ev, ok := <-g.transport.Events():
			if !ok {
				// No consumer remains once the loop exits; closing done
				// makes pending and future sends fail with ErrClosed
				// instead of blocking.
				g.setState(StateDisconnected, "", "event stream closed")
				g.Stop()
				return
			}
			g.handleEvent(ev)
		case cmd := <-g.commands:
			msg, err := g.dispatch(cmd.ctx, cmd.req)
			cmd.reply <- sendResult{msg: msg, err: err}
		}
	}
}

func (g *Gateway) handleEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.EventPairingCode:
		g.setState(StateAwaitingScan, ev.Payload, "")
	case transport.EventAuthenticated:
		g.setState(StateAuthenticated, "", "")
	case transport.EventReady:
		g.setState(StateReady, "", "")
	case transport.EventAuthFailure:
		g.setState(StateAuthFailure, "", ev.Reason)
	case transport.EventDisconnected:
		g.setState(StateDisconnected, "", ev.Reason)
	case transport.EventMessage:
		if ev.Inbound != nil {
			g.handleInbound(ev.Inbound)
		}
	case transport.EventAck:
		if ev.Ack == nil {
			return
		}
		msg, err := g.tracker.ApplyAck(ev.Ack.ExternalID, ev.Ack.Level)
		if err != nil {
			g.log.Error("failed to apply acknowledgement",
				zap.String("external_id", ev.Ack.ExternalID), zap.Error(err))
			return
		}
		if msg != nil && g.notifier != nil {
			g.notifier.MessageUpdated(*msg)
		}
	default:
		g.log.Warn("unknown transport event", zap.String("kind", string(ev.Kind)))
	}
}

func (g *Gateway) handleInbound(in *transport.Inbound) {
	msg, err := g.tracker.RecordInbound(in.ExternalID, in.From, in.To, in.Body, in.MediaType, in.Metadata)
	if err != nil {
		g.log.Error("failed to record inbound message",
			zap.String("external_id", in.ExternalID), zap.Error(err))
		return
	}
	if g.notifier != nil {
		g.notifier.MessageUpdated(*msg)
	}

	// Automated commands apply to text messages only.
	if in.MediaType != "" && in.MediaType != models.MediaText {
		return
	}
	reply, ok := g.auto.Evaluate(in.Body)
	if !ok {
		return
	}

	req := sendRequest{
		to:   in.From,
		body: reply.Text,
		sctx: SendContext{Automated: true},
	}
	if reply.TemplateName != "" {
		rendered, err := g.renderer.Render(reply.TemplateName, nil)
		if err != nil {
			g.log.Error("auto-reply template failed",
				zap.String("rule", reply.RuleName),
				zap.String("template", reply.TemplateName), zap.Error(err))
			return
		}
		req.body = rendered
		req.templateName = reply.TemplateName
	}

	g.log.Info("auto-reply triggered",
		zap.String("rule", reply.RuleName), zap.String("to", in.From))
	if _, err := g.dispatch(context.Background(), req); err != nil {
		g.log.Error("auto-reply dispatch failed",
			zap.String("rule", reply.RuleName), zap.Error(err))
	}
}

// dispatch performs one outbound send. It runs only on the loop
// goroutine, so record -> transport send -> confirm is atomic with
// respect to every other send and event.
func (g *Gateway) dispatch(ctx context.Context, req sendRequest) (*models.Message, error) {
	g.mu.RLock()
	ready := g.state == StateReady
	g.mu.RUnlock()
	if !ready {
		return nil, ErrNotConnected
	}

	h, err := g.tracker.RecordOutboundAttempt(req.to, req.body, tracker.OutboundContext{
		TemplateName:  req.templateName,
		ClientID:      req.sctx.ClientID,
		AppointmentID: req.sctx.AppointmentID,
		Automated:     req.sctx.Automated,
	})
	if err != nil {
		return nil, err
	}

	externalID, err := g.transport.Send(ctx, req.to, req.body)
	if err != nil {
		if failErr := g.tracker.MarkFailed(h, err.Error()); failErr != nil {
			g.log.Error("failed to mark outbound attempt failed", zap.Error(failErr))
		}
		return nil, fmt.Errorf("send to %s: %w", req.to, err)
	}

	msg, err := g.tracker.ConfirmSent(h, externalID)
	if err != nil {
		return nil, err
	}

	if req.templateName != "" {
		if err := g.renderer.CommitUsage(req.templateName); err != nil {
			g.log.Warn("failed to record template usage",
				zap.String("template", req.templateName), zap.Error(err))
		}
	}
	if g.notifier != nil {
		g.notifier.MessageUpdated(*msg)
	}
	return msg, nil
}
