// Package cloudapi implements the transport contract against a
// WhatsApp Cloud API style HTTP gateway. Sends go out as HTTP calls;
// inbound messages and delivery statuses arrive through the webhook
// handler, which feeds this transport's event stream.
package cloudapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"studio-messaging/internal/config"
	"studio-messaging/internal/transport"

	"go.uber.org/zap"
)

type Transport struct {
	cfg    *config.Config
	client *http.Client
	events chan transport.Event
	log    *zap.Logger
}

func NewTransport(cfg *config.Config, log *zap.Logger) *Transport {
	return &Transport{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		events: make(chan transport.Event, 64),
		log:    log,
	}
}

// Initialize checks credentials and reports the session ready. The
// cloud API has no pairing step, so the stream never carries a pairing
// code; the webhook keeps the session alive afterwards.
func (t *Transport) Initialize(ctx context.Context) error {
	if t.cfg.WhatsAppToken == "" || t.cfg.PhoneNumberID == "" {
		t.emit(transport.Event{Kind: transport.EventDisconnected, Reason: "missing credentials"})
		return errors.New("cloudapi: WHATSAPP_TOKEN and PHONE_NUMBER_ID must be configured")
	}
	t.emit(transport.Event{Kind: transport.EventAuthenticated})
	t.emit(transport.Event{Kind: transport.EventReady})
	return nil
}

func (t *Transport) Events() <-chan transport.Event {
	return t.events
}

type textMessage struct {
	MessagingProduct string  `json:"messaging_product"`
	To               string  `json:"to"`
	Type             string  `json:"type"`
	Text             textObj `json:"text"`
}

type textObj struct {
	Body string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Send posts a text message and returns the API-assigned message id.
func (t *Transport) Send(ctx context.Context, to, body string) (string, error) {
	msg := textMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textObj{Body: body},
	}

	url := fmt.Sprintf("%s/%s/messages", t.cfg.APIBaseURL, t.cfg.PhoneNumberID)
	respBody, err := t.request(ctx, http.MethodPost, url, msg)
	if err != nil {
		return "", &transport.Error{Op: "send", Err: err}
	}

	var resp sendResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", &transport.Error{Op: "send", Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(resp.Messages) == 0 {
		return "", &transport.Error{Op: "send", Err: errors.New("no message id in response")}
	}
	return resp.Messages[0].ID, nil
}

func (t *Transport) request(ctx context.Context, method, url string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.WhatsAppToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return respBody, fmt.Errorf("API error: %s - %s", resp.Status, string(respBody))
	}
	return respBody, nil
}

// HandleInbound is called by the webhook handler for each received
// message.
func (t *Transport) HandleInbound(in transport.Inbound) {
	t.emit(transport.Event{Kind: transport.EventMessage, Inbound: &in})
}

// HandleStatus translates a webhook delivery status into an ack event.
// Statuses outside the sent/delivered/read ladder are ignored.
func (t *Transport) HandleStatus(externalID, status string) {
	var level transport.AckLevel
	switch status {
	case "sent":
		level = transport.AckSent
	case "delivered":
		level = transport.AckDelivered
	case "read":
		level = transport.AckRead
	default:
		t.log.Debug("ignoring webhook status",
			zap.String("external_id", externalID), zap.String("status", status))
		return
	}
	t.emit(transport.Event{Kind: transport.EventAck, Ack: &transport.Ack{
		ExternalID: externalID,
		Level:      level,
	}})
}

// NotifyDisconnected pushes a transport-loss event, e.g. when the
// webhook receives an account-level error.
func (t *Transport) NotifyDisconnected(reason string) {
	t.emit(transport.Event{Kind: transport.EventDisconnected, Reason: reason})
}

// emit never blocks the webhook path; an event is dropped with a log
// line if the consumer falls 64 events behind.
func (t *Transport) emit(ev transport.Event) {
	select {
	case t.events <- ev:
	default:
		t.log.Warn("transport event dropped, consumer too slow",
			zap.String("kind", string(ev.Kind)))
	}
}
