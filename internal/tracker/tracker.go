// Package tracker persists every message the transport touches and
// advances delivery status from acknowledgement events. It is the only
// component that mutates Message records.
package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"studio-messaging/internal/models"
	"studio-messaging/internal/store"
	"studio-messaging/internal/transport"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrAlreadyConfirmed is returned when ConfirmSent or MarkFailed is
// called on a handle that was already resolved (or never issued).
var ErrAlreadyConfirmed = errors.New("outbound attempt already confirmed")

// Handle identifies an outbound attempt between RecordOutboundAttempt
// and its ConfirmSent/MarkFailed resolution.
type Handle string

// OutboundContext carries the optional associations of an outbound
// message.
type OutboundContext struct {
	TemplateName  string
	ClientID      *uint
	AppointmentID *uint
	Automated     bool
}

type Tracker struct {
	messages *store.MessageStore
	log      *zap.Logger

	mu      sync.Mutex
	pending map[Handle]uint // open handles -> message row id
	now     func() time.Time
}

func New(messages *store.MessageStore, log *zap.Logger) *Tracker {
	return &Tracker{
		messages: messages,
		log:      log,
		pending:  make(map[Handle]uint),
		now:      time.Now,
	}
}

// RecordInbound stores a received message with delivery status fixed at
// delivered. Duplicate arrivals with the same external id are a no-op;
// transports are expected to redeliver.
func (t *Tracker) RecordInbound(externalID, from, to, body, mediaType string, metadata map[string]string) (*models.Message, error) {
	existing, err := t.messages.FindByExternalID(externalID)
	if err != nil {
		return nil, fmt.Errorf("lookup inbound: %w", err)
	}
	if existing != nil {
		t.log.Debug("duplicate inbound message ignored", zap.String("external_id", externalID))
		return existing, nil
	}

	meta := ""
	if len(metadata) > 0 {
		if raw, err := json.Marshal(metadata); err == nil {
			meta = string(raw)
		}
	}
	if mediaType == "" {
		mediaType = models.MediaText
	}

	msg := &models.Message{
		ExternalID:     &externalID,
		FromAddress:    from,
		ToAddress:      to,
		Body:           body,
		MediaType:      mediaType,
		Direction:      models.DirectionInbound,
		DeliveryStatus: models.StatusDelivered,
		Metadata:       meta,
	}
	if err := t.messages.Create(msg); err != nil {
		return nil, fmt.Errorf("store inbound: %w", err)
	}
	return msg, nil
}

// RecordOutboundAttempt stores an outbound message in pending state,
// before the transport has confirmed anything, and returns a handle
// that the send path later resolves.
func (t *Tracker) RecordOutboundAttempt(to, body string, ctx OutboundContext) (Handle, error) {
	msg := &models.Message{
		ToAddress:      to,
		Body:           body,
		MediaType:      models.MediaText,
		Direction:      models.DirectionOutbound,
		DeliveryStatus: models.StatusPending,
		IsAutomated:    ctx.Automated,
		ClientID:       ctx.ClientID,
		AppointmentID:  ctx.AppointmentID,
	}
	if ctx.TemplateName != "" {
		name := ctx.TemplateName
		msg.TemplateName = &name
	}
	if err := t.messages.Create(msg); err != nil {
		return "", fmt.Errorf("store outbound attempt: %w", err)
	}

	h := Handle(uuid.NewString())
	t.mu.Lock()
	t.pending[h] = msg.ID
	t.mu.Unlock()
	return h, nil
}

// ConfirmSent resolves an outbound attempt: the external id is
// populated exactly once and the status advances to sent. A second
// call on the same handle fails with ErrAlreadyConfirmed and leaves
// the record as the first call set it.
func (t *Tracker) ConfirmSent(h Handle, externalID string) (*models.Message, error) {
	id, ok := t.takePending(h)
	if !ok {
		return nil, ErrAlreadyConfirmed
	}

	msg, err := t.messages.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("load outbound attempt: %w", err)
	}

	now := t.now()
	msg.ExternalID = &externalID
	msg.DeliveryStatus = models.StatusSent
	msg.SentAt = &now
	if err := t.messages.Save(msg); err != nil {
		return nil, fmt.Errorf("confirm sent: %w", err)
	}
	return msg, nil
}

// MarkFailed resolves an outbound attempt whose transport call errored.
// The failed status is terminal.
func (t *Tracker) MarkFailed(h Handle, reason string) error {
	id, ok := t.takePending(h)
	if !ok {
		return ErrAlreadyConfirmed
	}

	msg, err := t.messages.FindByID(id)
	if err != nil {
		return fmt.Errorf("load outbound attempt: %w", err)
	}

	msg.DeliveryStatus = models.StatusFailed
	if reason != "" {
		if raw, err := json.Marshal(map[string]string{"error": reason}); err == nil {
			msg.Metadata = string(raw)
		}
	}
	if err := t.messages.Save(msg); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

func (t *Tracker) takePending(h Handle) (uint, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.pending[h]
	if ok {
		delete(t.pending, h)
	}
	return id, ok
}

// statusRank orders delivery statuses for monotonic advancement.
// failed is terminal and never advanced out of.
var statusRank = map[string]int{
	models.StatusPending:   0,
	models.StatusSent:      1,
	models.StatusDelivered: 2,
	models.StatusRead:      3,
}

// ApplyAck advances a message's delivery status from a transport
// acknowledgement. Acks at or below the current status, acks with an
// unrecognized level, and acks for unknown external ids are all
// ignored: transports redeliver and reorder delivery reports.
func (t *Tracker) ApplyAck(externalID string, level transport.AckLevel) (*models.Message, error) {
	var target string
	switch level {
	case transport.AckSent:
		target = models.StatusSent
	case transport.AckDelivered:
		target = models.StatusDelivered
	case transport.AckRead:
		target = models.StatusRead
	default:
		t.log.Debug("unrecognized ack level ignored",
			zap.String("external_id", externalID), zap.Int("level", int(level)))
		return nil, nil
	}

	msg, err := t.messages.FindByExternalID(externalID)
	if err != nil {
		return nil, fmt.Errorf("lookup ack target: %w", err)
	}
	if msg == nil {
		// The message may belong to a prior session or have been
		// purged. Discard, do not surface.
		t.log.Info("ack for unknown message discarded",
			zap.String("external_id", externalID), zap.Int("level", int(level)))
		return nil, nil
	}

	current, ok := statusRank[msg.DeliveryStatus]
	if !ok {
		// failed is terminal
		return msg, nil
	}
	if statusRank[target] <= current {
		return msg, nil
	}

	now := t.now()
	msg.DeliveryStatus = target
	switch target {
	case models.StatusSent:
		if msg.SentAt == nil {
			msg.SentAt = &now
		}
	case models.StatusDelivered:
		msg.DeliveredAt = &now
	case models.StatusRead:
		msg.ReadAt = &now
	}
	if err := t.messages.Save(msg); err != nil {
		return nil, fmt.Errorf("apply ack: %w", err)
	}
	return msg, nil
}
