package wa

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"studio-messaging/internal/autoreply"
	"studio-messaging/internal/database"
	"studio-messaging/internal/models"
	"studio-messaging/internal/store"
	"studio-messaging/internal/templates"
	"studio-messaging/internal/tracker"
	"studio-messaging/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// fakeTransport feeds scripted events and records sends.
type fakeTransport struct {
	events  chan transport.Event
	sendErr error
	seq     atomic.Int64
	sent    chan sentMessage
}

type sentMessage struct {
	to   string
	body string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		events: make(chan transport.Event, 16),
		sent:   make(chan sentMessage, 16),
	}
}

func (f *fakeTransport) Initialize(ctx context.Context) error { return nil }

func (f *fakeTransport) Send(ctx context.Context, to, body string) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent <- sentMessage{to: to, body: body}
	return fmt.Sprintf("wamid.%d", f.seq.Add(1)), nil
}

func (f *fakeTransport) Events() <-chan transport.Event { return f.events }

func newTestGateway(t *testing.T) (*Gateway, *fakeTransport, *store.MessageStore) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.SeedTemplates(db))

	messages := store.NewMessageStore(db)
	renderer := templates.NewRenderer(store.NewTemplateStore(db))
	tp := newFakeTransport()
	gw := NewGateway(tp, tracker.New(messages, zap.NewNop()), renderer,
		autoreply.NewProcessor(autoreply.DefaultRules()), zap.NewNop())

	require.NoError(t, gw.Start(context.Background()))
	t.Cleanup(gw.Stop)
	return gw, tp, messages
}

func waitForState(t *testing.T, gw *Gateway, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return gw.CurrentState() == want
	}, time.Second, 5*time.Millisecond, "state never reached %s", want)
}

func TestConnectionStateTransitions(t *testing.T) {
	gw, tp, _ := newTestGateway(t)
	assert.Equal(t, StateDisconnected, gw.CurrentState())

	tp.events <- transport.Event{Kind: transport.EventPairingCode, Payload: "qr-data"}
	waitForState(t, gw, StateAwaitingScan)
	payload, ok := gw.PairingPayload()
	assert.True(t, ok)
	assert.Equal(t, "qr-data", payload)

	tp.events <- transport.Event{Kind: transport.EventAuthenticated}
	waitForState(t, gw, StateAuthenticated)
	// the pairing payload is only exposed while awaiting a scan
	_, ok = gw.PairingPayload()
	assert.False(t, ok)

	tp.events <- transport.Event{Kind: transport.EventReady}
	waitForState(t, gw, StateReady)
	status := gw.Status()
	assert.True(t, status.Connected)
	assert.NotNil(t, status.ReadySince)

	tp.events <- transport.Event{Kind: transport.EventDisconnected, Reason: "network"}
	waitForState(t, gw, StateDisconnected)
	assert.False(t, gw.Status().Connected)
}

func TestSendBeforeReadyFails(t *testing.T) {
	gw, _, _ := newTestGateway(t)

	_, err := gw.SendFreeform(context.Background(), "5511987654321", "olá", SendContext{})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSendAfterStopFails(t *testing.T) {
	gw, tp, _ := newTestGateway(t)
	tp.events <- transport.Event{Kind: transport.EventReady}
	waitForState(t, gw, StateReady)

	gw.Stop()
	_, err := gw.SendFreeform(context.Background(), "5511987654321", "olá", SendContext{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSendAfterEventStreamCloseFails(t *testing.T) {
	gw, tp, _ := newTestGateway(t)
	tp.events <- transport.Event{Kind: transport.EventReady}
	waitForState(t, gw, StateReady)

	close(tp.events)
	waitForState(t, gw, StateDisconnected)

	// The loop is gone; sends must fail fast instead of parking on the
	// command channel.
	done := make(chan error, 1)
	go func() {
		_, err := gw.SendFreeform(context.Background(), "5511987654321", "olá", SendContext{})
		done <- err
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("send blocked after event stream closed")
	}
}

func TestSendFreeformPersistsMessage(t *testing.T) {
	gw, tp, messages := newTestGateway(t)
	tp.events <- transport.Event{Kind: transport.EventReady}
	waitForState(t, gw, StateReady)

	msg, err := gw.SendFreeform(context.Background(), "5511987654321", "olá", SendContext{})
	require.NoError(t, err)
	require.NotNil(t, msg.ExternalID)
	assert.Equal(t, "wamid.1", *msg.ExternalID)
	assert.Equal(t, models.StatusSent, msg.DeliveryStatus)
	assert.Equal(t, models.DirectionOutbound, msg.Direction)
	assert.NotNil(t, msg.SentAt)

	stored, err := messages.FindByExternalID("wamid.1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "olá", stored.Body)
}

func TestSendFailureMarksMessageFailed(t *testing.T) {
	gw, tp, messages := newTestGateway(t)
	tp.events <- transport.Event{Kind: transport.EventReady}
	waitForState(t, gw, StateReady)

	tp.sendErr = &transport.Error{Op: "send", Err: errors.New("boom")}
	_, err := gw.SendFreeform(context.Background(), "5511987654321", "olá", SendContext{})
	require.Error(t, err)

	var terr *transport.Error
	assert.ErrorAs(t, err, &terr)

	list, _, err := messages.List(store.MessageFilter{Status: models.StatusFailed}, 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].ExternalID)
}

func TestSendTemplateRendersAndCommitsUsage(t *testing.T) {
	gw, tp, _ := newTestGateway(t)
	tp.events <- transport.Event{Kind: transport.EventReady}
	waitForState(t, gw, StateReady)

	vars := map[string]string{
		"nome": "Maria", "horario": "14:00",
	}
	msg, err := gw.SendTemplate(context.Background(), "5511987654321", "lembrete_2h", vars, SendContext{Automated: true})
	require.NoError(t, err)
	assert.Contains(t, msg.Body, "Maria")
	assert.Contains(t, msg.Body, "14:00")
	assert.True(t, msg.IsAutomated)
	require.NotNil(t, msg.TemplateName)
	assert.Equal(t, "lembrete_2h", *msg.TemplateName)
}

func TestSendTemplateMissingVariableFailsFast(t *testing.T) {
	gw, tp, _ := newTestGateway(t)
	tp.events <- transport.Event{Kind: transport.EventReady}
	waitForState(t, gw, StateReady)

	_, err := gw.SendTemplate(context.Background(), "5511987654321", "lembrete_2h", nil, SendContext{})
	var merr *templates.MissingVariableError
	assert.ErrorAs(t, err, &merr)

	// nothing was handed to the transport
	select {
	case m := <-tp.sent:
		t.Fatalf("unexpected send: %+v", m)
	default:
	}
}

func TestInboundMessageRecordedAndAutoReplied(t *testing.T) {
	gw, tp, messages := newTestGateway(t)
	tp.events <- transport.Event{Kind: transport.EventReady}
	waitForState(t, gw, StateReady)

	tp.events <- transport.Event{Kind: transport.EventMessage, Inbound: &transport.Inbound{
		ExternalID: "wamid.in.1",
		From:       "5511987654321",
		Body:       "Oi, quanto custa o ensaio?",
		MediaType:  models.MediaText,
	}}

	// the keyword rule answers pricing questions
	var reply sentMessage
	select {
	case reply = <-tp.sent:
	case <-time.After(time.Second):
		t.Fatal("auto-reply never sent")
	}
	assert.Equal(t, "5511987654321", reply.to)
	assert.NotEmpty(t, reply.body)

	require.Eventually(t, func() bool {
		stored, err := messages.FindByExternalID("wamid.in.1")
		return err == nil && stored != nil
	}, time.Second, 5*time.Millisecond)

	list, total, err := messages.List(store.MessageFilter{Direction: models.DirectionOutbound}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.True(t, list[0].IsAutomated)
}

func TestInboundMediaSkipsAutoReply(t *testing.T) {
	gw, tp, messages := newTestGateway(t)
	tp.events <- transport.Event{Kind: transport.EventReady}
	waitForState(t, gw, StateReady)

	tp.events <- transport.Event{Kind: transport.EventMessage, Inbound: &transport.Inbound{
		ExternalID: "wamid.in.2",
		From:       "5511987654321",
		Body:       "quanto custa?",
		MediaType:  models.MediaImage,
	}}

	require.Eventually(t, func() bool {
		stored, err := messages.FindByExternalID("wamid.in.2")
		return err == nil && stored != nil
	}, time.Second, 5*time.Millisecond)

	select {
	case m := <-tp.sent:
		t.Fatalf("unexpected auto-reply to media message: %+v", m)
	default:
	}
}

func TestAckFlowUpdatesStatus(t *testing.T) {
	gw, tp, messages := newTestGateway(t)
	tp.events <- transport.Event{Kind: transport.EventReady}
	waitForState(t, gw, StateReady)

	msg, err := gw.SendFreeform(context.Background(), "5511987654321", "olá", SendContext{})
	require.NoError(t, err)
	externalID := *msg.ExternalID

	tp.events <- transport.Event{Kind: transport.EventAck, Ack: &transport.Ack{
		ExternalID: externalID, Level: transport.AckDelivered,
	}}
	require.Eventually(t, func() bool {
		stored, err := messages.FindByExternalID(externalID)
		return err == nil && stored != nil && stored.DeliveryStatus == models.StatusDelivered
	}, time.Second, 5*time.Millisecond)

	tp.events <- transport.Event{Kind: transport.EventAck, Ack: &transport.Ack{
		ExternalID: externalID, Level: transport.AckRead,
	}}
	require.Eventually(t, func() bool {
		stored, err := messages.FindByExternalID(externalID)
		return err == nil && stored != nil && stored.DeliveryStatus == models.StatusRead
	}, time.Second, 5*time.Millisecond)

	// a late delivered ack must not regress the read status
	tp.events <- transport.Event{Kind: transport.EventAck, Ack: &transport.Ack{
		ExternalID: externalID, Level: transport.AckDelivered,
	}}
	tp.events <- transport.Event{Kind: transport.EventDisconnected}
	waitForState(t, gw, StateDisconnected)

	stored, err := messages.FindByExternalID(externalID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, stored.DeliveryStatus)
	assert.NotNil(t, stored.ReadAt)
}
