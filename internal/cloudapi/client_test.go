package cloudapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"studio-messaging/internal/config"
	"studio-messaging/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitializeMissingCredentials(t *testing.T) {
	tp := NewTransport(&config.Config{}, zap.NewNop())

	err := tp.Initialize(context.Background())
	require.Error(t, err)

	ev := <-tp.Events()
	assert.Equal(t, transport.EventDisconnected, ev.Kind)
}

func TestInitializeEmitsReady(t *testing.T) {
	tp := NewTransport(&config.Config{
		WhatsAppToken: "token",
		PhoneNumberID: "pn1",
	}, zap.NewNop())

	require.NoError(t, tp.Initialize(context.Background()))
	assert.Equal(t, transport.EventAuthenticated, (<-tp.Events()).Kind)
	assert.Equal(t, transport.EventReady, (<-tp.Events()).Kind)
}

func TestSendReturnsMessageID(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messages": [{"id": "wamid.out.1"}]}`))
	}))
	defer server.Close()

	tp := NewTransport(&config.Config{
		WhatsAppToken: "token",
		PhoneNumberID: "pn1",
		APIBaseURL:    server.URL,
	}, zap.NewNop())

	id, err := tp.Send(context.Background(), "5511987654321", "olá")
	require.NoError(t, err)
	assert.Equal(t, "wamid.out.1", id)
	assert.Equal(t, "Bearer token", gotAuth)
	assert.Equal(t, "whatsapp", gotBody["messaging_product"])
	assert.Equal(t, "5511987654321", gotBody["to"])
}

func TestSendAPIErrorWrapsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "invalid token"}}`))
	}))
	defer server.Close()

	tp := NewTransport(&config.Config{
		WhatsAppToken: "bad",
		PhoneNumberID: "pn1",
		APIBaseURL:    server.URL,
	}, zap.NewNop())

	_, err := tp.Send(context.Background(), "5511987654321", "olá")
	require.Error(t, err)

	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "send", terr.Op)
}

func TestHandleStatusMapping(t *testing.T) {
	tp := NewTransport(&config.Config{}, zap.NewNop())

	tests := []struct {
		status string
		want   transport.AckLevel
	}{
		{"sent", transport.AckSent},
		{"delivered", transport.AckDelivered},
		{"read", transport.AckRead},
	}
	for _, tt := range tests {
		tp.HandleStatus("wamid.1", tt.status)
		ev := <-tp.Events()
		require.Equal(t, transport.EventAck, ev.Kind)
		assert.Equal(t, tt.want, ev.Ack.Level)
	}

	tp.HandleStatus("wamid.1", "deleted")
	select {
	case ev := <-tp.Events():
		t.Fatalf("unexpected event for unknown status: %+v", ev)
	default:
	}
}
