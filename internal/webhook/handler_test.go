package webhook

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"studio-messaging/internal/cloudapi"
	"studio-messaging/internal/config"
	"studio-messaging/internal/models"
	"studio-messaging/internal/transport"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (*gin.Engine, *cloudapi.Transport) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{VerifyToken: "studio-secret"}
	tp := cloudapi.NewTransport(cfg, zap.NewNop())
	h := NewHandler(cfg, tp, zap.NewNop())

	r := gin.New()
	r.GET("/webhook", h.Verify)
	r.POST("/webhook", h.Receive)
	return r, tp
}

func nextEvent(t *testing.T, tp *cloudapi.Transport) transport.Event {
	t.Helper()
	select {
	case ev := <-tp.Events():
		return ev
	default:
		t.Fatal("no transport event emitted")
		return transport.Event{}
	}
}

func TestVerifyHandshake(t *testing.T) {
	r, _ := newTestRouter(t)

	tests := []struct {
		name     string
		query    string
		wantCode int
		wantBody string
	}{
		{"valid token", "hub.mode=subscribe&hub.verify_token=studio-secret&hub.challenge=12345", http.StatusOK, "12345"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", http.StatusForbidden, ""},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=studio-secret&hub.challenge=12345", http.StatusForbidden, ""},
		{"missing params", "hub.challenge=12345", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/webhook?"+tt.query, nil)
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func postPayload(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestReceiveTextMessage(t *testing.T) {
	r, tp := newTestRouter(t)

	w := postPayload(t, r, `{
		"object": "whatsapp_business_account",
		"entry": [{"id": "1", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"metadata": {"display_phone_number": "5511000000000", "phone_number_id": "pn1"},
			"contacts": [{"wa_id": "5511987654321", "profile": {"name": "Maria Silva"}}],
			"messages": [{"from": "5511987654321", "id": "wamid.in.1", "timestamp": "1756400000",
				"type": "text", "text": {"body": "Oi, quanto custa?"}}]
		}}]}]
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	ev := nextEvent(t, tp)
	assert.Equal(t, transport.EventMessage, ev.Kind)
	require.NotNil(t, ev.Inbound)
	assert.Equal(t, "wamid.in.1", ev.Inbound.ExternalID)
	assert.Equal(t, "5511987654321", ev.Inbound.From)
	assert.Equal(t, "5511000000000", ev.Inbound.To)
	assert.Equal(t, "Oi, quanto custa?", ev.Inbound.Body)
	assert.Equal(t, models.MediaText, ev.Inbound.MediaType)
	assert.Equal(t, int64(1756400000), ev.Inbound.Timestamp.Unix())
	assert.Equal(t, "Maria Silva", ev.Inbound.Metadata["contact_name"])
}

func TestReceiveMediaMessage(t *testing.T) {
	r, tp := newTestRouter(t)

	w := postPayload(t, r, `{
		"object": "whatsapp_business_account",
		"entry": [{"id": "1", "changes": [{"field": "messages", "value": {
			"metadata": {"display_phone_number": "5511000000000", "phone_number_id": "pn1"},
			"messages": [{"from": "5511987654321", "id": "wamid.in.2", "timestamp": "1756400000",
				"type": "image", "image": {"id": "media-1", "mime_type": "image/jpeg", "caption": "meu ensaio"}}]
		}}]}]
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	ev := nextEvent(t, tp)
	require.NotNil(t, ev.Inbound)
	assert.Equal(t, models.MediaImage, ev.Inbound.MediaType)
	assert.Equal(t, "[image]:media-1:meu ensaio", ev.Inbound.Body)
	// no contact entry -> no metadata
	assert.Nil(t, ev.Inbound.Metadata)
}

func TestReceiveStatuses(t *testing.T) {
	r, tp := newTestRouter(t)

	w := postPayload(t, r, `{
		"object": "whatsapp_business_account",
		"entry": [{"id": "1", "changes": [{"field": "messages", "value": {
			"metadata": {"display_phone_number": "5511000000000", "phone_number_id": "pn1"},
			"statuses": [
				{"id": "wamid.out.1", "status": "delivered", "timestamp": "1756400000", "recipient_id": "5511987654321"},
				{"id": "wamid.out.2", "status": "read", "timestamp": "1756400001", "recipient_id": "5511987654321"},
				{"id": "wamid.out.3", "status": "warning", "timestamp": "1756400002", "recipient_id": "5511987654321"}
			]
		}}]}]
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	ev := nextEvent(t, tp)
	assert.Equal(t, transport.EventAck, ev.Kind)
	require.NotNil(t, ev.Ack)
	assert.Equal(t, "wamid.out.1", ev.Ack.ExternalID)
	assert.Equal(t, transport.AckDelivered, ev.Ack.Level)

	ev = nextEvent(t, tp)
	require.NotNil(t, ev.Ack)
	assert.Equal(t, transport.AckRead, ev.Ack.Level)

	// the unrecognized "warning" status never becomes an ack
	select {
	case ev := <-tp.Events():
		t.Fatalf("unexpected event: %+v", ev)
	default:
	}
}

func TestReceiveMalformedPayload(t *testing.T) {
	r, tp := newTestRouter(t)

	w := postPayload(t, r, `{"entry": "not-an-array"`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	select {
	case ev := <-tp.Events():
		t.Fatalf("unexpected event: %+v", ev)
	default:
	}
}
