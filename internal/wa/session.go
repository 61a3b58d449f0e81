package wa

import (
	"time"

	"go.uber.org/zap"
)

// State is the lifecycle position of the transport session.
type State string

const (
	StateDisconnected  State = "disconnected"
	StateAwaitingScan  State = "awaiting_scan"
	StateAuthenticated State = "authenticated"
	StateReady         State = "ready"
	StateAuthFailure   State = "auth_failure"
)

// SessionStatus is a point-in-time snapshot of the connection.
type SessionStatus struct {
	State      State      `json:"state"`
	Connected  bool       `json:"connected"`
	QRPayload  string     `json:"qr_payload,omitempty"`
	ReadySince *time.Time `json:"ready_since,omitempty"`
}

// CurrentState returns the session state as of the last processed
// transport event.
func (g *Gateway) CurrentState() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// PairingPayload returns the pairing code issued by the transport. It
// is only valid while the session awaits a scan.
func (g *Gateway) PairingPayload() (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.state != StateAwaitingScan {
		return "", false
	}
	return g.qrPayload, true
}

// Status snapshots the session for the status endpoint.
func (g *Gateway) Status() SessionStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	status := SessionStatus{
		State:     g.state,
		Connected: g.state == StateReady,
	}
	if g.state == StateAwaitingScan {
		status.QRPayload = g.qrPayload
	}
	if g.state == StateReady && g.readySince != nil {
		t := *g.readySince
		status.ReadySince = &t
	}
	return status
}

// setState is only called from the event loop, so transitions are
// strictly sequential.
func (g *Gateway) setState(next State, qrPayload, reason string) {
	g.mu.Lock()
	prev := g.state
	g.state = next
	g.qrPayload = ""
	g.readySince = nil
	switch next {
	case StateAwaitingScan:
		g.qrPayload = qrPayload
	case StateReady:
		now := time.Now()
		g.readySince = &now
	}
	g.mu.Unlock()

	fields := []zap.Field{
		zap.String("from", string(prev)),
		zap.String("to", string(next)),
	}
	if reason != "" {
		fields = append(fields, zap.String("reason", reason))
	}
	g.log.Info("session state changed", fields...)

	if g.notifier != nil {
		g.notifier.SessionUpdated(g.Status())
	}
}
