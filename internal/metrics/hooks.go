package metrics

import "github.com/ODCA117/ratchat/internal/session"

// SessionJoined implements session.Hook.
func (m *Metrics) SessionJoined(session.Info) {
	m.ConnectedClients.Inc()
}

// SessionClosed implements session.Hook.
func (m *Metrics) SessionClosed(info session.Info, err error) {
	if info.Joined {
		m.ConnectedClients.Dec()
	}
	m.SessionsTotal.WithLabelValues(info.Transport, session.Reason(err)).Inc()
}
