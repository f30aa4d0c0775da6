package app

import "sync/atomic"

type Metrics struct {
	activeConns atomic.Int64
	joins       atomic.Uint64
	relayed     atomic.Uint64
	dropped     atomic.Uint64
	chat        atomic.Uint64
	logins      atomic.Uint64
	uploads     atomic.Uint64
	kicked      atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncConn()    { m.activeConns.Add(1) }
func (m *Metrics) DecConn()    { m.activeConns.Add(-1) }
func (m *Metrics) IncJoin()    { m.joins.Add(1) }
func (m *Metrics) IncRelayed() { m.relayed.Add(1) }
func (m *Metrics) IncDropped() { m.dropped.Add(1) }
func (m *Metrics) IncChat()    { m.chat.Add(1) }
func (m *Metrics) IncLogin()   { m.logins.Add(1) }
func (m *Metrics) IncUpload()  { m.uploads.Add(1) }
func (m *Metrics) IncKicked()  { m.kicked.Add(1) }

func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"active_connections": m.activeConns.Load(),
		"joins_total":        m.joins.Load(),
		"signals_relayed":    m.relayed.Load(),
		"requests_dropped":   m.dropped.Load(),
		"chat_total":         m.chat.Load(),
		"logins_total":       m.logins.Load(),
		"uploads_total":      m.uploads.Load(),
		"kicked_total":       m.kicked.Load(),
	}
}
