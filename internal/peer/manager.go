package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gibridargos/live-suhbat/internal/domain"
	"github.com/rs/zerolog/log"
)

const DefaultNegotiationTimeout = 30 * time.Second

type Options struct {
	NegotiationTimeout time.Duration
	OnStream           func(id string, s Stream)
	OnClosed           func(id string, reason error)
	OnState            func(id string, s State)
}

// Manager owns one Peer per remote id for the lifetime of ctx.
type Manager struct {
	ctx          context.Context
	self         string
	newTransport TransportFactory
	signaler     Signaler
	opts         Options

	mu     sync.Mutex
	peers  map[string]*Peer
	closed bool
}

func NewManager(ctx context.Context, self string, factory TransportFactory, sig Signaler, opts Options) *Manager {
	if opts.NegotiationTimeout <= 0 {
		opts.NegotiationTimeout = DefaultNegotiationTimeout
	}
	return &Manager{
		ctx:          ctx,
		self:         self,
		newTransport: factory,
		signaler:     sig,
		opts:         opts,
		peers:        make(map[string]*Peer),
	}
}

func (m *Manager) Self() string { return m.self }

func (m *Manager) Peer(id string) (*Peer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peers[id]
	return p, ok
}

// Peers returns the ids of live peers, sorted.
func (m *Manager) Peers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.peers))
	for id := range m.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ensure returns the peer for id, creating it with role when absent.
func (m *Manager) ensure(id string, role Role) (*Peer, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, false, ErrPeerClosed
	}
	if p, ok := m.peers[id]; ok {
		return p, false, nil
	}
	t, err := m.newTransport(id)
	if err != nil {
		return nil, false, fmt.Errorf("transport for %s: %w", id, err)
	}

	cb := callbacks{
		onStream: m.opts.OnStream,
		onState:  m.opts.OnState,
		onClosed: func(p *Peer, reason error) {
			m.forget(p)
			if m.opts.OnClosed != nil {
				m.opts.OnClosed(p.id, reason)
			}
		},
	}
	p := newPeer(m.ctx, id, m.self, role, t, m.signaler, m.opts.NegotiationTimeout, cb)
	m.peers[id] = p
	log.Info().Str("module", "peer").Str("peer", id).Str("role", role.String()).Msg("peer created")
	return p, true, nil
}

func (m *Manager) forget(p *Peer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.peers[p.id]; ok && cur == p {
		delete(m.peers, p.id)
	}
}

// HandleRoster creates an initiator for every listed peer and sends offers.
func (m *Manager) HandleRoster(ids []string) {
	for _, id := range ids {
		if id == "" || id == m.self {
			continue
		}
		p, created, err := m.ensure(id, Initiator)
		if err != nil {
			log.Warn().Err(err).Str("module", "peer").Str("peer", id).Msg("roster")
			continue
		}
		if !created {
			continue
		}
		if err := p.Offer(); err != nil {
			log.Warn().Err(err).Str("module", "peer").Str("peer", id).Msg("offer")
		}
	}
}

// HandlePeerJoined prepares a responder that waits for the newcomer's offer.
func (m *Manager) HandlePeerJoined(id string) {
	if id == "" || id == m.self {
		return
	}
	if _, _, err := m.ensure(id, Responder); err != nil {
		log.Warn().Err(err).Str("module", "peer").Str("peer", id).Msg("peer joined")
	}
}

// HandleSignal decodes an envelope and dispatches it to the peer it came from.
func (m *Manager) HandleSignal(from string, raw json.RawMessage) error {
	data, err := domain.DecodeSignalData(raw)
	if err != nil {
		return err
	}

	p, ok := m.Peer(from)
	if !ok {
		if _, isOffer := data.(domain.Offer); !isOffer {
			return fmt.Errorf("signal from %s: %w", from, ErrUnknownPeer)
		}
		if p, _, err = m.ensure(from, Responder); err != nil {
			return err
		}
	}
	return p.HandleSignal(data)
}

func (m *Manager) HandlePeerLeft(id string) {
	p, ok := m.Peer(id)
	if !ok {
		return
	}
	p.Close(ErrPeerClosed)
}

// Close tears down every peer. Later calls to Handle* are ignored.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	peers := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	m.mu.Unlock()

	for _, p := range peers {
		p.Close(ErrPeerClosed)
	}
}
