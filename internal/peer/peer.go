// Package peer drives one WebRTC negotiation per remote session: offer and
// answer exchange, ICE candidate buffering, glare resolution and a
// negotiation deadline.
package peer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gibridargos/live-suhbat/internal/domain"
	"github.com/rs/zerolog/log"
)

type callbacks struct {
	onStream func(id string, s Stream)
	onClosed func(p *Peer, reason error)
	onState  func(id string, s State)
}

// Peer is the state machine for one remote id. Every method and transport
// callback takes mu; user callbacks run after it is released.
type Peer struct {
	id   string
	self string

	mu        sync.Mutex
	role      Role
	state     State
	transport Transport
	signaler  Signaler
	cb        callbacks

	remoteSet     bool
	localSent     bool
	pendingRemote []domain.ICECandidate
	pendingLocal  []domain.ICECandidate

	stream      *Stream
	closeReason error

	deadline *time.Timer
	cancel   context.CancelFunc
	stopCtx  func() bool

	notify []func()
}

func newPeer(ctx context.Context, id, self string, role Role, t Transport, sig Signaler, timeout time.Duration, cb callbacks) *Peer {
	p := &Peer{
		id:        id,
		self:      self,
		role:      role,
		state:     Idle,
		transport: t,
		signaler:  sig,
		cb:        cb,
	}

	t.OnICECandidate(p.onLocalCandidate)
	t.OnTrack(p.onTrack)
	t.OnStateChange(p.onTransportState)

	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Lock()
	p.stopCtx = context.AfterFunc(ctx, func() { p.Close(ErrPeerClosed) })
	if timeout > 0 {
		p.deadline = time.AfterFunc(timeout, p.expire)
	}
	p.mu.Unlock()
	return p
}

func (p *Peer) ID() string { return p.id }

func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Peer) Role() Role {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.role
}

// Stream returns the remote stream once the peer is connected.
func (p *Peer) Stream() (Stream, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return Stream{}, false
	}
	return *p.stream, true
}

// Err reports why the peer was closed.
func (p *Peer) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeReason
}

func (p *Peer) unlockAndNotify() {
	pending := p.notify
	p.notify = nil
	p.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

func (p *Peer) setState(s State) {
	if p.state == s {
		return
	}
	prev := p.state
	p.state = s
	log.Debug().Str("module", "peer").Str("peer", p.id).Str("from", prev.String()).Str("to", s.String()).Msg("state")
	if p.cb.onState != nil {
		fn, id := p.cb.onState, p.id
		p.notify = append(p.notify, func() { fn(id, s) })
	}
}

// Offer starts negotiation as the initiator.
func (p *Peer) Offer() error {
	p.mu.Lock()
	defer p.unlockAndNotify()

	if p.state == Closed {
		return ErrPeerClosed
	}
	if p.state != Idle {
		return fmt.Errorf("offer in state %s: %w", p.state, ErrUnexpectedSignal)
	}
	p.role = Initiator
	p.setState(LocalOfferPending)

	offer, err := p.transport.CreateOffer()
	if err != nil {
		return p.failLocked(fmt.Errorf("create offer: %w", err))
	}
	if err := p.transport.SetLocalDescription(offer); err != nil {
		return p.failLocked(fmt.Errorf("set local offer: %w", err))
	}
	p.setState(AwaitingAnswer)
	if err := p.signaler.Signal(p.id, offer); err != nil {
		return p.failLocked(fmt.Errorf("send offer: %w", err))
	}
	p.localSent = true
	p.flushLocalLocked()
	return nil
}

// HandleSignal applies an envelope received from the remote peer.
func (p *Peer) HandleSignal(data domain.SignalData) error {
	p.mu.Lock()
	defer p.unlockAndNotify()

	if p.state == Closed {
		return ErrPeerClosed
	}
	switch d := data.(type) {
	case domain.Offer:
		return p.onOfferLocked(d)
	case domain.Answer:
		return p.onAnswerLocked(d)
	case domain.Candidate:
		return p.onRemoteCandidateLocked(d.ICE)
	default:
		return fmt.Errorf("signal %T: %w", data, ErrUnexpectedSignal)
	}
}

func (p *Peer) onOfferLocked(offer domain.Offer) error {
	switch p.state {
	case Idle:
	case LocalOfferPending, AwaitingAnswer:
		// Glare: the smaller id yields and answers, the other keeps its offer.
		if p.self >= p.id {
			log.Info().Str("module", "peer").Str("peer", p.id).Msg("glare: keeping local offer")
			return nil
		}
		log.Info().Str("module", "peer").Str("peer", p.id).Msg("glare: rolling back local offer")
		if err := p.transport.Rollback(); err != nil {
			return p.failLocked(fmt.Errorf("rollback: %w", err))
		}
		p.localSent = false
		p.pendingLocal = nil
		p.setState(Idle)
	default:
		return fmt.Errorf("offer in state %s: %w", p.state, ErrUnexpectedSignal)
	}

	p.role = Responder
	p.setState(RemoteOfferReceived)
	if err := p.transport.SetRemoteDescription(offer); err != nil {
		return p.failLocked(fmt.Errorf("set remote offer: %w", err))
	}
	p.remoteSet = true
	p.replayRemoteLocked()

	p.setState(LocalAnswerPending)
	answer, err := p.transport.CreateAnswer()
	if err != nil {
		return p.failLocked(fmt.Errorf("create answer: %w", err))
	}
	if err := p.transport.SetLocalDescription(answer); err != nil {
		return p.failLocked(fmt.Errorf("set local answer: %w", err))
	}
	if err := p.signaler.Signal(p.id, answer); err != nil {
		return p.failLocked(fmt.Errorf("send answer: %w", err))
	}
	p.localSent = true
	p.flushLocalLocked()
	p.setState(Negotiating)
	return nil
}

func (p *Peer) onAnswerLocked(answer domain.Answer) error {
	if p.state != AwaitingAnswer {
		return fmt.Errorf("answer in state %s: %w", p.state, ErrUnexpectedSignal)
	}
	if err := p.transport.SetRemoteDescription(answer); err != nil {
		return p.failLocked(fmt.Errorf("set remote answer: %w", err))
	}
	p.remoteSet = true
	p.replayRemoteLocked()
	p.setState(Negotiating)
	return nil
}

func (p *Peer) onRemoteCandidateLocked(c domain.ICECandidate) error {
	if !p.remoteSet {
		p.pendingRemote = append(p.pendingRemote, c)
		return nil
	}
	if err := p.transport.AddICECandidate(c); err != nil {
		log.Warn().Err(err).Str("module", "peer").Str("peer", p.id).Msg("add ice candidate")
		return err
	}
	return nil
}

func (p *Peer) replayRemoteLocked() {
	pending := p.pendingRemote
	p.pendingRemote = nil
	for _, c := range pending {
		if err := p.transport.AddICECandidate(c); err != nil {
			log.Warn().Err(err).Str("module", "peer").Str("peer", p.id).Msg("replay ice candidate")
		}
	}
}

func (p *Peer) flushLocalLocked() {
	pending := p.pendingLocal
	p.pendingLocal = nil
	for _, c := range pending {
		if err := p.signaler.Signal(p.id, domain.Candidate{ICE: c}); err != nil {
			log.Warn().Err(err).Str("module", "peer").Str("peer", p.id).Msg("send ice candidate")
		}
	}
}

func (p *Peer) onLocalCandidate(c domain.ICECandidate) {
	p.mu.Lock()
	defer p.unlockAndNotify()

	if p.state == Closed {
		return
	}
	if !p.localSent {
		p.pendingLocal = append(p.pendingLocal, c)
		return
	}
	if err := p.signaler.Signal(p.id, domain.Candidate{ICE: c}); err != nil {
		log.Warn().Err(err).Str("module", "peer").Str("peer", p.id).Msg("send ice candidate")
	}
}

func (p *Peer) onTrack(s Stream) {
	p.mu.Lock()
	defer p.unlockAndNotify()

	if p.state == Closed || p.stream != nil {
		return
	}
	p.stream = &s
	p.setState(Connected)
	if p.deadline != nil {
		p.deadline.Stop()
	}
	log.Info().Str("module", "peer").Str("peer", p.id).Str("stream", s.ID).Str("kind", s.Kind).Msg("remote stream")
	if p.cb.onStream != nil {
		fn, id := p.cb.onStream, p.id
		p.notify = append(p.notify, func() { fn(id, s) })
	}
}

func (p *Peer) onTransportState(s TransportState) {
	if s != TransportFailed && s != TransportClosed {
		return
	}
	p.mu.Lock()
	defer p.unlockAndNotify()
	p.closeLocked(fmt.Errorf("transport state %d: %w", s, ErrTransportFailed))
}

func (p *Peer) expire() {
	p.mu.Lock()
	defer p.unlockAndNotify()
	if p.state == Connected || p.state == Closed {
		return
	}
	log.Warn().Str("module", "peer").Str("peer", p.id).Str("state", p.state.String()).Msg("negotiation deadline")
	p.closeLocked(ErrNegotiationTimeout)
}

// Close tears the peer down. Only the first call has any effect.
func (p *Peer) Close(reason error) {
	p.mu.Lock()
	defer p.unlockAndNotify()
	p.closeLocked(reason)
}

func (p *Peer) failLocked(err error) error {
	log.Warn().Err(err).Str("module", "peer").Str("peer", p.id).Msg("negotiation failed")
	p.closeLocked(err)
	return err
}

func (p *Peer) closeLocked(reason error) {
	if p.state == Closed {
		return
	}
	p.setState(Closed)
	p.closeReason = reason
	p.pendingRemote = nil
	p.pendingLocal = nil
	if p.deadline != nil {
		p.deadline.Stop()
	}
	if p.stopCtx != nil {
		p.stopCtx()
	}
	p.cancel()

	t, onClosed := p.transport, p.cb.onClosed
	p.notify = append(p.notify, func() {
		if err := t.Close(); err != nil {
			log.Debug().Err(err).Str("module", "peer").Str("peer", p.id).Msg("transport close")
		}
		if onClosed != nil {
			onClosed(p, reason)
		}
	})
	log.Info().Str("module", "peer").Str("peer", p.id).AnErr("reason", reason).Msg("closed")
}
