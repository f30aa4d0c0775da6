package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gibridargos/live-suhbat/internal/config"
	"github.com/gibridargos/live-suhbat/internal/domain"
	"github.com/gibridargos/live-suhbat/internal/peer"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var _ peer.Transport = (*Connection)(nil)

// Connection is a pion PeerConnection to one remote peer.
type Connection struct {
	pc     *webrtc.PeerConnection
	peerID string
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	sinks  []*Sink
	closed bool
}

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{config.DefaultSTUN},
			},
		},
	}
}

// WebRTCConfig converts configured ICE servers; an empty list falls back to
// the default STUN server.
func WebRTCConfig(servers []config.ICEServer) webrtc.Configuration {
	if len(servers) == 0 {
		return DefaultWebRTCConfig()
	}
	out := webrtc.Configuration{}
	for _, s := range servers {
		ice := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			ice.Credential = s.Credential
		}
		out.ICEServers = append(out.ICEServers, ice)
	}
	return out
}

// NewConnection opens a PeerConnection for peerID and attaches the local
// tracks. ctx bounds the remote track sinks.
func NewConnection(ctx context.Context, cfg webrtc.Configuration, peerID string, tracks ...webrtc.TrackLocal) (*Connection, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	c := &Connection{pc: pc, peerID: peerID, ctx: ctx, cancel: cancel}

	for _, t := range tracks {
		sender, err := pc.AddTrack(t)
		if err != nil {
			cancel()
			_ = pc.Close()
			return nil, fmt.Errorf("add track %s: %w", t.ID(), err)
		}
		go drainRTCP(sender)
	}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("peer", peerID).Str("ice_state", s.String()).Msg("ICE state")
	})
	return c, nil
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (c *Connection) CreateOffer() (domain.Offer, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return domain.Offer{}, err
	}
	return domain.Offer{SDP: offer.SDP}, nil
}

func (c *Connection) CreateAnswer() (domain.Answer, error) {
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return domain.Answer{}, err
	}
	return domain.Answer{SDP: answer.SDP}, nil
}

func (c *Connection) SetLocalDescription(desc domain.SignalData) error {
	sd, err := toSessionDescription(desc)
	if err != nil {
		return err
	}
	return c.pc.SetLocalDescription(sd)
}

func (c *Connection) SetRemoteDescription(desc domain.SignalData) error {
	sd, err := toSessionDescription(desc)
	if err != nil {
		return err
	}
	return c.pc.SetRemoteDescription(sd)
}

func (c *Connection) Rollback() error {
	pending := c.pc.PendingLocalDescription()
	if pending == nil {
		return errors.New("no local offer to roll back")
	}
	return c.pc.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback, SDP: pending.SDP})
}

func (c *Connection) AddICECandidate(ci domain.ICECandidate) error {
	return c.pc.AddICECandidate(toICECandidateInit(ci))
}

func (c *Connection) LocalDescription() *webrtc.SessionDescription {
	return c.pc.LocalDescription()
}

func (c *Connection) OnICECandidate(fn func(domain.ICECandidate)) {
	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && fn != nil {
			fn(fromICECandidateInit(cand.ToJSON()))
		}
	})
}

// OnTrack starts a sink for every remote track and reports it to fn.
func (c *Connection) OnTrack(fn func(peer.Stream)) {
	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("peer", c.peerID).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")

		sink := NewSink(c.peerID, track.Kind().String())
		c.mu.Lock()
		c.sinks = append(c.sinks, sink)
		c.mu.Unlock()
		go sink.Run(c.ctx, track)

		if fn != nil {
			fn(peer.Stream{ID: track.StreamID(), TrackID: track.ID(), Kind: track.Kind().String()})
		}
	})
}

func (c *Connection) OnStateChange(fn func(peer.TransportState)) {
	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer", c.peerID).Str("peer_connection_state", s.String()).Msg("Peer state")
		if fn != nil {
			fn(transportState(s))
		}
	})
}

// Stats sums the counters of every remote track sink.
func (c *Connection) Stats() SinkStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total SinkStats
	for _, s := range c.sinks {
		st := s.Stats()
		total.Packets += st.Packets
		total.Bytes += st.Bytes
		total.Lost += st.Lost
	}
	return total
}

func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	if err := c.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("peer", c.peerID).Msg("close error")
		return err
	}
	log.Info().Str("module", "rtc").Str("peer", c.peerID).Msg("closed")
	return nil
}

func toSessionDescription(desc domain.SignalData) (webrtc.SessionDescription, error) {
	switch d := desc.(type) {
	case domain.Offer:
		return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: d.SDP}, nil
	case domain.Answer:
		return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: d.SDP}, nil
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("%T is not a session description: %w", desc, domain.ErrMalformedRequest)
	}
}

func toICECandidateInit(c domain.ICECandidate) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

func fromICECandidateInit(c webrtc.ICECandidateInit) domain.ICECandidate {
	return domain.ICECandidate{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

func transportState(s webrtc.PeerConnectionState) peer.TransportState {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		return peer.TransportConnecting
	case webrtc.PeerConnectionStateConnected:
		return peer.TransportConnected
	case webrtc.PeerConnectionStateDisconnected:
		return peer.TransportDisconnected
	case webrtc.PeerConnectionStateFailed:
		return peer.TransportFailed
	case webrtc.PeerConnectionStateClosed:
		return peer.TransportClosed
	default:
		return peer.TransportNew
	}
}
