package peer

import "github.com/gibridargos/live-suhbat/internal/domain"

//go:generate mockgen -source=transport.go -destination=mock_transport_test.go -package=peer

type TransportState int

const (
	TransportNew TransportState = iota
	TransportConnecting
	TransportConnected
	TransportDisconnected
	TransportFailed
	TransportClosed
)

// Stream describes the first remote track of a peer.
type Stream struct {
	ID      string
	TrackID string
	Kind    string
}

// Transport is one media connection to one remote peer. Local tracks are
// attached by whoever builds it.
type Transport interface {
	CreateOffer() (domain.Offer, error)
	CreateAnswer() (domain.Answer, error)
	// SetLocalDescription accepts an Offer or an Answer.
	SetLocalDescription(desc domain.SignalData) error
	SetRemoteDescription(desc domain.SignalData) error
	// Rollback discards a local offer that has not been answered.
	Rollback() error
	AddICECandidate(c domain.ICECandidate) error
	OnICECandidate(fn func(domain.ICECandidate))
	OnTrack(fn func(Stream))
	OnStateChange(fn func(TransportState))
	Close() error
}

// Signaler sends an envelope to a remote peer through the relay.
type Signaler interface {
	Signal(to string, data domain.SignalData) error
}

// TransportFactory builds a transport for the remote peer id.
type TransportFactory func(id string) (Transport, error)
