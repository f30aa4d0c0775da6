package peer

import "errors"

type State int

const (
	Idle State = iota
	LocalOfferPending
	AwaitingAnswer
	RemoteOfferReceived
	LocalAnswerPending
	Negotiating
	Connected
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case LocalOfferPending:
		return "local-offer-pending"
	case AwaitingAnswer:
		return "awaiting-answer"
	case RemoteOfferReceived:
		return "remote-offer-received"
	case LocalAnswerPending:
		return "local-answer-pending"
	case Negotiating:
		return "negotiating"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

type Role int

const (
	Initiator Role = iota
	Responder
)

func (r Role) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "responder"
}

var (
	ErrNegotiationTimeout = errors.New("negotiation timed out")
	ErrUnknownPeer        = errors.New("unknown peer")
	ErrPeerClosed         = errors.New("peer closed")
	ErrTransportFailed    = errors.New("transport failed")
	ErrUnexpectedSignal   = errors.New("unexpected signal")
)
