package rtc

import (
	"context"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type SinkStats struct {
	Packets uint64
	Bytes   uint64
	Lost    uint64
}

// Sink consumes a remote track and keeps packet counters.
type Sink struct {
	peerID string
	kind   string

	packets atomic.Uint64
	bytes   atomic.Uint64
	lost    atomic.Uint64

	started bool
	lastSeq uint16
}

func NewSink(peerID, kind string) *Sink {
	return &Sink{peerID: peerID, kind: kind}
}

// Run reads RTP from track until ctx is done or the track ends.
func (s *Sink) Run(ctx context.Context, track *webrtc.TrackRemote) {
	logger := log.With().Str("module", "rtc").Str("peer", s.peerID).Str("kind", s.kind).Logger()
	defer func() {
		st := s.Stats()
		logger.Info().Uint64("packets", st.Packets).Uint64("bytes", st.Bytes).Uint64("lost", st.Lost).Msg("sink stopped")
	}()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			logger.Debug().Err(err).Msg("sink read RTP ended")
			return
		}
		s.record(pkt)
	}
}

// record is called from the single Run goroutine.
func (s *Sink) record(pkt *rtp.Packet) {
	s.packets.Add(1)
	s.bytes.Add(uint64(len(pkt.Payload)))
	if !s.started {
		s.started = true
		s.lastSeq = pkt.SequenceNumber
		return
	}
	// uint16 arithmetic handles wrap-around; a large gap is a late packet.
	gap := pkt.SequenceNumber - s.lastSeq
	if gap == 0 || gap >= 1<<15 {
		return
	}
	s.lost.Add(uint64(gap - 1))
	s.lastSeq = pkt.SequenceNumber
}

func (s *Sink) Stats() SinkStats {
	return SinkStats{
		Packets: s.packets.Load(),
		Bytes:   s.bytes.Load(),
		Lost:    s.lost.Load(),
	}
}
