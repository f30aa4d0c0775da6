package rtc

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const (
	opusPayloadType  = 111
	opusFrame        = 20 * time.Millisecond
	opusFrameSamples = 960
)

// opusSilence is a single 20ms Opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// SilenceTrack publishes Opus silence so that remote peers receive a track
// without a capture device. One track can be bound to many connections.
type SilenceTrack struct {
	Track *webrtc.TrackLocalStaticRTP

	seq       uint16
	timestamp uint32
	ssrc      uint32
}

func NewSilenceTrack(streamID string) (*SilenceTrack, error) {
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", streamID,
	)
	if err != nil {
		return nil, err
	}
	return &SilenceTrack{
		Track:     track,
		seq:       uint16(rand.Uint32()),
		timestamp: rand.Uint32(),
		ssrc:      rand.Uint32(),
	}, nil
}

func (s *SilenceTrack) nextPacket() *rtp.Packet {
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    opusPayloadType,
			SequenceNumber: s.seq,
			Timestamp:      s.timestamp,
			SSRC:           s.ssrc,
		},
		Payload: opusSilence,
	}
	s.seq++
	s.timestamp += opusFrameSamples
	return pkt
}

// Run writes one silent frame every 20ms until ctx is done.
func (s *SilenceTrack) Run(ctx context.Context) {
	ticker := time.NewTicker(opusFrame)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "rtc").Msg("silence track stopped")
			return
		case <-ticker.C:
			if err := s.Track.WriteRTP(s.nextPacket()); err != nil && !errors.Is(err, io.ErrClosedPipe) {
				log.Error().Err(err).Str("module", "rtc").Msg("silence write RTP error, stopping")
				return
			}
		}
	}
}
