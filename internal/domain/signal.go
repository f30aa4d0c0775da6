package domain

import (
	"encoding/json"
	"fmt"
)

// SignalData is the decoded form of an envelope's data field. The relay never
// decodes it; endpoints do, and switch over Offer, Answer and Candidate.
type SignalData interface {
	isSignalData()
}

type Offer struct {
	SDP string
}

type Answer struct {
	SDP string
}

type Candidate struct {
	ICE ICECandidate
}

func (Offer) isSignalData()     {}
func (Answer) isSignalData()    {}
func (Candidate) isSignalData() {}

// ICECandidate mirrors the browser RTCIceCandidateInit JSON.
type ICECandidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

type wireDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type wireSignalData struct {
	SDP       *wireDescription `json:"sdp,omitempty"`
	Candidate *ICECandidate    `json:"candidate,omitempty"`
}

// DecodeSignalData parses {"sdp":{type,sdp}} or {"candidate":{...}}.
func DecodeSignalData(raw []byte) (SignalData, error) {
	var w wireSignalData
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, NewOpError("decode signal", ErrMalformedRequest, err.Error())
	}
	switch {
	case w.SDP != nil:
		switch w.SDP.Type {
		case "offer":
			return Offer{SDP: w.SDP.SDP}, nil
		case "answer":
			return Answer{SDP: w.SDP.SDP}, nil
		default:
			return nil, Malformed("decode signal", fmt.Sprintf("unsupported sdp type %q", w.SDP.Type))
		}
	case w.Candidate != nil:
		return Candidate{ICE: *w.Candidate}, nil
	default:
		return nil, Malformed("decode signal", "neither sdp nor candidate")
	}
}

func EncodeSignalData(d SignalData) (json.RawMessage, error) {
	var w wireSignalData
	switch v := d.(type) {
	case Offer:
		w.SDP = &wireDescription{Type: "offer", SDP: v.SDP}
	case Answer:
		w.SDP = &wireDescription{Type: "answer", SDP: v.SDP}
	case Candidate:
		ice := v.ICE
		w.Candidate = &ice
	default:
		return nil, Malformed("encode signal", fmt.Sprintf("unknown signal data %T", d))
	}
	return json.Marshal(w)
}
