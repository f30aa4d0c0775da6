package protocol

import (
	"encoding/json"
	"testing"
)

func TestEncodeOmitsNilPayload(t *testing.T) {
	b, err := Encode(TypePong, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(b) != `{"type":"pong"}` {
		t.Fatalf("unexpected frame %s", b)
	}
}

func TestSignalDataPassesThroughVerbatim(t *testing.T) {
	raw := json.RawMessage(`{"sdp":{"type":"offer","sdp":"v=0\r\n"},"extra":[1,2]}`)
	b, err := Encode(TypeSignal, SignalDelivery{From: "a", Data: raw})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	msg, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	var got SignalDelivery
	if err := msg.DecodePayload(&got); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if got.From != "a" || string(got.Data) != string(raw) {
		t.Fatalf("payload changed in transit: %+v", got)
	}
}

func TestDecodeRejectsUntypedFrames(t *testing.T) {
	for _, raw := range []string{`{}`, `[]`, `nope`} {
		if _, err := Decode([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", raw)
		}
	}
	if err := (Message{Type: TypeChat}).DecodePayload(new(string)); err == nil {
		t.Fatalf("empty payload must fail")
	}
}
