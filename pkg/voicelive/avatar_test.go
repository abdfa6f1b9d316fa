package voicelive

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v3"
)

func TestSessionDescriptionRoundTrip(t *testing.T) {
	desc := &webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=-\r\n",
	}

	encoded, err := encodeSessionDescription(desc)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := decodeSessionDescription(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Type != webrtc.SDPTypeOffer {
		t.Errorf("type = %v", decoded.Type)
	}
	if decoded.SDP != desc.SDP {
		t.Errorf("sdp altered: %q", decoded.SDP)
	}
}

func TestSessionDescriptionWireShape(t *testing.T) {
	// The wire form is base64 over a JSON envelope with lowercase type.
	desc := &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0\r\n"}
	encoded, err := encodeSessionDescription(desc)
	if err != nil {
		t.Fatal(err)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("not base64: %v", err)
	}
	var envelope map[string]string
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("not a JSON envelope: %v", err)
	}
	if envelope["type"] != "answer" {
		t.Errorf("envelope type = %q", envelope["type"])
	}
	if envelope["sdp"] != "v=0\r\n" {
		t.Errorf("envelope sdp = %q", envelope["sdp"])
	}
}

func TestDecodeSessionDescriptionMalformed(t *testing.T) {
	if _, err := decodeSessionDescription("not base64 !!"); err == nil {
		t.Error("expected error for invalid base64")
	}

	junk := base64.StdEncoding.EncodeToString([]byte("not json"))
	if _, err := decodeSessionDescription(junk); err == nil {
		t.Error("expected error for invalid envelope")
	}
}
