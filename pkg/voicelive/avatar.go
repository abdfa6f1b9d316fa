package voicelive

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

// TrackRemote is a remote media track delivered by the avatar's peer
// connection.
type TrackRemote = *webrtc.TrackRemote

type avatarCallbacks struct {
	onVideoTrack func(TrackRemote)
	onAudioTrack func(TrackRemote)
	onFatal      func(*Error)
	logger       Logger
}

// avatarSession owns the WebRTC peer connection carrying the avatar's video
// and audio. This side never sends media, it only receives.
type avatarSession struct {
	pc  *webrtc.PeerConnection
	cbs avatarCallbacks

	mu    sync.Mutex
	video TrackRemote
	audio TrackRemote

	closeOnce sync.Once
}

// newAvatarSession builds the peer connection from the service-granted ICE
// servers, creates a receive-only offer, waits for ICE gathering to finish
// and returns the base64-encoded local description ready for transmission
// as a connect-media request.
func newAvatarSession(ctx context.Context, grant *AvatarGrant, cbs avatarCallbacks) (*avatarSession, string, error) {
	iceServers := make([]webrtc.ICEServer, 0, len(grant.IceServers))
	for _, srv := range grant.IceServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       srv.URLs,
			Username:   srv.Username,
			Credential: srv.Credential,
		})
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, "", fmt.Errorf("voicelive: create peer connection: %w", err)
	}

	av := &avatarSession{pc: pc, cbs: cbs}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		cbs.logger.DebugPrintf("avatar track received: kind=%s codec=%s",
			track.Kind(), track.Codec().MimeType)

		av.mu.Lock()
		var cb func(TrackRemote)
		switch track.Kind() {
		case webrtc.RTPCodecTypeVideo:
			if av.video == nil {
				av.video = track
				cb = cbs.onVideoTrack
			}
		case webrtc.RTPCodecTypeAudio:
			if av.audio == nil {
				av.audio = track
				cb = cbs.onAudioTrack
			}
		}
		av.mu.Unlock()

		if cb != nil {
			cb(track)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		cbs.logger.InfoPrintf("avatar connection state: %s", state)
		if state == webrtc.PeerConnectionStateFailed && cbs.onFatal != nil {
			cbs.onFatal(&Error{Code: "media_failed", Message: "avatar peer connection failed"})
		}
	})

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		cbs.logger.DebugPrintf("avatar ICE state: %s", state)
		if state == webrtc.ICEConnectionStateFailed && cbs.onFatal != nil {
			cbs.onFatal(&Error{Code: "media_failed", Message: "avatar ICE negotiation failed"})
		}
	})

	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			pc.Close()
			return nil, "", fmt.Errorf("voicelive: add %s transceiver: %w", kind, err)
		}
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return nil, "", fmt.Errorf("voicelive: create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return nil, "", fmt.Errorf("voicelive: set local description: %w", err)
	}

	// A partial offer is useless to the far side; gathering completion is
	// a hard synchronization point. The promise resolves immediately when
	// gathering already finished.
	select {
	case <-webrtc.GatheringCompletePromise(pc):
	case <-ctx.Done():
		pc.Close()
		return nil, "", ctx.Err()
	}

	encoded, err := encodeSessionDescription(pc.LocalDescription())
	if err != nil {
		pc.Close()
		return nil, "", err
	}
	return av, encoded, nil
}

// setRemoteDescription decodes the server's media description and applies it.
func (av *avatarSession) setRemoteDescription(encoded string) error {
	desc, err := decodeSessionDescription(encoded)
	if err != nil {
		return err
	}
	if err := av.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("voicelive: set remote description: %w", err)
	}
	return nil
}

func (av *avatarSession) videoTrack() TrackRemote {
	av.mu.Lock()
	defer av.mu.Unlock()
	return av.video
}

func (av *avatarSession) audioTrack() TrackRemote {
	av.mu.Lock()
	defer av.mu.Unlock()
	return av.audio
}

// drainAudio reads RTP packets from the avatar's audio track and feeds them
// to fn until the track ends.
func (av *avatarSession) drainAudio(fn func(*rtp.Packet)) error {
	track := av.audioTrack()
	if track == nil {
		return &Error{Code: "no_audio_track", Message: "avatar audio track not attached"}
	}
	go func() {
		for {
			pkt, _, err := track.ReadRTP()
			if err != nil {
				av.cbs.logger.DebugPrintf("avatar audio track ended: %v", err)
				return
			}
			fn(pkt)
		}
	}()
	return nil
}

func (av *avatarSession) Close() error {
	var err error
	av.closeOnce.Do(func() {
		err = av.pc.Close()
	})
	return err
}

// DrainAvatarAudio starts delivering the avatar's audio as RTP packets to
// fn. Requires an attached avatar audio track.
func (s *Session) DrainAvatarAudio(fn func(*rtp.Packet)) error {
	s.mu.Lock()
	av := s.avatar
	s.mu.Unlock()
	if av == nil {
		return &Error{Code: "no_media_session", Message: "no avatar media session"}
	}
	return av.drainAudio(fn)
}

// sdpEnvelope is the transport encoding for session descriptions exchanged
// over the control channel: JSON wrapped in base64. Both ends of the
// protocol share this encoding.
type sdpEnvelope struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

func encodeSessionDescription(desc *webrtc.SessionDescription) (string, error) {
	if desc == nil {
		return "", &Error{Code: "no_local_description", Message: "local description not set"}
	}
	raw, err := json.Marshal(sdpEnvelope{Type: desc.Type.String(), SDP: desc.SDP})
	if err != nil {
		return "", fmt.Errorf("voicelive: encode session description: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func decodeSessionDescription(encoded string) (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return desc, fmt.Errorf("voicelive: decode session description: %w", err)
	}
	var env sdpEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return desc, fmt.Errorf("voicelive: decode session description: %w", err)
	}
	desc.SDP = env.SDP
	desc.Type = webrtc.NewSDPType(env.Type)
	return desc, nil
}
