// Package voicelive provides a client for a real-time, bidirectional
// voice/avatar conversation service.
//
// The service is reached over a WebSocket control channel carrying JSON
// protocol events; when an avatar is requested, a WebRTC peer connection
// additionally carries the avatar's video and audio tracks.
//
// # Connecting
//
// Direct mode authenticates with a resource endpoint and API key:
//
//	client := voicelive.NewClient(
//	    voicelive.WithResourceKey("https://my-resource.example.com", apiKey),
//	    voicelive.WithModel("gpt-4o-realtime-preview"),
//	)
//	session, err := client.Connect(ctx, &voicelive.ConnectOptions{
//	    Session: &voicelive.SessionOptions{
//	        Instructions: voicelive.Value("You are a helpful assistant."),
//	        Voice:        voicelive.VoiceNamed("en-US-AvaNeural"),
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
// Agent mode authenticates with an agent id, project name and bearer token;
// instructions, temperature and tools are owned server-side in that mode.
// A caller-supplied proxy URL bypasses URL construction entirely.
//
// # Audio
//
// Microphone frames are PCM16 mono at the negotiated sample rate:
//
//	session.AppendAudio(frame)
//
// Frames sent before the session handshake completes are queued and flushed
// in order once the session is ready. Assistant audio arrives as
// response.audio.delta events and is scheduled for gapless playback; when the
// service reports user speech during an assistant turn, local playback stops
// immediately (barge-in).
package voicelive
