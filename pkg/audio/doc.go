// Package audio provides the audio processing utilities behind realtime
// voice sessions.
//
// This package serves as an umbrella for audio-related sub-packages:
//
//   - pcm: PCM format math and the base64 PCM16 wire codec
//   - capture: microphone acquisition, framing and resampling
//   - playback: gapless scheduling of decoded audio on a shared clock
//
// Example usage:
//
//	import (
//	    "github.com/haivivi/voicelive/go/pkg/audio/pcm"
//	    "github.com/haivivi/voicelive/go/pkg/audio/playback"
//	)
//
//	format := pcm.L16Mono24K
//	scheduler := playback.NewScheduler(format,
//	    playback.WithSink(playback.NewWriterSink(out)))
package audio
