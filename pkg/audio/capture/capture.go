// Package capture acquires microphone audio, frames it into fixed-size PCM16
// frames and delivers them to a callback. The pipeline is pausable,
// resumable and idempotently stoppable.
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/haivivi/voicelive/go/pkg/audio/pcm"
)

// DefaultFrameDuration is the duration of each delivered frame.
const DefaultFrameDuration = 20 * time.Millisecond

// Device is an audio input device (microphone).
type Device interface {
	// Open acquires the device and starts capture at its native format.
	Open() (Stream, error)
}

// Stream is an open capture stream delivering raw PCM16 bytes.
type Stream interface {
	io.ReadCloser

	// Format reports the stream's native PCM format.
	Format() pcm.Format
}

// Config configures a capture Pipeline.
type Config struct {
	// Device is the input device to capture from. Required.
	Device Device

	// Format is the format frames are delivered in. When the device's
	// native rate differs, audio is resampled.
	Format pcm.Format

	// FrameDuration is the fixed duration of each frame.
	// Default: DefaultFrameDuration.
	FrameDuration time.Duration

	// OnFrame receives each captured frame as raw PCM16 bytes. The slice
	// is only valid for the duration of the call. Required.
	OnFrame func(frame []byte)
}

// Pipeline captures audio frames from a device.
type Pipeline struct {
	cfg        Config
	frameBytes int

	mu      sync.Mutex
	stream  Stream
	rs      resampling.Resampler
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool

	paused atomic.Bool
}

// New creates a capture Pipeline. Start must be called before frames are
// delivered.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Device == nil {
		return nil, errors.New("capture: device is required")
	}
	if cfg.OnFrame == nil {
		return nil, errors.New("capture: frame callback is required")
	}
	if cfg.FrameDuration <= 0 {
		cfg.FrameDuration = DefaultFrameDuration
	}
	return &Pipeline{
		cfg:        cfg,
		frameBytes: int(cfg.Format.BytesInDuration(cfg.FrameDuration)),
	}, nil
}

// Start acquires the device and begins delivering frames. On failure every
// partially-acquired resource is released before the error is returned.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("capture: already started")
	}

	stream, err := p.cfg.Device.Open()
	if err != nil {
		return fmt.Errorf("capture: open device: %w", err)
	}

	var rs resampling.Resampler
	if stream.Format().SampleRate() != p.cfg.Format.SampleRate() {
		rs, err = resampling.New(&resampling.Config{
			InputRate:  float64(stream.Format().SampleRate()),
			OutputRate: float64(p.cfg.Format.SampleRate()),
			Channels:   p.cfg.Format.Channels(),
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		})
		if err != nil {
			stream.Close()
			return fmt.Errorf("capture: create resampler: %w", err)
		}
	}

	p.stream = stream
	p.rs = rs
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.started = true
	p.paused.Store(false)

	go p.readLoop(stream, rs, p.stopCh, p.doneCh)
	return nil
}

// Pause suspends frame delivery without releasing the device. Captured audio
// while paused is discarded.
func (p *Pipeline) Pause() {
	p.paused.Store(true)
}

// Resume resumes frame delivery after Pause.
func (p *Pipeline) Resume() {
	p.paused.Store(false)
}

// Stop releases all acquired resources. It is idempotent: calling it twice,
// or without a prior Start, is a no-op.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stopCh)
	stream := p.stream
	done := p.doneCh
	p.stream = nil
	p.rs = nil
	p.mu.Unlock()

	stream.Close()
	<-done
}

func (p *Pipeline) readLoop(stream Stream, rs resampling.Resampler, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	// Read in the device's native framing; resampled output is re-framed
	// to the configured fixed frame size before delivery.
	nativeBytes := int(stream.Format().BytesInDuration(p.cfg.FrameDuration))
	readBuf := make([]byte, nativeBytes)
	var pending []byte

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		n, err := io.ReadFull(stream, readBuf)
		if n > 0 {
			out := readBuf[:n]
			if rs != nil {
				out = resample(rs, out)
			}
			pending = append(pending, out...)
			for len(pending) >= p.frameBytes {
				frame := pending[:p.frameBytes]
				if !p.paused.Load() {
					p.cfg.OnFrame(frame)
				}
				pending = pending[p.frameBytes:]
			}
		}
		if err != nil {
			return
		}
	}
}

func resample(rs resampling.Resampler, raw []byte) []byte {
	samples := pcm.BytesToInt16(raw)
	in := make([]float64, len(samples))
	for i, s := range samples {
		in[i] = float64(s) / 32768
	}
	out, err := rs.Process(in)
	if err != nil {
		return nil
	}
	converted := make([]int16, len(out))
	for i, v := range out {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		converted[i] = int16(v * 32767)
	}
	return pcm.Int16ToBytes(converted)
}
