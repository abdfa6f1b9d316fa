package playback

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/haivivi/voicelive/go/pkg/audio/pcm"
)

// ErrStopped is returned when stopping a buffer that already finished.
var ErrStopped = errors.New("playback: buffer already stopped")

// WriterSink plays buffers by writing PCM16 bytes to an io.Writer when their
// scheduled start time arrives. It backs the voice-only output path, where a
// consumer drains the writer as a continuous stream.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink that writes scheduled PCM16 audio to w.
// Writes for distinct buffers never interleave.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Play schedules samples to be written after the given delay.
func (ws *WriterSink) Play(samples []float32, delay time.Duration) (Handle, error) {
	h := &writerHandle{sink: ws}
	if delay < 0 {
		delay = 0
	}
	h.timer = time.AfterFunc(delay, func() {
		h.fire(samples)
	})
	return h, nil
}

// Close releases the sink. The underlying writer is owned by the caller and
// is not closed.
func (ws *WriterSink) Close() error {
	return nil
}

func (ws *WriterSink) write(raw []byte) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.w != nil {
		_, _ = ws.w.Write(raw)
	}
}

type writerHandle struct {
	sink  *WriterSink
	mu    sync.Mutex
	timer *time.Timer
	done  bool
}

func (h *writerHandle) fire(samples []float32) {
	h.mu.Lock()
	if h.done {
		h.mu.Unlock()
		return
	}
	h.done = true
	h.mu.Unlock()
	h.sink.write(pcm.SamplesToBytes(samples))
}

// Stop cancels the pending write. Returns ErrStopped if the buffer already
// played or was stopped before.
func (h *writerHandle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return ErrStopped
	}
	h.done = true
	if h.timer != nil {
		h.timer.Stop()
	}
	return nil
}
