// Package playback schedules decoded PCM16 frames on a shared clock for
// gapless, strictly-ordered playback, with immediate stop for barge-in.
package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/haivivi/voicelive/go/pkg/audio/pcm"
)

// Handle identifies one scheduled buffer. Stop halts the buffer; stopping a
// buffer that already finished returns ErrStopped.
type Handle interface {
	Stop() error
}

// Sink plays sample buffers. Play schedules samples to start after the given
// delay relative to the call. Exactly one sink is active per Scheduler.
type Sink interface {
	Play(samples []float32, delay time.Duration) (Handle, error)
	Close() error
}

// Scheduler decodes base64 PCM16 frames and schedules them for sequential
// playback. Frames are scheduled in arrival order; the scheduler never
// reorders, it only places each buffer at max(clock now, cursor) and advances
// the cursor by the buffer's duration.
//
// It is safe to call methods on Scheduler from multiple goroutines.
type Scheduler struct {
	format  pcm.Format
	newSink func() (Sink, error)

	mu           sync.Mutex
	clock        Clock
	sink         Sink
	cursor       time.Duration
	turnStart    time.Duration
	hasTurnStart bool
	handles      []scheduled
}

// scheduled pairs a sink handle with the time its buffer finishes on the
// playback clock, so finished entries can be pruned.
type scheduled struct {
	handle Handle
	end    time.Duration
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the playback clock. Defaults to a monotonic wall clock
// created on first use.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithSink sets the output sink directly.
func WithSink(sink Sink) Option {
	return func(s *Scheduler) { s.sink = sink }
}

// WithSinkFactory sets a factory used to create the sink lazily on first
// enqueue (or on EnsureStarted).
func WithSinkFactory(fn func() (Sink, error)) Option {
	return func(s *Scheduler) { s.newSink = fn }
}

// NewScheduler creates a Scheduler for the given output format.
func NewScheduler(format pcm.Format, opts ...Option) *Scheduler {
	s := &Scheduler{format: format}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureStarted initializes the shared clock and the sink if they do not
// exist yet. Called eagerly when a connection opens so the first frame does
// not pay the initialization cost.
func (s *Scheduler) EnsureStarted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureStartedLocked()
}

func (s *Scheduler) ensureStartedLocked() error {
	if s.clock == nil {
		s.clock = NewClock()
	}
	if s.sink == nil {
		if s.newSink == nil {
			return fmt.Errorf("playback: no sink configured")
		}
		sink, err := s.newSink()
		if err != nil {
			return fmt.Errorf("playback: create sink: %w", err)
		}
		s.sink = sink
	}
	return nil
}

// Enqueue decodes a base64 PCM16 frame and schedules it after all previously
// scheduled audio. An empty frame is a no-op. Returns an error for malformed
// base64 or a failed sink; the caller decides whether to drop the frame.
func (s *Scheduler) Enqueue(base64PCM16 string) error {
	samples, err := pcm.DecodeBase64(base64PCM16)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureStartedLocked(); err != nil {
		return err
	}

	now := s.clock.Now()
	start := s.cursor
	if now > start {
		// Clock passed the cursor (long gap since the last frame);
		// fall back to immediate playback.
		start = now
	}
	if !s.hasTurnStart {
		s.turnStart = start
		s.hasTurnStart = true
	}

	handle, err := s.sink.Play(samples, start-now)
	if err != nil {
		return fmt.Errorf("playback: schedule: %w", err)
	}
	end := start + s.format.DurationOfSamples(len(samples))
	s.pruneLocked(now)
	s.handles = append(s.handles, scheduled{handle: handle, end: end})
	s.cursor = end
	return nil
}

// pruneLocked drops entries whose buffers have finished playing.
func (s *Scheduler) pruneLocked(now time.Duration) {
	kept := s.handles[:0]
	for _, sc := range s.handles {
		if sc.end > now {
			kept = append(kept, sc)
		}
	}
	s.handles = kept
}

// StopAll immediately halts every scheduled or playing buffer, clears the
// pending list and resets the cursor. This is the barge-in path; it is safe
// to call at any time, including with nothing enqueued.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sc := range s.handles {
		// Buffers that already finished report ErrStopped; that is an
		// expected race, not a failure.
		_ = sc.handle.Stop()
	}
	s.handles = nil
	s.cursor = 0
	s.hasTurnStart = false
}

// ResetTurn resets cursor tracking for the next response turn. Buffers that
// are still scheduled or draining keep playing and remain stoppable: a later
// StopAll halts them.
func (s *Scheduler) ResetTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = 0
	s.hasTurnStart = false
}

// ElapsedMs reports the playback position in milliseconds relative to the
// start of the current turn. The second return is false before the first
// buffer of a turn has been scheduled.
func (s *Scheduler) ElapsedMs() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clock == nil || !s.hasTurnStart {
		return 0, false
	}
	elapsed := s.clock.Now() - s.turnStart
	if elapsed < 0 {
		elapsed = 0
	}
	return float64(elapsed) / float64(time.Millisecond), true
}

// Cursor returns the next scheduling time on the playback clock.
func (s *Scheduler) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Close stops all playback and releases the sink and clock. The scheduler
// must not be used after Close.
func (s *Scheduler) Close() error {
	s.StopAll()

	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.sink != nil {
		err = s.sink.Close()
		s.sink = nil
	}
	s.clock = nil
	return err
}
