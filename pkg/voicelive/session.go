package voicelive

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/haivivi/voicelive/go/pkg/audio/capture"
	"github.com/haivivi/voicelive/go/pkg/audio/pcm"
	"github.com/haivivi/voicelive/go/pkg/audio/playback"
)

// Handlers are caller-supplied callbacks. Every field is optional; a nil
// handler is skipped. Handlers are invoked from the session's read loop and
// must not block.
type Handlers struct {
	// OnEvent observes every inbound frame verbatim, whether or not the
	// session acts on it.
	OnEvent func(*ServerEvent)

	// OnError receives transport and service-reported errors.
	OnError func(error)

	// OnStateChange receives connection state transitions.
	OnStateChange func(ConnState)

	// OnToolCall receives requested tool invocations. Delivery of the
	// result back to the service is the caller's responsibility, via
	// SubmitToolOutput.
	OnToolCall func(name, arguments, callID string)

	// OnVideoTrack / OnAudioTrack receive the avatar's remote media
	// tracks once negotiation attaches them.
	OnVideoTrack func(TrackRemote)
	OnAudioTrack func(TrackRemote)
}

// ConnectOptions configures one session establishment.
type ConnectOptions struct {
	// Session is the user session configuration, merged over the
	// defaults before transmission.
	Session *SessionOptions

	// Handlers are the caller's event callbacks.
	Handlers Handlers

	// AudioOut receives assistant audio as a continuous PCM16 stream in
	// voice-only mode. Ignored when an avatar is requested (audio then
	// arrives on the media channel). Defaults to discarding.
	AudioOut io.Writer

	// Capture, when set, is halted as the first step of Close.
	Capture *capture.Pipeline

	// Scheduler overrides the playback scheduler. Mainly for tests.
	Scheduler *playback.Scheduler
}

// Session is a live connection: the control channel, the session handshake
// state, and, when an avatar was granted, the media channel.
type Session struct {
	client   *Client
	handlers Handlers
	logger   Logger
	capture  *capture.Pipeline

	defaults *SessionOptions
	base     *SessionOptions
	avatarOn bool

	scheduler *playback.Scheduler

	mu      sync.Mutex
	conn    *websocket.Conn
	state   ConnState
	ready   bool
	turnID  string
	pending []map[string]any
	lastErr *Error
	avatar  *avatarSession

	closeOnce sync.Once
	closeCh   chan struct{}
	readDone  chan struct{}

	createdCh chan *ServerEvent
	updatedCh chan *ServerEvent
	avatarCh  chan *ServerEvent
}

// Connect opens the control channel, performs the session handshake and, if
// an avatar was requested and granted, negotiates the media channel. The
// returned session is ready to stream audio.
func (c *Client) Connect(ctx context.Context, opts *ConnectOptions) (*Session, error) {
	if opts == nil {
		opts = &ConnectOptions{}
	}

	// Resolve the target URL first: credential problems fail before any
	// connection attempt.
	target, err := c.connectionURL()
	if err != nil {
		return nil, err
	}

	defaults := DefaultSessionOptions()
	merged := merge(defaults, opts.Session)
	_, avatarOn := merged.Avatar.Get()

	s := &Session{
		client:    c,
		handlers:  opts.Handlers,
		logger:    c.config.logger,
		capture:   opts.Capture,
		defaults:  defaults,
		base:      opts.Session,
		avatarOn:  avatarOn,
		state:     StateDisconnected,
		closeCh:   make(chan struct{}),
		readDone:  make(chan struct{}),
		createdCh: make(chan *ServerEvent, 1),
		updatedCh: make(chan *ServerEvent, 1),
		avatarCh:  make(chan *ServerEvent, 1),
	}

	s.scheduler = opts.Scheduler
	if s.scheduler == nil {
		// Voice-only mode gets a stream sink up front; in avatar mode
		// assistant audio arrives on the media channel and the
		// scheduler exists only so barge-in stays uniform.
		out := opts.AudioOut
		if out == nil || avatarOn {
			out = io.Discard
		}
		s.scheduler = playback.NewScheduler(pcm.L16Mono24K,
			playback.WithSink(playback.NewWriterSink(out)))
	}

	s.setState(StateConnecting)

	conn, resp, err := c.config.dialer.DialContext(ctx, target, nil)
	if err != nil {
		s.setState(StateError)
		if resp != nil {
			return nil, &Error{
				Code:       "connection_failed",
				Message:    fmt.Sprintf("failed to connect: %v", err),
				HTTPStatus: resp.StatusCode,
			}
		}
		return nil, fmt.Errorf("voicelive: failed to connect: %w", err)
	}
	s.conn = conn
	s.setState(StateConnected)

	// Initialize the shared playback clock eagerly so the first audio
	// frame does not pay the startup cost.
	if err := s.scheduler.EnsureStarted(); err != nil {
		s.Close()
		return nil, err
	}

	go s.readLoop(conn)

	if err := s.handshake(ctx, merged); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// handshake drives the session establishment sequence: wait for
// session.created, transmit the descriptor, wait for session.updated, then
// negotiate avatar media if granted. Only then is the session marked ready.
func (s *Session) handshake(ctx context.Context, merged *SessionOptions) error {
	// The service requires the created acknowledgment before it accepts
	// configuration; never send the descriptor speculatively.
	if _, err := s.await(ctx, s.createdCh); err != nil {
		return err
	}

	var descriptor map[string]any
	if s.client.AgentMode() {
		descriptor = BuildAgentSession(s.defaults, s.base)
	} else {
		descriptor = BuildSession(s.defaults, s.base)
	}
	if err := s.sendEvent(map[string]any{
		"type":    EventTypeSessionUpdate,
		"session": descriptor,
	}); err != nil {
		return err
	}

	updated, err := s.await(ctx, s.updatedCh)
	if err != nil {
		return err
	}

	if updated.Session != nil && updated.Session.Avatar != nil {
		if err := s.negotiateAvatar(ctx, updated.Session.Avatar); err != nil {
			return err
		}
	}

	s.markReady()
	return nil
}

// negotiateAvatar runs the media negotiation sub-protocol against the
// granted ICE parameters.
func (s *Session) negotiateAvatar(ctx context.Context, grant *AvatarGrant) error {
	av, clientSDP, err := newAvatarSession(ctx, grant, avatarCallbacks{
		onVideoTrack: s.handlers.OnVideoTrack,
		onAudioTrack: s.handlers.OnAudioTrack,
		onFatal:      s.surfaceError,
		logger:       s.logger,
	})
	if err != nil {
		return err
	}

	if err := s.sendEvent(map[string]any{
		"type":       EventTypeSessionAvatarConnect,
		"client_sdp": clientSDP,
	}); err != nil {
		av.Close()
		return err
	}

	answer, err := s.await(ctx, s.avatarCh)
	if err != nil {
		av.Close()
		return err
	}
	if err := av.setRemoteDescription(answer.ServerSDP); err != nil {
		av.Close()
		return err
	}

	s.mu.Lock()
	s.avatar = av
	s.mu.Unlock()
	return nil
}

// await blocks until the given handshake signal arrives, the context is
// canceled, the session closes, or the read loop dies.
func (s *Session) await(ctx context.Context, ch <-chan *ServerEvent) (*ServerEvent, error) {
	select {
	case ev := <-ch:
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closeCh:
		return nil, &Error{Code: "connection_closed", Message: "session closed during handshake"}
	case <-s.readDone:
		if err := s.LastError(); err != nil {
			return nil, err
		}
		return nil, &Error{Code: "connection_closed", Message: "control channel closed during handshake"}
	}
}

// markReady flips the session to ready and flushes audio frames queued
// during the handshake window, in original order, exactly once.
func (s *Session) markReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return
	}
	s.ready = true
	pending := s.pending
	s.pending = nil
	for _, ev := range pending {
		if err := s.sendEventLocked(ev); err != nil {
			s.logger.WarnPrintf("flush queued audio: %v", err)
			return
		}
	}
}

// Ready reports whether the session handshake completed and audio may be
// streamed. Connected alone does not imply ready.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// State returns the connection state.
func (s *Session) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the most recent surfaced error, or nil.
func (s *Session) LastError() *Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ElapsedMs reports the playback position of the current assistant turn in
// milliseconds, for external lip-sync consumers. The second return is false
// before any audio of the turn has been scheduled.
func (s *Session) ElapsedMs() (float64, bool) {
	return s.scheduler.ElapsedMs()
}

// AvatarVideoTrack returns the avatar's remote video track, or nil.
func (s *Session) AvatarVideoTrack() TrackRemote {
	s.mu.Lock()
	av := s.avatar
	s.mu.Unlock()
	if av == nil {
		return nil
	}
	return av.videoTrack()
}

// AvatarAudioTrack returns the avatar's remote audio track, or nil.
func (s *Session) AvatarAudioTrack() TrackRemote {
	s.mu.Lock()
	av := s.avatar
	s.mu.Unlock()
	if av == nil {
		return nil
	}
	return av.audioTrack()
}

// === Outbound operations ===

// SendEvent transmits an arbitrary protocol event. All outbound traffic
// flows through this choke point: input_audio_buffer.append frames sent
// before the session is ready are queued and flushed on ready.
func (s *Session) SendEvent(event map[string]any) error {
	return s.sendEvent(event)
}

// AppendAudio appends a PCM16 frame to the service's input audio buffer.
func (s *Session) AppendAudio(frame []byte) error {
	return s.AppendAudioBase64(base64.StdEncoding.EncodeToString(frame))
}

// AppendAudioBase64 appends an already-encoded audio frame.
func (s *Session) AppendAudioBase64(audio string) error {
	return s.sendEvent(map[string]any{
		"type":  EventTypeInputAudioBufferAppend,
		"audio": audio,
	})
}

// CommitInput commits the input audio buffer, ending the user turn in
// manual turn-detection mode.
func (s *Session) CommitInput() error {
	return s.sendEvent(map[string]any{"type": EventTypeInputAudioBufferCommit})
}

// ClearInput discards the uncommitted input audio buffer.
func (s *Session) ClearInput() error {
	return s.sendEvent(map[string]any{"type": EventTypeInputAudioBufferClear})
}

// AddUserMessage adds a user text message to the conversation.
func (s *Session) AddUserMessage(text string) error {
	return s.sendEvent(map[string]any{
		"type": EventTypeConversationItemCreate,
		"item": map[string]any{
			"type": "message",
			"role": "user",
			"content": []map[string]any{
				{"type": "input_text", "text": text},
			},
		},
	})
}

// CreateResponse requests the model to generate a response.
func (s *Session) CreateResponse() error {
	return s.sendEvent(map[string]any{"type": EventTypeResponseCreate})
}

// CancelResponse cancels the in-progress response.
func (s *Session) CancelResponse() error {
	return s.sendEvent(map[string]any{"type": EventTypeResponseCancel})
}

// SubmitToolOutput delivers a tool invocation result back to the service
// and asks for the follow-up response.
func (s *Session) SubmitToolOutput(callID, output string) error {
	if err := s.sendEvent(map[string]any{
		"type": EventTypeConversationItemCreate,
		"item": map[string]any{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  output,
		},
	}); err != nil {
		return err
	}
	return s.CreateResponse()
}

// UpdateSession rebuilds the wire descriptor from
// defaults + session config + the given partial update and transmits it.
// The descriptor is always rebuilt from scratch, never patched in place.
func (s *Session) UpdateSession(update *SessionOptions) error {
	base := merge(s.defaults, s.base)
	var descriptor map[string]any
	if s.client.AgentMode() {
		descriptor = BuildAgentSession(base, update)
	} else {
		descriptor = BuildSession(base, update)
	}
	return s.sendEvent(map[string]any{
		"type":    EventTypeSessionUpdate,
		"session": descriptor,
	})
}

func (s *Session) sendEvent(event map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendEventLocked(event)
}

func (s *Session) sendEventLocked(event map[string]any) error {
	if s.conn == nil {
		return &Error{Code: "connection_closed", Message: "session is closed"}
	}

	if !s.ready && event["type"] == EventTypeInputAudioBufferAppend {
		s.pending = append(s.pending, event)
		return nil
	}

	if _, ok := event["event_id"]; !ok {
		event["event_id"] = generateEventID()
	}

	if jsonBytes, err := json.Marshal(event); err == nil {
		str := string(jsonBytes)
		if len(str) > 500 {
			str = str[:500] + "..."
		}
		s.logger.DebugPrintf("sending event: %s", str)
	}

	return s.conn.WriteJSON(event)
}

// generateEventID generates a unique outbound event ID.
func generateEventID() string {
	return "evt_" + uuid.New().String()[:12]
}

// === Inbound path ===

func (s *Session) readLoop(conn *websocket.Conn) {
	defer close(s.readDone)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closeCh:
				// Deliberate teardown; not an error.
			default:
				s.surfaceError(&Error{
					Code:    "transport_error",
					Message: fmt.Sprintf("control channel read: %v", err),
				})
				s.setState(StateError)
			}
			return
		}

		var event ServerEvent
		if err := json.Unmarshal(message, &event); err != nil {
			s.logger.WarnPrintf("dropping malformed frame: %v", err)
			continue
		}
		event.Raw = message

		s.dispatch(&event)
	}
}

// dispatch routes one inbound event. Unknown event types are no-ops, never
// errors; every frame is additionally forwarded to the observer.
func (s *Session) dispatch(ev *ServerEvent) {
	if h := s.handlers.OnEvent; h != nil {
		h(ev)
	}

	switch ev.Type {
	case EventTypeSessionCreated:
		s.signal(s.createdCh, ev)

	case EventTypeSessionUpdated:
		s.signal(s.updatedCh, ev)

	case EventTypeSessionAvatarConnecting:
		s.signal(s.avatarCh, ev)

	case EventTypeResponseCreated:
		s.mu.Lock()
		s.turnID = ev.TurnID()
		s.mu.Unlock()
		s.scheduler.ResetTurn()

	case EventTypeInputAudioBufferSpeechStarted:
		// Barge-in: the user started speaking, cut local playback
		// immediately. The service owns conversation-history
		// truncation.
		s.scheduler.StopAll()

	case EventTypeResponseAudioDelta:
		s.handleAudioDelta(ev)

	case EventTypeResponseAudioDone:
		s.scheduler.ResetTurn()

	case EventTypeResponseFunctionCallArgumentsDone:
		if h := s.handlers.OnToolCall; h != nil {
			// Fire and forget; the result comes back through
			// SubmitToolOutput at the caller's discretion.
			go h(ev.Name, ev.Arguments, ev.CallID)
		}

	case EventTypeError:
		// Service-reported errors do not close the connection; the
		// service may continue after a recoverable error.
		s.surfaceError(ev.Error.ToError())
	}
}

func (s *Session) handleAudioDelta(ev *ServerEvent) {
	// In avatar mode assistant audio rides the media channel; the mode is
	// decided at session build time, not inferred from transient track
	// presence, so a frame can never be scheduled through both paths.
	if s.avatarOn {
		return
	}

	s.mu.Lock()
	current := s.turnID
	s.mu.Unlock()

	// Chunks for a just-interrupted turn can keep arriving briefly after
	// the next turn starts; filter per chunk, not per turn.
	if current == "" || ev.TurnID() != current {
		s.logger.DebugPrintf("dropping stale audio delta for turn %q", ev.TurnID())
		return
	}

	if err := s.scheduler.Enqueue(ev.Delta); err != nil {
		// Malformed audio must not crash the playback path; drop the
		// offending chunk only.
		s.logger.WarnPrintf("dropping audio delta: %v", err)
	}
}

// signal delivers a one-shot handshake event without blocking the read loop.
func (s *Session) signal(ch chan *ServerEvent, ev *ServerEvent) {
	select {
	case ch <- ev:
	default:
	}
}

func (s *Session) surfaceError(err *Error) {
	s.mu.Lock()
	s.lastErr = err
	h := s.handlers.OnError
	s.mu.Unlock()
	s.logger.ErrorPrintf("%v", err)
	if h != nil {
		h(err)
	}
}

func (s *Session) setState(state ConnState) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	h := s.handlers.OnStateChange
	s.mu.Unlock()
	if h != nil {
		h(state)
	}
}

// Close tears the session down: capture halted, playback stopped and its
// clock released, control channel closed, media peer connection closed,
// stream references cleared. It is idempotent and safe to call from any
// state; no step panics when an earlier resource was never initialized.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		if s.closeCh != nil {
			close(s.closeCh)
		}
		if s.capture != nil {
			s.capture.Stop()
		}
		if s.scheduler != nil {
			s.scheduler.StopAll()
			if err := s.scheduler.Close(); err != nil {
				s.logger.DebugPrintf("close playback: %v", err)
			}
		}

		s.mu.Lock()
		conn := s.conn
		av := s.avatar
		s.conn = nil
		s.avatar = nil
		s.pending = nil
		s.ready = false
		s.mu.Unlock()

		if conn != nil {
			conn.Close()
		}
		if av != nil {
			av.Close()
		}
	})
	s.setState(StateDisconnected)
	return nil
}
