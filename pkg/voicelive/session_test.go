package voicelive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haivivi/voicelive/go/pkg/audio/pcm"
	"github.com/haivivi/voicelive/go/pkg/audio/playback"
)

// === Test doubles ===

// stubClock is a manually set playback clock.
type stubClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *stubClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// recordSink records audio scheduled through the playback path.
type recordSink struct {
	mu      sync.Mutex
	plays   int
	stopped int
}

type recordHandle struct{ sink *recordSink }

func (h *recordHandle) Stop() error {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	h.sink.stopped++
	return nil
}

func (s *recordSink) Play(samples []float32, delay time.Duration) (playback.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays++
	return &recordHandle{sink: s}, nil
}

func (s *recordSink) Close() error { return nil }

func (s *recordSink) playCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays
}

func (s *recordSink) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func testScheduler(sink *recordSink) *playback.Scheduler {
	return playback.NewScheduler(pcm.L16Mono24K,
		playback.WithClock(&stubClock{}),
		playback.WithSink(sink))
}

// === Fake service ===

var testUpgrader = websocket.Upgrader{}

// fakeService runs a scripted control-channel peer. The script receives the
// server side of the connection and drives the protocol.
type fakeService struct {
	srv *httptest.Server
}

func newFakeService(t *testing.T, script func(conn *websocket.Conn)) *fakeService {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		script(conn)
	}))
	t.Cleanup(srv.Close)
	return &fakeService{srv: srv}
}

func (f *fakeService) client(opts ...Option) *Client {
	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http")
	opts = append([]Option{WithProxyURL(wsURL), WithLogger(NopLogger())}, opts...)
	return NewClient(opts...)
}

// handshakeScript performs the created/update/updated exchange and hands the
// connection to next. It records the descriptor the client transmitted.
func handshakeScript(t *testing.T, gotDescriptor chan<- map[string]any, next func(conn *websocket.Conn)) func(conn *websocket.Conn) {
	return func(conn *websocket.Conn) {
		if err := conn.WriteJSON(map[string]any{
			"type":    EventTypeSessionCreated,
			"session": map[string]any{"id": "sess_1"},
		}); err != nil {
			return
		}

		var update map[string]any
		if err := conn.ReadJSON(&update); err != nil {
			return
		}
		if gotDescriptor != nil {
			gotDescriptor <- update
		}

		if err := conn.WriteJSON(map[string]any{
			"type":    EventTypeSessionUpdated,
			"session": map[string]any{"id": "sess_1"},
		}); err != nil {
			return
		}

		if next != nil {
			next(conn)
		}
	}
}

// hold keeps the server side open until the client disconnects.
func hold(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// === Connect / handshake ===

func TestConnectHandshake(t *testing.T) {
	descriptor := make(chan map[string]any, 1)
	svc := newFakeService(t, handshakeScript(t, descriptor, hold))

	var states []ConnState
	var stateMu sync.Mutex

	sink := &recordSink{}
	s, err := svc.client().Connect(testCtx(t), &ConnectOptions{
		Scheduler: testScheduler(sink),
		Handlers: Handlers{
			OnStateChange: func(st ConnState) {
				stateMu.Lock()
				states = append(states, st)
				stateMu.Unlock()
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if !s.Ready() {
		t.Error("session not ready after Connect")
	}
	if got := s.State(); got != StateConnected {
		t.Errorf("state = %v, want %v", got, StateConnected)
	}

	stateMu.Lock()
	if len(states) < 2 || states[0] != StateConnecting || states[1] != StateConnected {
		t.Errorf("state transitions = %v", states)
	}
	stateMu.Unlock()

	update := <-descriptor
	if update["type"] != EventTypeSessionUpdate {
		t.Errorf("first client frame type = %v", update["type"])
	}
	id, _ := update["event_id"].(string)
	if !strings.HasPrefix(id, "evt_") {
		t.Errorf("event_id = %q", id)
	}
	sess, _ := update["session"].(map[string]any)
	if sess == nil {
		t.Fatal("no session payload in session.update")
	}
	if _, present := sess["turn_detection"]; !present {
		t.Error("descriptor missing turn_detection defaults")
	}
}

func TestConnectFailsFastOnMissingAgentToken(t *testing.T) {
	// No server: credential resolution must fail before any dial.
	c := NewClient(
		WithAgent("https://a.example.com", "asst_1", "proj", ""),
		WithLogger(NopLogger()),
	)
	_, err := c.Connect(testCtx(t), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	verr, ok := err.(*Error)
	if !ok || verr.Code != "missing_agent_token" {
		t.Errorf("error = %v", err)
	}
}

func TestConnectContextCancelDuringHandshake(t *testing.T) {
	// Server never sends session.created.
	svc := newFakeService(t, hold)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := svc.client().Connect(ctx, &ConnectOptions{Scheduler: testScheduler(&recordSink{})})
	if err == nil {
		t.Fatal("expected handshake timeout")
	}
}

func TestConnectDialFailure(t *testing.T) {
	c := NewClient(WithProxyURL("ws://127.0.0.1:1/nope"), WithLogger(NopLogger()))
	if _, err := c.Connect(testCtx(t), nil); err == nil {
		t.Fatal("expected dial error")
	}
}

// === Pre-ready queuing ===

func TestPreReadyAudioIsQueuedAndFlushedInOrder(t *testing.T) {
	received := make(chan map[string]any, 16)
	svc := newFakeService(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]any{"type": EventTypeSessionCreated})
		for {
			var ev map[string]any
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			received <- ev
			if ev["type"] == EventTypeSessionUpdate {
				_ = conn.WriteJSON(map[string]any{"type": EventTypeSessionUpdated})
			}
		}
	})

	s, err := svc.client().Connect(testCtx(t), &ConnectOptions{Scheduler: testScheduler(&recordSink{})})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	// Simulate the handshake window: not ready, appends must queue while
	// control events pass through.
	s.mu.Lock()
	s.ready = false
	s.mu.Unlock()

	for _, frame := range []string{"YQ==", "Yg==", "Yw=="} {
		if err := s.AppendAudioBase64(frame); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.CreateResponse(); err != nil {
		t.Fatal(err)
	}

	// The control event arrives; the queued appends must not precede it.
	ev := nextEvent(t, received, EventTypeSessionUpdate)
	if ev["type"] == EventTypeInputAudioBufferAppend {
		t.Fatal("append sent before ready")
	}

	s.markReady()

	// Flushed exactly once, in original order.
	for _, want := range []string{"YQ==", "Yg==", "Yw=="} {
		ev := nextEvent(t, received, "")
		if ev["type"] != EventTypeInputAudioBufferAppend {
			t.Fatalf("flushed frame type = %v", ev["type"])
		}
		if ev["audio"] != want {
			t.Errorf("flushed audio = %v, want %v", ev["audio"], want)
		}
	}

	// A second markReady must not replay the queue.
	s.markReady()
	if err := s.CommitInput(); err != nil {
		t.Fatal(err)
	}
	ev = nextEvent(t, received, "")
	if ev["type"] != EventTypeInputAudioBufferCommit {
		t.Errorf("got %v after duplicate markReady, want commit", ev["type"])
	}
}

// nextEvent receives the next server-side frame, skipping until after the
// given type when skipUntil is non-empty.
func nextEvent(t *testing.T, ch <-chan map[string]any, skipUntil string) map[string]any {
	t.Helper()
	for {
		select {
		case ev := <-ch:
			if skipUntil != "" {
				if ev["type"] == skipUntil {
					skipUntil = ""
					continue
				}
				continue
			}
			return ev
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for server-side frame")
		}
	}
}

// === Dispatch ===

// newDispatchSession builds a minimal session for exercising dispatch
// without a network connection.
func newDispatchSession(sink *recordSink) *Session {
	return &Session{
		client:    NewClient(WithLogger(NopLogger())),
		logger:    NopLogger(),
		scheduler: testScheduler(sink),
		state:     StateConnected,
		closeCh:   make(chan struct{}),
		readDone:  make(chan struct{}),
		createdCh: make(chan *ServerEvent, 1),
		updatedCh: make(chan *ServerEvent, 1),
		avatarCh:  make(chan *ServerEvent, 1),
	}
}

func audioDelta(turnID string, samples int) *ServerEvent {
	return &ServerEvent{
		Type:       EventTypeResponseAudioDelta,
		ResponseID: turnID,
		Delta:      pcm.EncodeBase64(make([]byte, samples*2)),
	}
}

func TestDispatchSchedulesCurrentTurnAudio(t *testing.T) {
	sink := &recordSink{}
	s := newDispatchSession(sink)

	s.dispatch(&ServerEvent{
		Type:     EventTypeResponseCreated,
		Response: &ResponseResource{ID: "resp_1"},
	})
	s.dispatch(audioDelta("resp_1", 2400))
	s.dispatch(audioDelta("resp_1", 2400))

	if got := sink.playCount(); got != 2 {
		t.Errorf("scheduled %d buffers, want 2", got)
	}
}

func TestDispatchDropsStaleTurnAudio(t *testing.T) {
	sink := &recordSink{}
	s := newDispatchSession(sink)

	s.dispatch(&ServerEvent{Type: EventTypeResponseCreated, Response: &ResponseResource{ID: "resp_2"}})
	s.dispatch(audioDelta("resp_1", 2400)) // stale turn
	s.dispatch(audioDelta("", 2400))       // no turn id

	if got := sink.playCount(); got != 0 {
		t.Errorf("scheduled %d stale buffers, want 0", got)
	}

	// Audio before any response.created is dropped too.
	s2 := newDispatchSession(sink)
	s2.dispatch(audioDelta("resp_1", 2400))
	if got := sink.playCount(); got != 0 {
		t.Errorf("scheduled audio before first turn")
	}
}

func TestDispatchBargeInStopsPlayback(t *testing.T) {
	sink := &recordSink{}
	s := newDispatchSession(sink)

	s.dispatch(&ServerEvent{Type: EventTypeResponseCreated, Response: &ResponseResource{ID: "resp_1"}})
	s.dispatch(audioDelta("resp_1", 2400))
	s.dispatch(audioDelta("resp_1", 2400))

	s.dispatch(&ServerEvent{Type: EventTypeInputAudioBufferSpeechStarted, AudioStartMs: 120})

	if got := sink.stopCount(); got != 2 {
		t.Errorf("stopped %d buffers on barge-in, want 2", got)
	}
}

func TestDispatchAvatarModeIgnoresAudioDeltas(t *testing.T) {
	sink := &recordSink{}
	s := newDispatchSession(sink)
	s.avatarOn = true

	s.dispatch(&ServerEvent{Type: EventTypeResponseCreated, Response: &ResponseResource{ID: "resp_1"}})
	s.dispatch(audioDelta("resp_1", 2400))

	if got := sink.playCount(); got != 0 {
		t.Errorf("avatar mode scheduled %d buffers on the control path", got)
	}
}

func TestDispatchMalformedAudioDropsChunkOnly(t *testing.T) {
	sink := &recordSink{}
	s := newDispatchSession(sink)

	s.dispatch(&ServerEvent{Type: EventTypeResponseCreated, Response: &ResponseResource{ID: "resp_1"}})
	s.dispatch(&ServerEvent{Type: EventTypeResponseAudioDelta, ResponseID: "resp_1", Delta: "!!!"})
	s.dispatch(audioDelta("resp_1", 2400))

	if got := sink.playCount(); got != 1 {
		t.Errorf("scheduled %d buffers, want 1 (malformed chunk dropped)", got)
	}
}

func TestDispatchUnknownEventIsNoop(t *testing.T) {
	var observed []string
	sink := &recordSink{}
	s := newDispatchSession(sink)
	s.handlers.OnEvent = func(ev *ServerEvent) { observed = append(observed, ev.Type) }

	s.dispatch(&ServerEvent{Type: "response.text.delta", Delta: "hi"})
	s.dispatch(&ServerEvent{Type: "some.future.event"})

	if len(observed) != 2 {
		t.Errorf("observer saw %d events, want 2", len(observed))
	}
	if s.LastError() != nil {
		t.Error("unknown event surfaced an error")
	}
}

func TestDispatchServiceErrorDoesNotClose(t *testing.T) {
	sink := &recordSink{}
	s := newDispatchSession(sink)

	errCh := make(chan error, 1)
	s.handlers.OnError = func(err error) { errCh <- err }

	s.dispatch(&ServerEvent{
		Type: EventTypeError,
		Error: &EventError{
			Type:    "invalid_request_error",
			Code:    "invalid_event",
			Message: "bad frame",
		},
	})

	select {
	case err := <-errCh:
		verr, ok := err.(*Error)
		if !ok || verr.Code != "invalid_event" {
			t.Errorf("surfaced error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("OnError not invoked")
	}

	if got := s.State(); got != StateConnected {
		t.Errorf("state = %v after service error, want %v", got, StateConnected)
	}
	if s.LastError() == nil {
		t.Error("LastError not recorded")
	}
}

func TestDispatchMalformedErrorPayload(t *testing.T) {
	sink := &recordSink{}
	s := newDispatchSession(sink)

	s.dispatch(&ServerEvent{Type: EventTypeError}) // no error payload

	if err := s.LastError(); err == nil || err.Message == "" {
		t.Errorf("placeholder error = %v", err)
	}
}

func TestDispatchToolCall(t *testing.T) {
	sink := &recordSink{}
	s := newDispatchSession(sink)

	type call struct{ name, args, id string }
	got := make(chan call, 1)
	s.handlers.OnToolCall = func(name, args, id string) {
		got <- call{name, args, id}
	}

	s.dispatch(&ServerEvent{
		Type:      EventTypeResponseFunctionCallArgumentsDone,
		Name:      "get_weather",
		Arguments: `{"city":"Oslo"}`,
		CallID:    "call_1",
	})

	select {
	case c := <-got:
		if c.name != "get_weather" || c.id != "call_1" || c.args != `{"city":"Oslo"}` {
			t.Errorf("tool call = %+v", c)
		}
	case <-time.After(time.Second):
		t.Fatal("OnToolCall not invoked")
	}
}

// === Outbound helpers ===

func TestOutboundEventShapes(t *testing.T) {
	received := make(chan map[string]any, 16)
	svc := newFakeService(t, handshakeScript(t, nil, func(conn *websocket.Conn) {
		for {
			var ev map[string]any
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			received <- ev
		}
	}))

	s, err := svc.client().Connect(testCtx(t), &ConnectOptions{Scheduler: testScheduler(&recordSink{})})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.AddUserMessage("hello"); err != nil {
		t.Fatal(err)
	}
	ev := nextEvent(t, received, "")
	if ev["type"] != EventTypeConversationItemCreate {
		t.Fatalf("type = %v", ev["type"])
	}
	item := ev["item"].(map[string]any)
	if item["role"] != "user" {
		t.Errorf("item.role = %v", item["role"])
	}

	if err := s.SubmitToolOutput("call_1", `{"ok":true}`); err != nil {
		t.Fatal(err)
	}
	ev = nextEvent(t, received, "")
	item = ev["item"].(map[string]any)
	if item["type"] != "function_call_output" || item["call_id"] != "call_1" {
		t.Errorf("tool output item = %v", item)
	}
	ev = nextEvent(t, received, "")
	if ev["type"] != EventTypeResponseCreate {
		t.Errorf("tool output not followed by response.create, got %v", ev["type"])
	}

	if err := s.UpdateSession(&SessionOptions{Voice: VoiceNamed("en-US-AvaNeural")}); err != nil {
		t.Fatal(err)
	}
	ev = nextEvent(t, received, "")
	if ev["type"] != EventTypeSessionUpdate {
		t.Fatalf("type = %v", ev["type"])
	}
	sess := ev["session"].(map[string]any)
	voice := sess["voice"].(map[string]any)
	if voice["name"] != "en-US-AvaNeural" {
		t.Errorf("voice = %v", voice)
	}
	// Rebuilt from scratch: defaults still present alongside the update.
	if _, present := sess["turn_detection"]; !present {
		t.Error("rebuilt descriptor lost defaults")
	}
}

// === Close ===

func TestCloseIsIdempotent(t *testing.T) {
	svc := newFakeService(t, handshakeScript(t, nil, hold))

	s, err := svc.client().Connect(testCtx(t), &ConnectOptions{Scheduler: testScheduler(&recordSink{})})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if got := s.State(); got != StateDisconnected {
		t.Errorf("state = %v after Close", got)
	}

	// Sends after close fail cleanly.
	if err := s.CreateResponse(); err == nil {
		t.Error("send after Close succeeded")
	}
}

func TestCloseZeroValueSession(t *testing.T) {
	var s *Session
	if err := s.Close(); err != nil {
		t.Errorf("nil session Close = %v", err)
	}
}

func TestServerEventTurnID(t *testing.T) {
	ev := &ServerEvent{ResponseID: "a", Response: &ResponseResource{ID: "b"}}
	if got := ev.TurnID(); got != "a" {
		t.Errorf("TurnID = %q, want response_id to win", got)
	}
	ev = &ServerEvent{Response: &ResponseResource{ID: "b"}}
	if got := ev.TurnID(); got != "b" {
		t.Errorf("TurnID = %q", got)
	}
	if got := (&ServerEvent{}).TurnID(); got != "" {
		t.Errorf("TurnID = %q, want empty", got)
	}
}

func TestServerEventParsing(t *testing.T) {
	raw := []byte(`{
		"type": "response.audio.delta",
		"event_id": "evt_srv_1",
		"response_id": "resp_9",
		"delta": "AAAA"
	}`)
	var ev ServerEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != EventTypeResponseAudioDelta || ev.ResponseID != "resp_9" || ev.Delta != "AAAA" {
		t.Errorf("parsed = %+v", ev)
	}
}
