package voicelive

// Client event types (sent from client to server).
const (
	EventTypeSessionUpdate          = "session.update"
	EventTypeSessionAvatarConnect   = "session.avatar.connect"
	EventTypeInputAudioBufferAppend = "input_audio_buffer.append"
	EventTypeInputAudioBufferCommit = "input_audio_buffer.commit"
	EventTypeInputAudioBufferClear  = "input_audio_buffer.clear"
	EventTypeConversationItemCreate = "conversation.item.create"
	EventTypeResponseCreate         = "response.create"
	EventTypeResponseCancel         = "response.cancel"
)

// Server event types (sent from server to client). Unknown inbound event
// types are ignored, never errors.
const (
	EventTypeError = "error"

	EventTypeSessionCreated          = "session.created"
	EventTypeSessionUpdated          = "session.updated"
	EventTypeSessionAvatarConnecting = "session.avatar.connecting"

	EventTypeInputAudioBufferSpeechStarted = "input_audio_buffer.speech_started"
	EventTypeInputAudioBufferSpeechStopped = "input_audio_buffer.speech_stopped"

	EventTypeResponseCreated              = "response.created"
	EventTypeResponseDone                 = "response.done"
	EventTypeResponseAudioDelta           = "response.audio.delta"
	EventTypeResponseAudioDone            = "response.audio.done"
	EventTypeResponseAudioTranscriptDelta = "response.audio_transcript.delta"
	EventTypeResponseAudioTranscriptDone  = "response.audio_transcript.done"
	EventTypeResponseAnimVisemeDelta      = "response.animation_viseme.delta"

	EventTypeResponseFunctionCallArgumentsDone = "response.function_call_arguments.done"
)

// ICEServer is one ICE server entry granted by the service for avatar media
// negotiation.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitzero"`
	Credential string   `json:"credential,omitzero"`
}

// AvatarGrant carries the media-negotiation parameters the service returns
// when an avatar session was requested and granted.
type AvatarGrant struct {
	IceServers []ICEServer `json:"ice_servers,omitzero"`
}

// SessionResource is the session state echoed by the server in
// session.created and session.updated events.
type SessionResource struct {
	ID         string       `json:"id,omitzero"`
	Model      string       `json:"model,omitzero"`
	Modalities []string     `json:"modalities,omitzero"`
	Avatar     *AvatarGrant `json:"avatar,omitzero"`
}

// ResponseResource identifies one response turn.
type ResponseResource struct {
	ID     string `json:"id,omitzero"`
	Status string `json:"status,omitzero"`
}

// ServerEvent represents an inbound control-channel event. It is a union
// over every event shape this client interprets; unused fields are zero.
type ServerEvent struct {
	// Type is the event type.
	Type string `json:"type"`

	// EventID is the unique identifier for this event.
	EventID string `json:"event_id,omitzero"`

	// Session carries session state (session.created, session.updated).
	Session *SessionResource `json:"session,omitzero"`

	// Response carries the response turn (response.created, response.done).
	Response *ResponseResource `json:"response,omitzero"`

	// ResponseID is the turn identifier on per-chunk events.
	ResponseID string `json:"response_id,omitzero"`

	// ItemID is the conversation item identifier.
	ItemID string `json:"item_id,omitzero"`

	// AudioStartMs / AudioEndMs bracket detected user speech.
	AudioStartMs int `json:"audio_start_ms,omitzero"`
	AudioEndMs   int `json:"audio_end_ms,omitzero"`

	// Delta carries incremental payloads: base64 PCM16 for audio deltas,
	// text for transcript deltas.
	Delta string `json:"delta,omitzero"`

	// Transcript is the completed audio transcript.
	Transcript string `json:"transcript,omitzero"`

	// ServerSDP is the base64-encoded server media description
	// (session.avatar.connecting).
	ServerSDP string `json:"server_sdp,omitzero"`

	// CallID, Name, Arguments describe a requested tool invocation.
	CallID    string `json:"call_id,omitzero"`
	Name      string `json:"name,omitzero"`
	Arguments string `json:"arguments,omitzero"`

	// Error carries the service-reported error payload.
	Error *EventError `json:"error,omitzero"`

	// Raw is the original JSON frame, for observers.
	Raw []byte `json:"-"`
}

// TurnID returns the response turn identifier carried by this event,
// whichever field it arrived in.
func (e *ServerEvent) TurnID() string {
	if e.ResponseID != "" {
		return e.ResponseID
	}
	if e.Response != nil {
		return e.Response.ID
	}
	return ""
}
