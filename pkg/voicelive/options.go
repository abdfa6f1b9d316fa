package voicelive

// Voice selects the assistant's speaking voice. A bare name (VoiceNamed) is
// the common shorthand; the remaining fields refine prosody and engine type.
type Voice struct {
	// Name is the voice name (e.g., "en-US-AvaNeural").
	Name string `json:"name,omitzero"`

	// Type is the voice engine type (e.g., "azure-standard").
	Type string `json:"type,omitzero"`

	// Temperature controls prosody randomness for generative voices.
	Temperature *float64 `json:"temperature,omitzero"`

	// Rate is the speaking rate. It accepts a string ("1.2") or a number;
	// numbers are coerced to their string form on the wire.
	Rate any `json:"rate,omitzero"`
}

// VoiceNamed returns the shorthand voice selection for a bare voice name.
// Only the name is transmitted; engine type and prosody stay unset.
func VoiceNamed(name string) Opt[Voice] {
	return Value(Voice{Name: name})
}

// TurnDetection configures the service's turn-detection policy. Pass an
// explicit null (Null[TurnDetection]()) to disable server-side detection.
type TurnDetection struct {
	// Type is the detector variant (e.g., "server_vad", "azure_semantic_vad").
	Type Opt[string] `json:"type,omitzero"`

	// Threshold is the detection sensitivity (0.0-1.0).
	Threshold Opt[float64] `json:"threshold,omitzero"`

	// PrefixPaddingMs is the padding kept before detected speech start.
	PrefixPaddingMs Opt[int] `json:"prefix_padding_ms,omitzero"`

	// SilenceDurationMs is the silence needed to end a user turn.
	SilenceDurationMs Opt[int] `json:"silence_duration_ms,omitzero"`

	// RemoveFillerWords removes filler words from detected speech.
	RemoveFillerWords Opt[bool] `json:"remove_filler_words,omitzero"`

	// EndOfUtteranceDetection is the nested end-of-utterance sub-policy.
	EndOfUtteranceDetection Opt[EndOfUtteranceDetection] `json:"end_of_utterance_detection,omitzero"`
}

// EndOfUtteranceDetection is the nested end-of-utterance detection policy.
type EndOfUtteranceDetection struct {
	Model     Opt[string]  `json:"model,omitzero"`
	Threshold Opt[float64] `json:"threshold,omitzero"`
	TimeoutMs Opt[int]     `json:"timeout_ms,omitzero"`
}

// AudioEnhancement is an input-audio enhancement stage (echo cancellation or
// noise reduction), selected by its service-side type name.
type AudioEnhancement struct {
	Type string `json:"type"`
}

// InputAudioOptions groups input-audio enhancement settings. On the wire the
// group is flattened to input_audio_* fields.
type InputAudioOptions struct {
	// SamplingRate is the input sample rate in Hz (16000 or 24000).
	SamplingRate Opt[int] `json:"sampling_rate,omitzero"`

	// EchoCancellation enables server-side echo cancellation.
	EchoCancellation Opt[AudioEnhancement] `json:"echo_cancellation,omitzero"`

	// NoiseReduction enables server-side noise reduction.
	NoiseReduction Opt[AudioEnhancement] `json:"noise_reduction,omitzero"`
}

// VideoCrop is a crop region in source pixel coordinates.
type VideoCrop struct {
	TopLeft     [2]int `json:"top_left"`
	BottomRight [2]int `json:"bottom_right"`
}

// VideoResolution is the encoded video resolution.
type VideoResolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// VideoOptions configures the avatar's video encoding.
type VideoOptions struct {
	Codec      string               `json:"codec,omitzero"`
	Crop       Opt[VideoCrop]       `json:"crop,omitzero"`
	Resolution Opt[VideoResolution] `json:"resolution,omitzero"`
	Bitrate    Opt[int]             `json:"bitrate,omitzero"`
}

// Background replaces the avatar's background with a solid color or image.
type Background struct {
	Color    string `json:"color,omitzero"`
	ImageURL string `json:"image_url,omitzero"`
}

// AvatarOptions requests an avatar video session and selects its appearance.
type AvatarOptions struct {
	Character  string            `json:"character,omitzero"`
	Style      string            `json:"style,omitzero"`
	Customized bool              `json:"customized,omitzero"`
	Video      Opt[VideoOptions] `json:"video,omitzero"`
	Background Opt[Background]   `json:"background,omitzero"`
}

// AnimationOptions selects animation outputs emitted alongside audio
// (e.g., "viseme_id" for lip-sync).
type AnimationOptions struct {
	Outputs []string `json:"outputs,omitzero"`
}

// TranscriptionOptions enables transcription of user input audio.
type TranscriptionOptions struct {
	Model string `json:"model"`
}

// Tool defines a function tool available to the model. Tools are already
// wire-shaped and pass through the descriptor builder unchanged.
type Tool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitzero"`
	Parameters  map[string]any `json:"parameters,omitzero"`
}

// SessionOptions is the user-facing session configuration. Every leaf is
// independently optional; an explicit null disables the feature, an unset
// leaf inherits the default. Lists replace the default wholesale.
type SessionOptions struct {
	// Model selects the underlying model deployment.
	Model Opt[string] `json:"model,omitzero"`

	// Instructions is the system prompt. Not allowed in agent mode.
	Instructions Opt[string] `json:"instructions,omitzero"`

	// Temperature controls model randomness.
	Temperature Opt[float64] `json:"temperature,omitzero"`

	// MaxResponseOutputTokens caps the response length.
	MaxResponseOutputTokens Opt[int] `json:"max_response_output_tokens,omitzero"`

	// Modalities selects the output modalities (e.g., ["text", "audio"]).
	Modalities []string `json:"modalities,omitzero"`

	// Voice selects the assistant's voice.
	Voice Opt[Voice] `json:"voice,omitzero"`

	// TurnDetection configures turn detection; explicit null disables it.
	TurnDetection Opt[TurnDetection] `json:"turn_detection,omitzero"`

	// InputAudio groups input-audio enhancement settings.
	InputAudio Opt[InputAudioOptions] `json:"input_audio,omitzero"`

	// InputAudioTranscription enables user-audio transcription.
	InputAudioTranscription Opt[TranscriptionOptions] `json:"input_audio_transcription,omitzero"`

	// Avatar requests an avatar video session.
	Avatar Opt[AvatarOptions] `json:"avatar,omitzero"`

	// Animation selects animation outputs (visemes).
	Animation Opt[AnimationOptions] `json:"animation,omitzero"`

	// OutputAudioTimestampTypes requests output timing metadata
	// (e.g., ["word"]).
	OutputAudioTimestampTypes []string `json:"output_audio_timestamp_types,omitzero"`

	// Tools defines function tools available to the model.
	Tools []Tool `json:"tools,omitzero"`

	// ToolChoice controls tool selection: a string ("auto", "none",
	// "required") or a wire-shaped object.
	ToolChoice any `json:"tool_choice,omitzero"`
}

// DefaultSessionOptions returns the built-in defaults user configuration is
// merged over.
func DefaultSessionOptions() *SessionOptions {
	return &SessionOptions{
		Modalities: []string{"text", "audio"},
		TurnDetection: Value(TurnDetection{
			Type:              Value("server_vad"),
			Threshold:         Value(0.5),
			PrefixPaddingMs:   Value(300),
			SilenceDurationMs: Value(500),
		}),
		InputAudio: Value(InputAudioOptions{
			SamplingRate: Value(24000),
		}),
	}
}

// merge resolves user options over defaults field by field: supplied leaves
// (value or null) win, unset leaves inherit, plain nested objects recurse,
// lists replace wholesale. Neither input is mutated.
func merge(def, user *SessionOptions) *SessionOptions {
	if def == nil {
		def = &SessionOptions{}
	}
	if user == nil {
		u := *def
		return &u
	}

	out := &SessionOptions{
		Model:                   mergeOpt(def.Model, user.Model),
		Instructions:            mergeOpt(def.Instructions, user.Instructions),
		Temperature:             mergeOpt(def.Temperature, user.Temperature),
		MaxResponseOutputTokens: mergeOpt(def.MaxResponseOutputTokens, user.MaxResponseOutputTokens),
		Modalities:              mergeList(def.Modalities, user.Modalities),
		// Voice shorthand expands to the name only; a supplied voice never
		// inherits engine type or prosody from the default.
		Voice:                     mergeOpt(def.Voice, user.Voice),
		TurnDetection:             mergeTurnDetection(def.TurnDetection, user.TurnDetection),
		InputAudio:                mergeInputAudio(def.InputAudio, user.InputAudio),
		InputAudioTranscription:   mergeOpt(def.InputAudioTranscription, user.InputAudioTranscription),
		Avatar:                    mergeOpt(def.Avatar, user.Avatar),
		Animation:                 mergeOpt(def.Animation, user.Animation),
		OutputAudioTimestampTypes: mergeList(def.OutputAudioTimestampTypes, user.OutputAudioTimestampTypes),
		Tools:                     mergeList(def.Tools, user.Tools),
		ToolChoice:                def.ToolChoice,
	}
	if user.ToolChoice != nil {
		out.ToolChoice = user.ToolChoice
	}
	return out
}

func mergeTurnDetection(def, user Opt[TurnDetection]) Opt[TurnDetection] {
	if !user.IsSet() {
		return def
	}
	uv, ok := user.Get()
	if !ok {
		return user // explicit null
	}
	dv, ok := def.Get()
	if !ok {
		return user
	}
	return Value(TurnDetection{
		Type:                    mergeOpt(dv.Type, uv.Type),
		Threshold:               mergeOpt(dv.Threshold, uv.Threshold),
		PrefixPaddingMs:         mergeOpt(dv.PrefixPaddingMs, uv.PrefixPaddingMs),
		SilenceDurationMs:       mergeOpt(dv.SilenceDurationMs, uv.SilenceDurationMs),
		RemoveFillerWords:       mergeOpt(dv.RemoveFillerWords, uv.RemoveFillerWords),
		EndOfUtteranceDetection: mergeOpt(dv.EndOfUtteranceDetection, uv.EndOfUtteranceDetection),
	})
}

func mergeInputAudio(def, user Opt[InputAudioOptions]) Opt[InputAudioOptions] {
	if !user.IsSet() {
		return def
	}
	uv, ok := user.Get()
	if !ok {
		return user
	}
	dv, ok := def.Get()
	if !ok {
		return user
	}
	return Value(InputAudioOptions{
		SamplingRate:     mergeOpt(dv.SamplingRate, uv.SamplingRate),
		EchoCancellation: mergeOpt(dv.EchoCancellation, uv.EchoCancellation),
		NoiseReduction:   mergeOpt(dv.NoiseReduction, uv.NoiseReduction),
	})
}
