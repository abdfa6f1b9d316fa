package voicelive

import (
	"fmt"
	"strconv"
)

// BuildSession renders the wire-format session descriptor from defaults and
// user configuration. It is deterministic and side-effect free; the
// descriptor is derived state, rebuilt from scratch on every call.
//
// Merge happens on the semantic config shape first; projection to the flat,
// snake_case wire shape happens once, after merge. Leaves supplied as
// explicit nulls appear in the output as JSON nulls.
func BuildSession(defaults, user *SessionOptions) map[string]any {
	return project(merge(defaults, user), false)
}

// BuildAgentSession is the reduced-field variant for agent mode: model
// behavior fields (instructions, temperature, tools, tool choice) are owned
// by the server-side agent configuration and are silently omitted even when
// present. Use ValidateOptions to reject instructions before connecting.
func BuildAgentSession(defaults, user *SessionOptions) map[string]any {
	return project(merge(defaults, user), true)
}

// ValidateOptions is a pure pre-flight check, invoked deliberately by
// callers rather than enforced automatically. In agent mode a non-empty
// instructions value is a hard error: instructions are owned by the
// server-side agent configuration there.
func ValidateOptions(opts *SessionOptions, agentMode bool) error {
	if opts == nil || !agentMode {
		return nil
	}
	if v, ok := opts.Instructions.Get(); ok && v != "" {
		return &Error{
			Code:    "invalid_session_options",
			Message: "instructions are not supported in agent mode; configure them on the agent",
			Param:   "instructions",
		}
	}
	return nil
}

func project(opts *SessionOptions, agentMode bool) map[string]any {
	m := map[string]any{}

	putOpt(m, "model", opts.Model)
	if !agentMode {
		putOpt(m, "instructions", opts.Instructions)
		putOpt(m, "temperature", opts.Temperature)
		if opts.Tools != nil {
			m["tools"] = opts.Tools
		}
		if opts.ToolChoice != nil {
			m["tool_choice"] = opts.ToolChoice
		}
	}
	putOpt(m, "max_response_output_tokens", opts.MaxResponseOutputTokens)
	if opts.Modalities != nil {
		m["modalities"] = opts.Modalities
	}
	putProjected(m, "voice", opts.Voice, projectVoice)
	putProjected(m, "turn_detection", opts.TurnDetection, projectTurnDetection)
	projectInputAudio(m, opts.InputAudio)
	putProjected(m, "input_audio_transcription", opts.InputAudioTranscription, func(t TranscriptionOptions) any {
		return map[string]any{"model": t.Model}
	})
	putProjected(m, "avatar", opts.Avatar, projectAvatar)
	putProjected(m, "animation", opts.Animation, func(a AnimationOptions) any {
		return map[string]any{"outputs": a.Outputs}
	})
	if opts.OutputAudioTimestampTypes != nil {
		m["output_audio_timestamp_types"] = opts.OutputAudioTimestampTypes
	}

	return m
}

// putOpt writes a tri-state leaf: explicit null becomes a present JSON null,
// unset leaves no key behind.
func putOpt[T any](m map[string]any, key string, o Opt[T]) {
	if !o.IsSet() {
		return
	}
	if o.IsNull() {
		m[key] = nil
		return
	}
	v, _ := o.Get()
	m[key] = v
}

func putProjected[T any](m map[string]any, key string, o Opt[T], fn func(T) any) {
	if !o.IsSet() {
		return
	}
	if o.IsNull() {
		m[key] = nil
		return
	}
	v, _ := o.Get()
	m[key] = fn(v)
}

func projectVoice(v Voice) any {
	out := map[string]any{"name": v.Name}
	if v.Type != "" {
		out["type"] = v.Type
	}
	if v.Temperature != nil {
		out["temperature"] = *v.Temperature
	}
	if v.Rate != nil {
		out["rate"] = rateString(v.Rate)
	}
	return out
}

// rateString coerces a numeric rate to its string form; the wire format
// requires rate as a string even when the user supplies a number.
func rateString(rate any) string {
	switch r := rate.(type) {
	case string:
		return r
	case float64:
		return strconv.FormatFloat(r, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(r), 'g', -1, 32)
	case int:
		return strconv.Itoa(r)
	default:
		return fmt.Sprint(r)
	}
}

func projectTurnDetection(td TurnDetection) any {
	out := map[string]any{}
	putOpt(out, "type", td.Type)
	putOpt(out, "threshold", td.Threshold)
	putOpt(out, "prefix_padding_ms", td.PrefixPaddingMs)
	putOpt(out, "silence_duration_ms", td.SilenceDurationMs)
	putOpt(out, "remove_filler_words", td.RemoveFillerWords)
	putProjected(out, "end_of_utterance_detection", td.EndOfUtteranceDetection, func(e EndOfUtteranceDetection) any {
		eou := map[string]any{}
		putOpt(eou, "model", e.Model)
		putOpt(eou, "threshold", e.Threshold)
		putOpt(eou, "timeout_ms", e.TimeoutMs)
		return eou
	})
	return out
}

// projectInputAudio flattens the input-audio group to input_audio_* fields.
func projectInputAudio(m map[string]any, o Opt[InputAudioOptions]) {
	ia, ok := o.Get()
	if !ok {
		if o.IsNull() {
			m["input_audio_sampling_rate"] = nil
			m["input_audio_echo_cancellation"] = nil
			m["input_audio_noise_reduction"] = nil
		}
		return
	}
	putOpt(m, "input_audio_sampling_rate", ia.SamplingRate)
	putProjected(m, "input_audio_echo_cancellation", ia.EchoCancellation, func(e AudioEnhancement) any {
		return map[string]any{"type": e.Type}
	})
	putProjected(m, "input_audio_noise_reduction", ia.NoiseReduction, func(e AudioEnhancement) any {
		return map[string]any{"type": e.Type}
	})
}

func projectAvatar(a AvatarOptions) any {
	out := map[string]any{
		"character": a.Character,
	}
	if a.Style != "" {
		out["style"] = a.Style
	}
	if a.Customized {
		out["customized"] = true
	}
	putProjected(out, "video", a.Video, func(v VideoOptions) any {
		video := map[string]any{}
		if v.Codec != "" {
			video["codec"] = v.Codec
		}
		putProjected(video, "crop", v.Crop, func(c VideoCrop) any {
			return map[string]any{
				"top_left":     []int{c.TopLeft[0], c.TopLeft[1]},
				"bottom_right": []int{c.BottomRight[0], c.BottomRight[1]},
			}
		})
		putProjected(video, "resolution", v.Resolution, func(r VideoResolution) any {
			return map[string]any{"width": r.Width, "height": r.Height}
		})
		putOpt(video, "bitrate", v.Bitrate)
		return video
	})
	putProjected(out, "background", a.Background, func(b Background) any {
		bg := map[string]any{}
		if b.Color != "" {
			bg["color"] = b.Color
		}
		if b.ImageURL != "" {
			bg["image_url"] = b.ImageURL
		}
		return bg
	})
	return out
}
