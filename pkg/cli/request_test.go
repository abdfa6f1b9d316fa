package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/haivivi/voicelive/go/pkg/voicelive"
)

type testRequest struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Tags  []string `json:"tags"`
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRequestYAML(t *testing.T) {
	path := writeTemp(t, "req.yaml", "name: demo\ncount: 3\ntags:\n  - a\n  - b\n")

	var req testRequest
	if err := LoadRequest(path, &req); err != nil {
		t.Fatal(err)
	}
	if req.Name != "demo" || req.Count != 3 || len(req.Tags) != 2 {
		t.Errorf("parsed = %+v", req)
	}
}

func TestLoadRequestJSON(t *testing.T) {
	path := writeTemp(t, "req.json", `{"name": "demo", "count": 3}`)

	var req testRequest
	if err := LoadRequest(path, &req); err != nil {
		t.Fatal(err)
	}
	if req.Name != "demo" || req.Count != 3 {
		t.Errorf("parsed = %+v", req)
	}
}

func TestLoadRequestMissingFile(t *testing.T) {
	var req testRequest
	if err := LoadRequest(filepath.Join(t.TempDir(), "missing.yaml"), &req); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseRequestUnknownExtension(t *testing.T) {
	var req testRequest
	if err := ParseRequest([]byte("name: demo\n"), "request", &req); err != nil {
		t.Fatal(err)
	}
	if req.Name != "demo" {
		t.Errorf("parsed = %+v", req)
	}
}

func TestLoadRequestSessionOptionsFile(t *testing.T) {
	// The session file a talk user writes uses the wire field names,
	// including an explicit null to disable server turn detection.
	path := writeTemp(t, "session.yaml", `
instructions: "You are terse."
max_response_output_tokens: 100
turn_detection: null
tool_choice: auto
input_audio:
  sampling_rate: 16000
voice:
  name: en-US-AvaNeural
  rate: "1.2"
`)

	var opts voicelive.SessionOptions
	if err := LoadRequest(path, &opts); err != nil {
		t.Fatal(err)
	}
	if got, _ := opts.Instructions.Get(); got != "You are terse." {
		t.Errorf("instructions = %q", got)
	}
	if got, ok := opts.MaxResponseOutputTokens.Get(); !ok || got != 100 {
		t.Errorf("max_response_output_tokens = %d, ok=%v", got, ok)
	}
	if !opts.TurnDetection.IsNull() {
		t.Error("turn_detection: null did not bind as explicit null")
	}
	if opts.ToolChoice != "auto" {
		t.Errorf("tool_choice = %v", opts.ToolChoice)
	}
	ia, ok := opts.InputAudio.Get()
	if !ok {
		t.Fatal("input_audio group not bound")
	}
	if got, _ := ia.SamplingRate.Get(); got != 16000 {
		t.Errorf("sampling_rate = %d", got)
	}
	voice, ok := opts.Voice.Get()
	if !ok || voice.Name != "en-US-AvaNeural" || voice.Rate != "1.2" {
		t.Errorf("voice = %+v, ok=%v", voice, ok)
	}
}

func TestParseRequestYAMLHonorsJSONTags(t *testing.T) {
	// YAML goes through a JSON round trip, so json tags apply.
	var req struct {
		DisplayName string `json:"display_name"`
	}
	if err := ParseRequest([]byte("display_name: x\n"), "req.yaml", &req); err != nil {
		t.Fatal(err)
	}
	if req.DisplayName != "x" {
		t.Errorf("parsed = %+v", req)
	}
}
