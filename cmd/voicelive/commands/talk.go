package commands

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/voicelive/go/cmd/voicelive/internal/config"
	"github.com/haivivi/voicelive/go/pkg/audio/pcm"
	"github.com/haivivi/voicelive/go/pkg/cli"
	"github.com/haivivi/voicelive/go/pkg/voicelive"
)

var (
	talkContext string
	talkFile    string
	talkAudio   string
	talkText    string
	talkOutput  string
	talkTimeout time.Duration
)

var talkCmd = &cobra.Command{
	Use:   "talk",
	Short: "Connect a realtime voice session",
	Long: `Connect a realtime voice session using the current (or named) context.

Input is one of:
  --audio input.pcm   stream a PCM16 audio file as microphone input
  --text "hello"      send a text message
  (neither)           interactive mode: each stdin line is one turn

Assistant audio is collected and written with -o; transcripts print
to stdout as they stream.

Session options (voice, instructions, turn detection, avatar, ...) can
be supplied as a YAML or JSON file with -f.

Examples:
  voicelive talk --text "tell me a joke" -o reply.pcm
  voicelive talk --audio question.pcm -o reply.pcm -f session.yaml
  voicelive talk -c staging`,
	RunE: runTalk,
}

func init() {
	talkCmd.Flags().StringVarP(&talkContext, "context", "c", "", "context name to use")
	talkCmd.Flags().StringVarP(&talkFile, "file", "f", "", "session options file (YAML or JSON)")
	talkCmd.Flags().String("audio", "", "PCM16 audio file to send as input")
	talkCmd.Flags().StringVarP(&talkText, "text", "g", "", "text message to send")
	talkCmd.Flags().StringVarP(&talkOutput, "output", "o", "", "output file for assistant audio (PCM16)")
	talkCmd.Flags().DurationVar(&talkTimeout, "timeout", 120*time.Second, "overall session timeout")

	rootCmd.AddCommand(talkCmd)
}

// createClient builds a voicelive client from the resolved context.
func createClient() (*voicelive.Client, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	path, err := cfg.ResolveContext(talkContext)
	if err != nil {
		if talkContext == "" {
			return nil, fmt.Errorf("no context set; use -c flag or 'voicelive config use-context <name>'")
		}
		return nil, err
	}
	svc, err := config.LoadService(path)
	if err != nil {
		return nil, err
	}

	var opts []voicelive.Option
	switch {
	case svc.ProxyURL != "":
		opts = append(opts, voicelive.WithProxyURL(svc.ProxyURL))
	case svc.AgentID != "":
		opts = append(opts, voicelive.WithAgent(svc.Endpoint, svc.AgentID, svc.ProjectName, svc.AgentAccessToken))
	case svc.Endpoint != "":
		opts = append(opts, voicelive.WithResourceKey(svc.Endpoint, svc.APIKey))
	default:
		return nil, fmt.Errorf("context is not configured; set endpoint, agent_id or proxy_url")
	}
	if svc.Model != "" {
		opts = append(opts, voicelive.WithModel(svc.Model))
	}
	if svc.APIVersion != "" {
		opts = append(opts, voicelive.WithAPIVersion(svc.APIVersion))
	}
	if IsVerbose() {
		opts = append(opts, voicelive.WithLogger(voicelive.DefaultLogger()))
	}

	return voicelive.NewClient(opts...), nil
}

func runTalk(cmd *cobra.Command, args []string) error {
	talkAudio, _ = cmd.Flags().GetString("audio")
	if talkAudio != "" && talkText != "" {
		return fmt.Errorf("--audio and --text are mutually exclusive")
	}

	client, err := createClient()
	if err != nil {
		return err
	}

	var session *voicelive.SessionOptions
	if talkFile != "" {
		session = &voicelive.SessionOptions{}
		if err := cli.LoadRequest(talkFile, session); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), talkTimeout)
	defer cancel()

	styles := cli.NewStyles(cli.DefaultTheme)

	// audioBuf is written from the session's read loop and read from this
	// goroutine after the turn completes.
	var (
		audioMu  sync.Mutex
		audioBuf bytes.Buffer
	)
	turnDone := make(chan struct{}, 1)

	handlers := voicelive.Handlers{
		OnStateChange: func(st voicelive.ConnState) {
			printVerbose("state: %s", st)
		},
		OnError: func(err error) {
			cli.PrintError("%v", err)
		},
		OnVideoTrack: func(voicelive.TrackRemote) {
			printInfo("avatar video track attached")
		},
		OnEvent: func(ev *voicelive.ServerEvent) {
			switch ev.Type {
			case voicelive.EventTypeInputAudioBufferSpeechStarted:
				printVerbose("speech detected at %dms, assistant interrupted", ev.AudioStartMs)
			case voicelive.EventTypeResponseAudioDelta:
				data, err := pcm.DecodeBase64Bytes(ev.Delta)
				if err != nil {
					return
				}
				audioMu.Lock()
				audioBuf.Write(data)
				audioMu.Unlock()
			case voicelive.EventTypeResponseAudioTranscriptDelta:
				fmt.Print(ev.Delta)
			case voicelive.EventTypeResponseAudioTranscriptDone:
				fmt.Println()
			case voicelive.EventTypeResponseDone:
				select {
				case turnDone <- struct{}{}:
				default:
				}
			case voicelive.EventTypeResponseFunctionCallArgumentsDone:
				printInfo("tool call requested: %s(%s)", ev.Name, ev.Arguments)
			}
		},
	}

	live, err := client.Connect(ctx, &voicelive.ConnectOptions{
		Session:  session,
		Handlers: handlers,
	})
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer live.Close()

	printSuccess("Connected (state: %s)", live.State())

	switch {
	case talkText != "":
		if err := sendTextTurn(ctx, live, talkText, turnDone); err != nil {
			return err
		}
	case talkAudio != "":
		if err := sendAudioTurn(ctx, live, talkAudio, turnDone); err != nil {
			return err
		}
	default:
		if err := interactiveLoop(ctx, live, styles, turnDone); err != nil {
			return err
		}
	}

	audioMu.Lock()
	received := append([]byte(nil), audioBuf.Bytes()...)
	audioMu.Unlock()

	if len(received) > 0 && talkOutput != "" {
		if err := cli.OutputBytes(received, talkOutput); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}
		printSuccess("Audio saved to: %s (%s)", talkOutput, cli.FormatBytes(int64(len(received))))
	}

	elapsed := -1
	if ms, ok := live.ElapsedMs(); ok {
		elapsed = int(ms)
	}
	fmt.Println(styles.StatusLine(live.State().String(), live.State() == voicelive.StateConnected,
		elapsed, int64(len(received))))
	return nil
}

// sendTextTurn sends one text message and waits for the response turn.
func sendTextTurn(ctx context.Context, s *voicelive.Session, text string, turnDone <-chan struct{}) error {
	if err := s.AddUserMessage(text); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if err := s.CreateResponse(); err != nil {
		return fmt.Errorf("request response: %w", err)
	}
	return waitTurn(ctx, turnDone)
}

// sendAudioTurn streams a PCM16 file as microphone input in 100ms chunks,
// commits the buffer and waits for the response turn.
func sendAudioTurn(ctx context.Context, s *voicelive.Session, path string, turnDone <-chan struct{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read audio: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("empty audio data: provide a non-empty audio file")
	}

	printVerbose("Sending audio (%s)...", cli.FormatBytes(int64(len(data))))

	chunkSize := 4800 // 100ms of 24kHz 16-bit mono
	for i := 0; i < len(data); i += chunkSize {
		end := min(i+chunkSize, len(data))
		if err := s.AppendAudio(data[i:end]); err != nil {
			return fmt.Errorf("send audio: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	if err := s.CommitInput(); err != nil {
		return fmt.Errorf("commit audio: %w", err)
	}
	if err := s.CreateResponse(); err != nil {
		return fmt.Errorf("request response: %w", err)
	}
	return waitTurn(ctx, turnDone)
}

// interactiveLoop reads stdin lines, one response turn per line, until EOF.
func interactiveLoop(ctx context.Context, s *voicelive.Session, styles cli.Styles, turnDone <-chan struct{}) error {
	fmt.Println(styles.Dim.Render("Type a message and press enter; ctrl-d to quit."))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(styles.Label.Render("> "))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := sendTextTurn(ctx, s, line, turnDone); err != nil {
			return err
		}
	}
}

// waitTurn blocks until the current response turn completes.
func waitTurn(ctx context.Context, turnDone <-chan struct{}) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for response: %w", ctx.Err())
	case <-turnDone:
		return nil
	}
}

func printVerbose(format string, args ...any) { cli.PrintVerbose(IsVerbose(), format, args...) }
func printSuccess(format string, args ...any) { cli.PrintSuccess(format, args...) }
func printInfo(format string, args ...any)    { cli.PrintInfo(format, args...) }
