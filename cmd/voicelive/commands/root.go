package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/voicelive/go/cmd/voicelive/internal/config"
)

var (
	// Global flags
	verbose bool

	// Global configuration (loaded at init time)
	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "voicelive",
	Short: "CLI for realtime voice and avatar sessions",
	Long: `voicelive - a command line client for realtime voice and avatar sessions.

A session runs over a WebSocket control channel: microphone audio goes
up as base64 PCM16, assistant audio and transcripts come back as server
events. When an avatar is configured, video and voice arrive over a
separately negotiated WebRTC media channel.

Configuration is stored in the OS config directory:
  macOS:   ~/Library/Application Support/voicelive/
  Linux:   ~/.config/voicelive/
  Windows: %AppData%/voicelive/

Each context is one YAML file with the credentials for one deployment.

Examples:
  # Create a context and point it at a resource
  voicelive config add-context dev
  voicelive config set dev endpoint https://myresource.example.com
  voicelive config set dev api_key YOUR_KEY
  voicelive config set dev model gpt-4o-realtime

  # Make it current and start talking
  voicelive config use-context dev
  voicelive talk --audio input.pcm -o reply.pcm`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// configLoadErr stores the error from config.Load() for deferred reporting.
var configLoadErr error

func initConfig() {
	cfg, err := config.Load()
	if err != nil {
		// Store error for deferred reporting — commands that need config
		// will get a clear error via GetConfig(). This avoids failing
		// non-config commands like 'voicelive version'.
		configLoadErr = err
		return
	}
	globalConfig = cfg
}

// GetConfig returns the global configuration.
// Returns an error if the config could not be loaded (e.g., HOME not set).
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		// Try loading again (e.g., dir was created since init).
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}
