package voicelive

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// DefaultAPIVersion is the protocol version requested on directly-built URLs.
const DefaultAPIVersion = "2025-05-01-preview"

// realtimePath is the control-channel path on directly-built URLs.
const realtimePath = "/voice-live/realtime"

// Client constructs sessions against the voicelive service. A Client is
// immutable after creation and may be shared; each Connect call produces an
// independent Session.
type Client struct {
	config *clientConfig
}

type clientConfig struct {
	endpoint   string
	apiVersion string
	model      string

	// Standard direct mode.
	apiKey string

	// Agent direct mode.
	agentID          string
	projectName      string
	agentAccessToken string

	// Proxy mode: a pre-built URL used verbatim.
	proxyURL string

	dialer *websocket.Dialer
	logger Logger
}

// Option configures the Client.
type Option func(*clientConfig)

// WithResourceKey selects standard direct mode: the upstream resource
// endpoint plus its API key.
func WithResourceKey(endpoint, apiKey string) Option {
	return func(c *clientConfig) {
		c.endpoint = endpoint
		c.apiKey = apiKey
	}
}

// WithAgent selects agent direct mode: an agent id, its project name and a
// bearer token. In this mode model behavior fields are owned server-side.
func WithAgent(endpoint, agentID, projectName, accessToken string) Option {
	return func(c *clientConfig) {
		c.endpoint = endpoint
		c.agentID = agentID
		c.projectName = projectName
		c.agentAccessToken = accessToken
	}
}

// WithProxyURL bypasses URL construction entirely; the given URL is dialed
// as-is. The proxy is expected to inject credentials server-side.
func WithProxyURL(u string) Option {
	return func(c *clientConfig) {
		c.proxyURL = u
	}
}

// WithModel sets the model deployment requested on the connection URL.
func WithModel(model string) Option {
	return func(c *clientConfig) {
		c.model = model
	}
}

// WithAPIVersion overrides the protocol version on directly-built URLs.
func WithAPIVersion(v string) Option {
	return func(c *clientConfig) {
		c.apiVersion = v
	}
}

// WithDialer sets a custom WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *clientConfig) {
		c.dialer = d
	}
}

// WithLogger sets the diagnostics sink. Defaults to the slog-backed logger.
func WithLogger(l Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// NewClient creates a new voicelive client.
func NewClient(opts ...Option) *Client {
	cfg := &clientConfig{
		apiVersion: DefaultAPIVersion,
		dialer:     websocket.DefaultDialer,
		logger:     DefaultLogger(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Client{config: cfg}
}

// AgentMode reports whether the client authenticates as an agent.
func (c *Client) AgentMode() bool {
	return c.config.proxyURL == "" && c.config.agentID != ""
}

// connectionURL resolves the control-channel URL for this client's
// authentication mode. Credentials travel as query parameters: the control
// channel cannot carry custom headers from a browser context, and the proxy
// collaborator exists to translate tokens into proper headers server-side.
func (c *Client) connectionURL() (string, error) {
	cfg := c.config

	if cfg.proxyURL != "" {
		return cfg.proxyURL, nil
	}
	if cfg.endpoint == "" {
		return "", &Error{Code: "missing_endpoint", Message: "no endpoint, credentials or proxy URL configured"}
	}

	u, err := url.Parse(cfg.endpoint)
	if err != nil {
		return "", fmt.Errorf("voicelive: parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	default:
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + realtimePath

	q := u.Query()
	q.Set("api-version", cfg.apiVersion)
	if cfg.model != "" {
		q.Set("model", cfg.model)
	}

	switch {
	case cfg.agentID != "":
		// Agent direct mode. The service rejects tokenless agent
		// connections, so fail before dialing.
		if cfg.agentAccessToken == "" {
			return "", &Error{
				Code:    "missing_agent_token",
				Message: "agent mode requires an access token",
				Param:   "agent_access_token",
			}
		}
		q.Set("agent-id", cfg.agentID)
		q.Set("agent-project-name", cfg.projectName)
		q.Set("agent-access-token", cfg.agentAccessToken)
	case cfg.apiKey != "":
		q.Set("api-key", cfg.apiKey)
	default:
		return "", &Error{Code: "missing_credentials", Message: "no API key or agent credentials configured"}
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}
