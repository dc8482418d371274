package openairealtime

import (
	"context"
	"fmt"
	"net/http"
)

const (
	// DefaultWebSocketURL is the default WebSocket endpoint.
	DefaultWebSocketURL = "wss://api.openai.com/v1/realtime"

	// DefaultHTTPURL is the default HTTP endpoint (for WebRTC session creation).
	DefaultHTTPURL = "https://api.openai.com/v1/realtime"
)

// Transport kinds accepted by WithTransport.
const (
	TransportWebSocket = "websocket"
	TransportWebRTC    = "webrtc"
)

// Client holds the credentials and endpoints of the OpenAI Realtime API. It
// implements Dialer, so it can be handed to NewTransport or NewSession.
type Client struct {
	config *clientConfig
}

// clientConfig holds the client configuration.
type clientConfig struct {
	apiKey       string
	organization string
	project      string
	wsURL        string
	httpURL      string
	httpClient   *http.Client
	transport    string
	model        string
	dialer       Dialer
}

// Option configures the Client.
type Option func(*clientConfig)

// NewClient creates a new OpenAI Realtime client.
//
// The apiKey is required and can be obtained from:
// https://platform.openai.com/api-keys
func NewClient(apiKey string, opts ...Option) *Client {
	if apiKey == "" {
		panic("openai-realtime: API key is required")
	}

	cfg := &clientConfig{
		apiKey:     apiKey,
		wsURL:      DefaultWebSocketURL,
		httpURL:    DefaultHTTPURL,
		httpClient: http.DefaultClient,
		transport:  TransportWebSocket,
		model:      ModelGPT4oRealtimePreview,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &Client{config: cfg}
}

// WithOrganization sets the organization ID for API requests.
func WithOrganization(orgID string) Option {
	return func(c *clientConfig) {
		c.organization = orgID
	}
}

// WithProject sets the project ID for API requests.
func WithProject(projectID string) Option {
	return func(c *clientConfig) {
		c.project = projectID
	}
}

// WithWebSocketURL sets the WebSocket URL.
func WithWebSocketURL(url string) Option {
	return func(c *clientConfig) {
		c.wsURL = url
	}
}

// WithHTTPURL sets the HTTP URL for WebRTC session creation.
func WithHTTPURL(url string) Option {
	return func(c *clientConfig) {
		c.httpURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTransport selects TransportWebSocket (the default) or TransportWebRTC.
func WithTransport(kind string) Option {
	return func(c *clientConfig) {
		c.transport = kind
	}
}

// WithModel sets the model used when Dial is called with an empty model.
func WithModel(model string) Option {
	return func(c *clientConfig) {
		c.model = model
	}
}

// WithDialer replaces the built-in transports, e.g. with an in-memory
// connection in tests.
func WithDialer(d Dialer) Option {
	return func(c *clientConfig) {
		c.dialer = d
	}
}

// Model returns the default model.
func (c *Client) Model() string {
	return c.config.model
}

// Dial opens a connection using the configured transport.
func (c *Client) Dial(ctx context.Context, model string) (Conn, error) {
	if model == "" {
		model = c.config.model
	}
	if c.config.dialer != nil {
		return c.config.dialer.Dial(ctx, model)
	}
	switch c.config.transport {
	case TransportWebSocket, "":
		return c.ConnectWebSocket(ctx, model)
	case TransportWebRTC:
		conn, err := c.ConnectWebRTC(ctx, model)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	return nil, fmt.Errorf("openai-realtime: unknown transport %q", c.config.transport)
}
