package openairealtime

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// webSocketConn adapts a gorilla connection to Conn.
type webSocketConn struct {
	conn *websocket.Conn
}

func (c *webSocketConn) ReadMessage() ([]byte, error) {
	_, message, err := c.conn.ReadMessage()
	return message, err
}

func (c *webSocketConn) WriteMessage(data []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *webSocketConn) Close() error {
	return c.conn.Close()
}

// ConnectWebSocket opens a WebSocket connection to the Realtime API. This is
// suitable for server-side applications.
func (c *Client) ConnectWebSocket(ctx context.Context, model string) (Conn, error) {
	if model == "" {
		model = ModelGPT4oRealtimePreview
	}

	// Build WebSocket URL with model query parameter
	url := fmt.Sprintf("%s?model=%s", c.config.wsURL, model)

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.config.apiKey)
	headers.Set("OpenAI-Beta", "realtime=v1")
	if c.config.organization != "" {
		headers.Set("OpenAI-Organization", c.config.organization)
	}
	if c.config.project != "" {
		headers.Set("OpenAI-Project", c.config.project)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.httpClient.Timeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, &Error{
				Code:       "connection_failed",
				Message:    fmt.Sprintf("failed to connect: %v", err),
				HTTPStatus: resp.StatusCode,
			}
		}
		return nil, fmt.Errorf("openai-realtime: failed to connect: %w", err)
	}
	return &webSocketConn{conn: conn}, nil
}
