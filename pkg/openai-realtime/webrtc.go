package openairealtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/pion/webrtc/v3"
)

// WebRTCConn carries realtime events over the "oai-events" data channel of
// a peer connection. Model audio arrives on a separate remote track.
type WebRTCConn struct {
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	messages  chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu          sync.Mutex
	remoteTrack *webrtc.TrackRemote
}

// ephemeralTokenResponse is the response from the session creation API.
type ephemeralTokenResponse struct {
	ID           string `json:"id"`
	Object       string `json:"object"`
	Model        string `json:"model"`
	ExpiresAt    int64  `json:"expires_at"`
	ClientSecret struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
}

// ConnectWebRTC opens a WebRTC connection to the Realtime API and returns
// once the event data channel is open. This is suitable for client-side
// applications with lower latency requirements.
func (c *Client) ConnectWebRTC(ctx context.Context, model string) (*WebRTCConn, error) {
	if model == "" {
		model = ModelGPT4oRealtimePreview
	}

	// Step 1: Get ephemeral token from OpenAI API
	token, err := c.getEphemeralToken(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("openai-realtime: get ephemeral token: %w", err)
	}

	// Step 2: Create WebRTC peer connection
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai-realtime: create peer connection: %w", err)
	}

	conn := &WebRTCConn{
		pc:       pc,
		messages: make(chan []byte, 256),
		done:     make(chan struct{}),
	}

	// Step 3: Add audio transceiver for receiving audio
	_, err = pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("openai-realtime: add audio transceiver: %w", err)
	}

	// Step 4: Create data channel for events
	dc, err := pc.CreateDataChannel("oai-events", nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("openai-realtime: create data channel: %w", err)
	}
	conn.dc = dc

	opened := make(chan struct{})
	dc.OnOpen(func() {
		slog.Debug("data channel opened")
		close(opened)
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		select {
		case conn.messages <- msg.Data:
		case <-conn.done:
		}
	})
	dc.OnClose(func() {
		slog.Debug("data channel closed")
		conn.shutdown()
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		slog.Debug("received remote track", "kind", track.Kind(), "codec", track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeAudio {
			conn.mu.Lock()
			conn.remoteTrack = track
			conn.mu.Unlock()
		}
	})

	// Step 5: Create offer
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("openai-realtime: create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("openai-realtime: set local description: %w", err)
	}

	select {
	case <-webrtc.GatheringCompletePromise(pc):
	case <-ctx.Done():
		pc.Close()
		return nil, ctx.Err()
	}

	// Step 6: Send offer to OpenAI and get answer
	answer, err := c.sendOffer(ctx, token, model, pc.LocalDescription().SDP)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("openai-realtime: send offer: %w", err)
	}
	err = pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	})
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("openai-realtime: set remote description: %w", err)
	}

	select {
	case <-opened:
	case <-ctx.Done():
		pc.Close()
		return nil, ctx.Err()
	}
	return conn, nil
}

// getEphemeralToken gets an ephemeral token for WebRTC session.
func (c *Client) getEphemeralToken(ctx context.Context, model string) (string, error) {
	jsonBody, err := json.Marshal(map[string]any{
		"model": model,
		"voice": VoiceVerse,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.httpURL+"/sessions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.config.organization != "" {
		req.Header.Set("OpenAI-Organization", c.config.organization)
	}
	if c.config.project != "" {
		req.Header.Set("OpenAI-Project", c.config.project)
	}

	resp, err := c.config.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &Error{
			Code:       "session_creation_failed",
			Message:    fmt.Sprintf("failed to create session: %s", string(body)),
			HTTPStatus: resp.StatusCode,
		}
	}

	var tokenResp ephemeralTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", err
	}
	return tokenResp.ClientSecret.Value, nil
}

// sendOffer sends the SDP offer to OpenAI and returns the answer.
func (c *Client) sendOffer(ctx context.Context, token, model, sdp string) (string, error) {
	url := fmt.Sprintf("%s?model=%s", c.config.httpURL, model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte(sdp)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := c.config.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &Error{
			Code:       "sdp_exchange_failed",
			Message:    fmt.Sprintf("failed to exchange SDP: %s", string(body)),
			HTTPStatus: resp.StatusCode,
		}
	}

	answer, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(answer), nil
}

// ReadMessage returns the next data channel message. Messages received
// before the channel closed are still delivered.
func (c *WebRTCConn) ReadMessage() ([]byte, error) {
	select {
	case msg := <-c.messages:
		return msg, nil
	default:
	}
	select {
	case msg := <-c.messages:
		return msg, nil
	case <-c.done:
		return nil, net.ErrClosed
	}
}

// WriteMessage sends a frame on the data channel.
func (c *WebRTCConn) WriteMessage(data []byte) error {
	if c.dc.ReadyState() != webrtc.DataChannelStateOpen {
		return fmt.Errorf("openai-realtime: data channel not open")
	}
	return c.dc.Send(data)
}

// Close closes the peer connection.
func (c *WebRTCConn) Close() error {
	c.shutdown()
	return c.pc.Close()
}

// AudioTrack returns the remote audio track, or nil if it has not arrived.
func (c *WebRTCConn) AudioTrack() *webrtc.TrackRemote {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteTrack
}

// PeerConnection returns the underlying WebRTC peer connection.
func (c *WebRTCConn) PeerConnection() *webrtc.PeerConnection {
	return c.pc
}

func (c *WebRTCConn) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}
