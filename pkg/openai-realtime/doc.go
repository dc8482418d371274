// Package openairealtime provides a client for OpenAI's Realtime API.
//
// The Realtime API enables low-latency, multimodal conversations with
// GPT-4o class models. It supports both WebSocket and WebRTC connections.
//
// The package is layered. A Transport carries JSON event frames over a Conn
// and dispatches them on an event bus. A Conversation rebuilds the item
// history from server events. A Session ties the two together, keeps the
// session configuration and registered tools, and answers tool calls.
//
// # Connection Modes
//
// WebSocket mode is suitable for server-side applications:
//
//	client := openairealtime.NewClient(apiKey)
//	session := openairealtime.NewSession(client)
//	if err := session.Connect(ctx); err != nil {
//	    return err
//	}
//	defer session.Disconnect()
//
// WebRTC mode is suitable for client-side applications with lower latency:
//
//	client := openairealtime.NewClient(apiKey,
//	    openairealtime.WithTransport(openairealtime.TransportWebRTC))
//	session := openairealtime.NewSession(client)
//
// # Session Configuration
//
// The session starts from DefaultSessionConfig, which has no turn detection.
// Overrides are merged in and pushed to the server when connected:
//
//	err = session.UpdateSession(&openairealtime.SessionConfig{
//	    Voice:        openairealtime.VoiceAlloy,
//	    Instructions: "You are a helpful assistant.",
//	    TurnDetection: &openairealtime.TurnDetection{
//	        Type: openairealtime.VADServerVAD,
//	    },
//	})
//
// # Sending Audio
//
//	// PCM 16-bit, 24kHz, mono
//	err = session.AppendInputAudio(samples)
//	err = session.CreateResponse()
//
// Without turn detection CreateResponse commits the buffered audio first.
//
// # Receiving Events
//
//	session.Events().On(openairealtime.SessionEventUpdated, func(ev *openairealtime.ConversationEvent) {
//	    if ev.Delta != nil {
//	        fmt.Print(ev.Delta.Text)
//	    }
//	})
//
//	ev, ok := session.Events().WaitForNext(ctx, openairealtime.SessionEventItemCompleted)
//
// # Tools
//
//	def, handler := openairealtime.MustNewFuncTool("add", "Adds two numbers",
//	    func(ctx context.Context, args AddArgs) (any, error) {
//	        return args.A + args.B, nil
//	    })
//	err = session.AddTool(def, handler)
//
// A Player plays assistant audio and, once attached to a session, cancels
// and truncates the playing response when the user starts speaking.
package openairealtime
