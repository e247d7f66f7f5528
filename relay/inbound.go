package relay

import (
	"context"
	"errors"
	"log"

	"github.com/ChanakaDev/ai-provider-example-websocket/agent"
	"github.com/ChanakaDev/ai-provider-example-websocket/wire"
)

// runInbound reads client frames, decodes them and enqueues runtime commands
// in receipt order. Malformed individual frames are logged and skipped; only
// transport closure, cancellation or a dead command sink end the loop.
func runInbound(ctx context.Context, sessionID string, transport Transport, sink agent.CommandSink) Completion {
	for {
		raw, err := transport.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return Completion{Reason: ReasonCanceled}
			}
			// Transport closed by the peer; the session as a whole is over.
			return Completion{Reason: ReasonClientClosed}
		}

		msg, err := wire.DecodeInbound(raw)
		if err != nil {
			var decErr *wire.DecodeError
			if errors.As(err, &decErr) && decErr.Kind == wire.ErrUnsupportedMime {
				log.Printf("[WARNING] [%s] unsupported mime type: %s", sessionID, decErr.Field)
			} else {
				log.Printf("[WARNING] [%s] dropping client message: %v", sessionID, err)
			}
			continue
		}

		switch wire.Classify(msg.MimeType) {
		case wire.KindText:
			if err := sink.SendContent(agent.TextContent{Role: msg.Role, Text: msg.Data}); err != nil {
				log.Printf("❌ [%s] failed to enqueue text: %v", sessionID, err)
				return Completion{Reason: ReasonError, Err: err}
			}
			log.Printf("[CLIENT TO AGENT] [%s] text/plain: %s", sessionID, msg.Data)

		case wire.KindAudio:
			data, err := wire.AudioData(msg)
			if err != nil {
				log.Printf("[WARNING] [%s] dropping audio message: %v", sessionID, err)
				continue
			}
			if err := sink.SendRealtime(agent.RealtimeBlob{MIMEType: msg.MimeType, Data: data}); err != nil {
				log.Printf("❌ [%s] failed to enqueue audio: %v", sessionID, err)
				return Completion{Reason: ReasonError, Err: err}
			}
			log.Printf("[CLIENT TO AGENT] [%s] %s: %d bytes", sessionID, msg.MimeType, len(data))
		}
	}
}
