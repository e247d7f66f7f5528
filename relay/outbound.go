package relay

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"github.com/ChanakaDev/ai-provider-example-websocket/agent"
	"github.com/ChanakaDev/ai-provider-example-websocket/wire"
)

// runOutbound consumes the runtime event stream and writes client frames in
// the exact order events arrive. Turn status always produces a control frame.
// Text chunks are forwarded only while partial: consolidated finals are
// intentionally not re-sent, so the client never sees the same text twice.
func runOutbound(ctx context.Context, sessionID string, transport Transport, stream agent.EventStream) Completion {
	for {
		ev, err := stream.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return Completion{Reason: ReasonRuntimeEnded}
			case ctx.Err() != nil, errors.Is(err, context.Canceled):
				return Completion{Reason: ReasonCanceled}
			default:
				log.Printf("❌ [%s] runtime stream error: %v", sessionID, err)
				return Completion{Reason: ReasonError, Err: err}
			}
		}

		if ev.Empty() {
			continue
		}

		if ev.TurnStatus != nil {
			frame, err := wire.EncodeControl(wire.Control{
				TurnComplete: ev.TurnStatus.TurnComplete,
				Interrupted:  ev.TurnStatus.Interrupted,
			})
			if err != nil {
				log.Printf("❌ [%s] failed to encode control frame: %v", sessionID, err)
				continue
			}
			if done := writeFrame(ctx, sessionID, transport, frame); done != nil {
				return *done
			}
			log.Printf("[AGENT TO CLIENT] [%s] turn_complete=%t interrupted=%t",
				sessionID, ev.TurnStatus.TurnComplete, ev.TurnStatus.Interrupted)
			continue
		}

		chunk := ev.Content
		if chunk.Text != "" && chunk.Partial {
			frame, err := wire.EncodeMessage(wire.NewTextMessage(chunk.Text))
			if err != nil {
				log.Printf("❌ [%s] failed to encode text frame: %v", sessionID, err)
				continue
			}
			if done := writeFrame(ctx, sessionID, transport, frame); done != nil {
				return *done
			}
			log.Printf("[AGENT TO CLIENT] [%s] text/plain: %s", sessionID, chunk.Text)
		}

		if chunk.Audio != nil && strings.HasPrefix(chunk.Audio.MIMEType, "audio/") && len(chunk.Audio.Data) > 0 {
			frame, err := wire.EncodeMessage(wire.NewAudioMessage(chunk.Audio.MIMEType, chunk.Audio.Data))
			if err != nil {
				log.Printf("❌ [%s] failed to encode audio frame: %v", sessionID, err)
				continue
			}
			if done := writeFrame(ctx, sessionID, transport, frame); done != nil {
				return *done
			}
			log.Printf("[AGENT TO CLIENT] [%s] %s: %d bytes", sessionID, chunk.Audio.MIMEType, len(chunk.Audio.Data))
		}
	}
}

// writeFrame sends one frame, returning a completion when the relay must end.
func writeFrame(ctx context.Context, sessionID string, transport Transport, frame []byte) *Completion {
	if err := transport.WriteMessage(frame); err != nil {
		if ctx.Err() != nil {
			return &Completion{Reason: ReasonCanceled}
		}
		log.Printf("❌ [%s] client write failed: %v", sessionID, err)
		return &Completion{Reason: ReasonError, Err: err}
	}
	return nil
}
