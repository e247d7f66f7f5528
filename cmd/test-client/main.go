// Manual end-to-end check: dials a running server, sends one text message and
// prints everything the agent streams back until the turn completes.
package main

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ChanakaDev/ai-provider-example-websocket/wire"
)

// frame covers both shapes the server sends: content messages and the
// mime-less turn-status control message.
type frame struct {
	MimeType     string `json:"mime_type"`
	Data         string `json:"data"`
	Role         string `json:"role"`
	TurnComplete *bool  `json:"turn_complete"`
	Interrupted  *bool  `json:"interrupted"`
}

func main() {
	host := os.Getenv("SERVER_ADDR")
	if host == "" {
		host = "localhost:8000"
	}

	sessionID := uuid.New().String()
	u := url.URL{
		Scheme:   "ws",
		Host:     host,
		Path:     "/ws/" + sessionID,
		RawQuery: "is_audio=false",
	}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	text := "Hello! Say hi back in one sentence."
	if len(os.Args) > 1 {
		text = os.Args[1]
	}

	out, err := wire.EncodeMessage(&wire.Message{
		MimeType: wire.MimeTextPlain,
		Data:     text,
		Role:     wire.RoleUser,
	})
	if err != nil {
		log.Fatalf("Failed to encode message: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
		log.Fatalf("Failed to send message: %v", err)
	}
	log.Printf("📤 Sent: %s", text)

	// Read replies until the turn completes or the deadline passes
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Printf("Connection closed: %v", err)
			return
		}

		var f frame
		if err := sonic.Unmarshal(raw, &f); err != nil {
			log.Printf("⚠️ Unrecognized frame: %s", raw)
			continue
		}

		switch {
		case f.TurnComplete != nil:
			fmt.Println()
			log.Printf("✅ Turn complete (interrupted=%t)", f.Interrupted != nil && *f.Interrupted)
			return
		case f.MimeType == wire.MimeTextPlain:
			fmt.Print(f.Data)
		case f.MimeType != "":
			log.Printf("🔊 Received %s (%d base64 chars)", f.MimeType, len(f.Data))
		}
	}
}
