package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// eventBuffer sizes the channel between the Live receive pump and the
// consumer. Receive delivers bursts of small content parts.
const eventBuffer = 64

// GeminiRuntime implements Runtime on top of the Gemini Live API.
type GeminiRuntime struct {
	client       *genai.Client
	model        string
	voice        string
	systemPrompt string
}

// NewGeminiRuntime creates the shared GenAI client. One runtime serves all
// sessions of the process.
func NewGeminiRuntime(ctx context.Context, apiKey, model, voice, systemPrompt string) (*GeminiRuntime, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiRuntime{
		client:       client,
		model:        model,
		voice:        voice,
		systemPrompt: systemPrompt,
	}, nil
}

// CreateSession allocates a session handle. The Live connection itself is
// opened by OpenLiveRun.
func (rt *GeminiRuntime) CreateSession(_ context.Context, appName, userID, sessionID string) (Session, error) {
	return &geminiSession{
		rt:      rt,
		appName: appName,
		userID:  userID,
		id:      sessionID,
	}, nil
}

type geminiSession struct {
	rt      *GeminiRuntime
	appName string
	userID  string
	id      string

	mu     sync.Mutex
	live   *genai.Session
	stream *geminiStream
	closed bool
}

func (s *geminiSession) OpenLiveRun(ctx context.Context, cfg RunConfig) (EventStream, CommandSink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, fmt.Errorf("session %s is closed", s.id)
	}
	if s.live != nil {
		return nil, nil, fmt.Errorf("session %s already has a live run", s.id)
	}

	live, err := s.rt.client.Live.Connect(ctx, s.rt.model, liveConnectConfig(cfg, s.rt.systemPrompt))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Live API: %w", err)
	}
	s.live = live
	log.Printf("✅ [%s] Connected to Gemini Live (%s, %s)", s.id, s.rt.model, cfg.ResponseModality)

	s.stream = newGeminiStream(s.id, live)
	go s.stream.pump()

	return s.stream, &geminiSink{session: s}, nil
}

func (s *geminiSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.stream != nil {
		s.stream.stop()
	}
	if s.live != nil {
		return s.live.Close()
	}
	return nil
}

// liveConnectConfig translates a RunConfig into the Live API shape. The
// transcription flags become presence/absence of the config structs.
func liveConnectConfig(cfg RunConfig, systemPrompt string) *genai.LiveConnectConfig {
	lcc := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.Modality(cfg.ResponseModality)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: cfg.Voice,
				},
			},
		},
	}
	if systemPrompt != "" {
		lcc.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}
	if cfg.InputTranscription {
		lcc.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if cfg.OutputTranscription {
		lcc.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	return lcc
}

// geminiStream adapts the Live receive loop into a pull-based EventStream.
type geminiStream struct {
	sessionID string
	live      *genai.Session
	events    chan Event
	errc      chan error
	done      chan struct{}
	stopOnce  sync.Once
}

func newGeminiStream(sessionID string, live *genai.Session) *geminiStream {
	return &geminiStream{
		sessionID: sessionID,
		live:      live,
		events:    make(chan Event, eventBuffer),
		errc:      make(chan error, 1),
		done:      make(chan struct{}),
	}
}

// pump drains Receive until the Live connection ends, translating each server
// message into zero or more events. Runs in its own goroutine.
func (gs *geminiStream) pump() {
	for {
		resp, err := gs.live.Receive()
		if err != nil {
			select {
			case <-gs.done:
				// Consumer already stopped; the error is expected teardown.
			default:
				if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
					gs.errc <- io.EOF
				} else {
					gs.errc <- err
				}
			}
			return
		}
		for _, ev := range mapServerMessage(resp) {
			select {
			case gs.events <- ev:
			case <-gs.done:
				return
			}
		}
	}
}

func (gs *geminiStream) Next(ctx context.Context) (Event, error) {
	// The pump enqueues events before posting the terminal error, so buffered
	// events must drain first or the tail of the last turn would be lost to a
	// racing select.
	select {
	case ev := <-gs.events:
		return ev, nil
	default:
	}
	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case ev := <-gs.events:
		return ev, nil
	case err := <-gs.errc:
		return Event{}, err
	case <-gs.done:
		return Event{}, io.EOF
	}
}

func (gs *geminiStream) stop() {
	gs.stopOnce.Do(func() { close(gs.done) })
}

// mapServerMessage translates one Live server message into events. Model turn
// parts are streaming deltas, so they are always partial; an output
// transcription is partial until the runtime marks it finished.
func mapServerMessage(resp *genai.LiveServerMessage) []Event {
	sc := resp.ServerContent
	if sc == nil {
		// Setup acks, tool frames etc. carry nothing for the relay.
		return nil
	}

	var out []Event
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" {
				out = append(out, Event{Content: &ContentChunk{Text: part.Text, Partial: true}})
			}
			if part.InlineData != nil && strings.HasPrefix(part.InlineData.MIMEType, "audio/") && len(part.InlineData.Data) > 0 {
				out = append(out, Event{Content: &ContentChunk{
					Audio: &AudioChunk{
						MIMEType: part.InlineData.MIMEType,
						Data:     part.InlineData.Data,
					},
					Partial: true,
				}})
			}
		}
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		out = append(out, Event{Content: &ContentChunk{
			Text:    sc.OutputTranscription.Text,
			Partial: !sc.OutputTranscription.Finished,
		}})
	}
	if sc.TurnComplete || sc.Interrupted {
		out = append(out, Event{TurnStatus: &TurnStatus{
			TurnComplete: sc.TurnComplete,
			Interrupted:  sc.Interrupted,
		}})
	}
	return out
}

// geminiSink forwards relay commands into the Live session.
type geminiSink struct {
	session *geminiSession
}

func (k *geminiSink) liveSession() (*genai.Session, error) {
	k.session.mu.Lock()
	defer k.session.mu.Unlock()
	if k.session.closed || k.session.live == nil {
		return nil, fmt.Errorf("session %s is closed or not connected", k.session.id)
	}
	return k.session.live, nil
}

func (k *geminiSink) SendContent(content TextContent) error {
	live, err := k.liveSession()
	if err != nil {
		return err
	}
	turnComplete := true
	err = live.SendClientContent(genai.LiveSendClientContentParameters{
		Turns: []*genai.Content{
			{
				Role:  content.Role,
				Parts: []*genai.Part{{Text: content.Text}},
			},
		},
		TurnComplete: &turnComplete,
	})
	if err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	return nil
}

func (k *geminiSink) SendRealtime(blob RealtimeBlob) error {
	live, err := k.liveSession()
	if err != nil {
		return err
	}
	err = live.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{
			MIMEType: blob.MIMEType,
			Data:     blob.Data,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send audio: %w", err)
	}
	return nil
}
