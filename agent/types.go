package agent

import "context"

// Modality selects whether a session's agent output is text-only or audio.
// Fixed for the lifetime of a session, chosen at connect time.
type Modality string

const (
	ModalityText  Modality = "TEXT"
	ModalityAudio Modality = "AUDIO"
)

// ModalityFromQuery maps the "is_audio" query parameter to a modality.
// Only the literal string "true" enables audio; anything else is text.
func ModalityFromQuery(isAudio string) Modality {
	if isAudio == "true" {
		return ModalityAudio
	}
	return ModalityText
}

// RunConfig is the immutable configuration bound to a session at creation.
type RunConfig struct {
	ResponseModality    Modality
	Voice               string
	InputTranscription  bool
	OutputTranscription bool
}

// NewRunConfig builds the run configuration for a modality. Audio sessions
// enable transcription in both directions so audio turns still produce text
// events; text sessions have no audio to transcribe back, so only input
// transcription is enabled.
func NewRunConfig(modality Modality, voice string) RunConfig {
	return RunConfig{
		ResponseModality:    modality,
		Voice:               voice,
		InputTranscription:  true,
		OutputTranscription: modality == ModalityAudio,
	}
}

// TurnStatus signals the end or interruption of one agent response cycle.
type TurnStatus struct {
	TurnComplete bool
	Interrupted  bool
}

// AudioChunk is a generated audio fragment with its runtime-reported mime type
// (subtype carries sample rate/encoding, e.g. "audio/pcm;rate=24000").
type AudioChunk struct {
	MIMEType string
	Data     []byte
}

// ContentChunk is a fragment of generated content. Partial marks an
// incremental streaming delta; non-partial chunks are consolidated finals.
type ContentChunk struct {
	Text    string
	Audio   *AudioChunk
	Partial bool
}

// Event is the tagged union produced by the agent runtime. An event with
// neither field set is empty and ignorable.
type Event struct {
	TurnStatus *TurnStatus
	Content    *ContentChunk
}

// Empty reports whether the event carries nothing.
func (e Event) Empty() bool { return e.TurnStatus == nil && e.Content == nil }

// TextContent is a complete, role-attributed client message.
type TextContent struct {
	Role string
	Text string
}

// RealtimeBlob is a raw untranscribed chunk (e.g. PCM audio) streamed to the
// runtime without content framing; the runtime transcribes it internally per
// the session's RunConfig.
type RealtimeBlob struct {
	MIMEType string
	Data     []byte
}

// EventStream is a lazy, non-restartable sequence of events. Next blocks for
// the next event, returns io.EOF when the runtime ends the session, and
// returns ctx.Err() when the caller cancels.
type EventStream interface {
	Next(ctx context.Context) (Event, error)
}

// CommandSink accepts commands into the runtime's inbound queue. Commands are
// owned by the runtime after enqueue.
type CommandSink interface {
	SendContent(content TextContent) error
	SendRealtime(blob RealtimeBlob) error
}

// Session is one runtime conversational context, bound 1:1 to a connection.
type Session interface {
	// OpenLiveRun starts the live exchange. At most one live run per session.
	OpenLiveRun(ctx context.Context, cfg RunConfig) (EventStream, CommandSink, error)
	Close() error
}

// Runtime allocates sessions. Implementations must keep the returned session
// handle safe for one concurrent reader (event stream) plus one concurrent
// writer (command sink).
type Runtime interface {
	CreateSession(ctx context.Context, appName, userID, sessionID string) (Session, error)
}
