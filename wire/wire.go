package wire

import (
	"encoding/base64"

	"github.com/bytedance/sonic"
)

// Mime types and roles used on the wire
const (
	MimeTextPlain = "text/plain"
	audioPrefix   = "audio/"

	RoleUser  = "user"
	RoleModel = "model"
)

// Message is the JSON envelope exchanged with the client in both directions.
// Text payloads carry UTF-8 in Data; audio payloads carry base64-encoded bytes.
type Message struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
	Role     string `json:"role,omitempty"`
}

// Control is the outbound-only turn signal. It has no mime_type/data and tells
// the client to clear any "typing" UI state.
type Control struct {
	TurnComplete bool `json:"turn_complete"`
	Interrupted  bool `json:"interrupted"`
}

// Kind classifies a mime type into the payload path it takes through a relay.
type Kind int

const (
	KindText Kind = iota
	KindAudio
	KindUnsupported
)

// Classify maps a mime type to its payload kind. "text/plain" is the text
// path, any "audio/*" subtype is the binary path, everything else is
// unsupported.
func Classify(mimeType string) Kind {
	switch {
	case mimeType == MimeTextPlain:
		return KindText
	case len(mimeType) > len(audioPrefix) && mimeType[:len(audioPrefix)] == audioPrefix:
		return KindAudio
	default:
		return KindUnsupported
	}
}

// inboundEnvelope uses pointers so that an absent field is distinguishable
// from an empty string.
type inboundEnvelope struct {
	MimeType *string `json:"mime_type"`
	Data     *string `json:"data"`
	Role     string  `json:"role"`
}

// DecodeInbound parses and validates one client frame. The returned message
// has Role defaulted to "user" when the client omitted it. All failures are
// *DecodeError values; none of them are fatal to the connection.
func DecodeInbound(raw []byte) (*Message, error) {
	var env inboundEnvelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return nil, &DecodeError{Kind: ErrMalformedJSON, cause: err}
	}
	if env.MimeType == nil {
		return nil, &DecodeError{Kind: ErrMissingField, Field: "mime_type"}
	}
	if env.Data == nil {
		return nil, &DecodeError{Kind: ErrMissingField, Field: "data"}
	}
	if Classify(*env.MimeType) == KindUnsupported {
		return nil, &DecodeError{Kind: ErrUnsupportedMime, Field: *env.MimeType}
	}
	msg := &Message{MimeType: *env.MimeType, Data: *env.Data, Role: env.Role}
	if msg.Role == "" {
		msg.Role = RoleUser
	}
	return msg, nil
}

// AudioData base64-decodes the payload of an audio message.
func AudioData(msg *Message) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		return nil, &DecodeError{Kind: ErrBadBase64, cause: err}
	}
	return data, nil
}

// NewTextMessage builds an outbound text frame. Outbound role is always "model".
func NewTextMessage(text string) *Message {
	return &Message{MimeType: MimeTextPlain, Data: text, Role: RoleModel}
}

// NewAudioMessage builds an outbound audio frame, preserving the
// runtime-reported mime type verbatim.
func NewAudioMessage(mimeType string, data []byte) *Message {
	return &Message{
		MimeType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
		Role:     RoleModel,
	}
}

// EncodeMessage serializes an outbound content frame.
func EncodeMessage(msg *Message) ([]byte, error) {
	return sonic.Marshal(msg)
}

// EncodeControl serializes an outbound turn-status frame.
func EncodeControl(ctrl Control) ([]byte, error) {
	return sonic.Marshal(ctrl)
}
