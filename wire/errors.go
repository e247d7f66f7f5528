package wire

import "fmt"

// ErrorKind identifies why an inbound frame was rejected.
type ErrorKind int

const (
	ErrMalformedJSON ErrorKind = iota
	ErrMissingField
	ErrUnsupportedMime
	ErrBadBase64
)

func (k ErrorKind) String() string {
	switch k {
	case ErrMalformedJSON:
		return "malformed JSON"
	case ErrMissingField:
		return "missing field"
	case ErrUnsupportedMime:
		return "unsupported mime type"
	case ErrBadBase64:
		return "bad base64"
	default:
		return "unknown decode error"
	}
}

// DecodeError is a per-message failure. Relays log it and keep reading; it is
// never fatal to the session.
type DecodeError struct {
	Kind  ErrorKind
	Field string // offending field name or mime type, when known
	cause error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Field)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	}
	return e.Kind.String()
}

func (e *DecodeError) Unwrap() error { return e.cause }
