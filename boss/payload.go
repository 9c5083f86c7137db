package boss

import (
	"encoding/json"
	"fmt"

	"github.com/teranos/boss/errors"
)

type payloadKind int

const (
	payloadNone payloadKind = iota
	payloadStructured
	payloadScalar
	payloadError
)

// Payload is the response attached to a job when it reaches a terminal
// state. Build one with Structured, Scalar or FromError; the zero Payload
// stores no response.
//
//	Structured(v)   -> v as JSON, verbatim
//	Scalar(v)       -> {"value": v}
//	FromError(err)  -> {"message": err.Error(), ...}
type Payload struct {
	kind  payloadKind
	value any
	err   error
}

// NoPayload resolves a job without a response
var NoPayload = Payload{}

// Structured stores v as the response. json.RawMessage and []byte are
// stored as given and must be valid JSON; other values are marshalled.
func Structured(v any) Payload {
	if v == nil {
		return NoPayload
	}
	return Payload{kind: payloadStructured, value: v}
}

// Scalar wraps a bare value as {"value": v}
func Scalar(v any) Payload {
	return Payload{kind: payloadScalar, value: v}
}

// FromError stores {"message": err.Error()} plus "details" and "hints"
// attached with errors.WithDetail / errors.WithHint, and the fields of any
// FieldsError in the chain.
func FromError(err error) Payload {
	if err == nil {
		return NoPayload
	}
	return Payload{kind: payloadError, err: err}
}

// IsZero reports whether the payload stores no response
func (p Payload) IsZero() bool {
	return p.kind == payloadNone
}

// String describes the payload for logs
func (p Payload) String() string {
	switch p.kind {
	case payloadStructured:
		return "structured"
	case payloadScalar:
		return "scalar"
	case payloadError:
		return "error"
	default:
		return "none"
	}
}

// Encode produces the stored response. A zero payload encodes to nil.
func (p Payload) Encode() (json.RawMessage, error) {
	switch p.kind {
	case payloadNone:
		return nil, nil
	case payloadStructured:
		return encodeStructured(p.value)
	case payloadScalar:
		data, err := json.Marshal(map[string]any{"value": p.value})
		if err != nil {
			return nil, invalidArgument("scalar payload is not JSON encodable: %v", err)
		}
		return data, nil
	case payloadError:
		data, err := json.Marshal(errorFields(p.err))
		if err != nil {
			return nil, invalidArgument("error payload is not JSON encodable: %v", err)
		}
		return data, nil
	default:
		return nil, errors.AssertionFailedf("unknown payload kind %d", p.kind)
	}
}

func encodeStructured(v any) (json.RawMessage, error) {
	var raw []byte
	switch t := v.(type) {
	case json.RawMessage:
		raw = t
	case []byte:
		raw = t
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, invalidArgument("payload is not JSON encodable: %v", err)
		}
		return data, nil
	}
	if !json.Valid(raw) {
		return nil, invalidArgument("payload is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

// FieldsError is implemented by errors that carry structured fields.
// FromError merges the fields next to "message"; a "message" field is ignored.
type FieldsError interface {
	error
	Fields() map[string]any
}

func errorFields(err error) map[string]any {
	out := map[string]any{}

	var fe FieldsError
	if errors.As(err, &fe) {
		for k, v := range fe.Fields() {
			out[k] = v
		}
	}
	if details := errors.GetAllDetails(err); len(details) > 0 {
		out["details"] = details
	}
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		out["hints"] = hints
	}
	out["message"] = err.Error()
	return out
}

// RejectionError fails a job with an explicit payload. Handlers return it
// (via Reject) to fail with a scalar or structured value instead of an
// error message.
type RejectionError struct {
	Payload Payload
}

// Reject returns an error that fails the job with p as its response
func Reject(p Payload) error {
	return &RejectionError{Payload: p}
}

func (e *RejectionError) Error() string {
	switch e.Payload.kind {
	case payloadScalar, payloadStructured:
		return fmt.Sprintf("job rejected: %v", e.Payload.value)
	case payloadError:
		return "job rejected: " + e.Payload.err.Error()
	default:
		return "job rejected"
	}
}

// FailureFrom picks the failure payload for err: the payload of a
// RejectionError in the chain, otherwise FromError(err).
func FailureFrom(err error) Payload {
	if err == nil {
		return NoPayload
	}
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Payload
	}
	return FromError(err)
}

// ResultFrom picks the completion payload for a handler's return value:
// a Payload is used as-is, nil stores no response, anything else is
// Structured.
func ResultFrom(v any) Payload {
	switch t := v.(type) {
	case nil:
		return NoPayload
	case Payload:
		return t
	case *Payload:
		if t == nil {
			return NoPayload
		}
		return *t
	default:
		return Structured(v)
	}
}

// panicError is the failure recorded for a handler that panicked
type panicError struct {
	value any
	stack []byte
}

func (e panicError) Error() string {
	if err, ok := e.value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.value)
}

func (e panicError) Fields() map[string]any {
	return map[string]any{"panic": true}
}

func (e panicError) Unwrap() error {
	err, _ := e.value.(error)
	return err
}

func panicStack(err error) string {
	var p panicError
	if errors.As(err, &p) {
		return string(p.stack)
	}
	return ""
}
