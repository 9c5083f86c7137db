package boss

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/boss/errors"
)

type quotaError struct {
	limit int
}

func (e quotaError) Error() string { return "quota exceeded" }

func (e quotaError) Fields() map[string]any {
	return map[string]any{"limit": e.limit, "message": "ignored"}
}

func encode(t *testing.T, p Payload) string {
	t.Helper()
	data, err := p.Encode()
	require.NoError(t, err)
	return string(data)
}

func TestPayloadEncode(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		want    string
	}{
		{"zero stores nothing", NoPayload, ""},
		{"structured nil stores nothing", Structured(nil), ""},
		{"structured map", Structured(map[string]string{"to": "ada"}), `{"to":"ada"}`},
		{"structured raw kept verbatim", Structured(json.RawMessage(`{ "b": 1, "a": 2 }`)), `{ "b": 1, "a": 2 }`},
		{"structured bytes kept verbatim", Structured([]byte(`[1, 2]`)), `[1, 2]`},
		{"scalar string", Scalar("some string"), `{"value":"some string"}`},
		{"scalar number", Scalar(42), `{"value":42}`},
		{"error message", FromError(errors.New("boom")), `{"message":"boom"}`},
		{"nil error stores nothing", FromError(nil), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, encode(t, tt.payload))
		})
	}
}

func TestPayloadEncodeInvalid(t *testing.T) {
	_, err := Structured(json.RawMessage(`{not json`)).Encode()
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	_, err = Structured(make(chan int)).Encode()
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	_, err = Scalar(func() {}).Encode()
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestFromErrorCarriesDetailsHintsAndFields(t *testing.T) {
	err := errors.WithHint(
		errors.WithDetail(errors.Wrap(quotaError{limit: 3}, "send email"), "Recipient: ada@example.com"),
		"raise the quota",
	)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(encode(t, FromError(err))), &got))

	assert.Equal(t, "send email: quota exceeded", got["message"], "message comes from the error, not Fields")
	assert.Equal(t, float64(3), got["limit"])
	assert.Equal(t, []any{"Recipient: ada@example.com"}, got["details"])
	assert.Equal(t, []any{"raise the quota"}, got["hints"])
}

func TestFailureFrom(t *testing.T) {
	t.Run("plain error", func(t *testing.T) {
		assert.Equal(t, `{"message":"boom"}`, encode(t, FailureFrom(errors.New("boom"))))
	})

	t.Run("rejection with scalar", func(t *testing.T) {
		err := errors.Wrap(Reject(Scalar("nope")), "handler")
		assert.Equal(t, `{"value":"nope"}`, encode(t, FailureFrom(err)))
	})

	t.Run("rejection with structured value", func(t *testing.T) {
		err := Reject(Structured(map[string]int{"code": 7}))
		assert.Equal(t, `{"code":7}`, encode(t, FailureFrom(err)))
		assert.Equal(t, "job rejected: map[code:7]", err.Error())
	})

	t.Run("nil", func(t *testing.T) {
		assert.True(t, FailureFrom(nil).IsZero())
	})
}

func TestResultFrom(t *testing.T) {
	assert.True(t, ResultFrom(nil).IsZero())
	assert.Equal(t, `{"value":"ok"}`, encode(t, ResultFrom(Scalar("ok"))))
	p := Scalar(1)
	assert.Equal(t, `{"value":1}`, encode(t, ResultFrom(&p)))
	assert.Equal(t, `{"sent":true}`, encode(t, ResultFrom(map[string]bool{"sent": true})))
}

func TestPanicErrorPayload(t *testing.T) {
	assert.Equal(t, `{"message":"boom","panic":true}`, encode(t, FromError(panicError{value: "boom"})))
	assert.Equal(t, `{"message":"kaput","panic":true}`, encode(t, FromError(panicError{value: errors.New("kaput")})))
}
