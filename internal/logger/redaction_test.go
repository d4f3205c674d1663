package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name  string
		input string
		leaks string
	}{
		{"bearer header", `Authorization: Bearer abc123.def-456`, "abc123"},
		{"basic header", `Authorization: Basic dTpwYXNzd29yZA==`, "dTpw"},
		{"api key env", `loaded CARS_API_KEY=sk-live-12345`, "sk-live"},
		{"bearer token env", `CARS_BEARER_TOKEN=tok-9`, "tok-9"},
		{"plain token env", `PETS_TOKEN=tok-10`, "tok-10"},
		{"password env", `CARS_PASSWORD=hunter2`, "hunter2"},
		{"json password", `"password":"hunter2"`, "hunter2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.Redact(tt.input)
			assert.NotContains(t, out, tt.leaks)
			assert.Contains(t, out, "[REDACTED]")
		})
	}
}

func TestRedact_LeavesOrdinaryTextAlone(t *testing.T) {
	r := NewRedactor()
	in := `{"level":"info","tool":"cars_listCars","status":200}`
	assert.Equal(t, in, r.Redact(in))
}

func TestRedactor_AddPattern(t *testing.T) {
	r := NewRedactor()
	require.NoError(t, r.AddPattern(`session-[0-9]+`))
	assert.Equal(t, "cookie [REDACTED]", r.Redact("cookie session-12345"))

	assert.Error(t, r.AddPattern(`([`))
}

func TestRedactingWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewRedactor().Wrap(&buf)

	_, err := w.Write([]byte("sending Bearer topsecret\n"))
	require.NoError(t, err)
	assert.Equal(t, "sending [REDACTED]\n", buf.String())
}
