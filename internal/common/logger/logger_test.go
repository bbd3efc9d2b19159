package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTagsService(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "svc", false)

	l.Info().Msg("hello")
	l.Debug().Msg("hidden")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.Split(buf.Bytes(), []byte("\n"))[0], &entry))
	assert.Equal(t, "svc", entry["service"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestCronLogger(t *testing.T) {
	var buf bytes.Buffer
	cl := NewCronLogger(New(&buf, "svc", true))

	cl.Info("skip", "entry", 1)
	cl.Error(errors.New("boom"), "panic", "job", "tick")

	out := buf.String()
	assert.Contains(t, out, `"entry":1`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"job":"tick"`)
}
