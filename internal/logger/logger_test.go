package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetGlobal(t *testing.T) {
	defer SetGlobal(nil, false)

	var buf bytes.Buffer
	SetGlobal(New(&buf, true), true)
	assert.True(t, IsDebug())

	Get().Debug("Wrote file", "path", "drizzle/0000_init.sql")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "path=drizzle/0000_init.sql")
}

func TestInfoLevelHidesDebug(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)
	l.Debug("hidden")
	l.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
