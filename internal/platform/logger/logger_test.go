package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", "json")
	log.Debug("hidden")
	log.Info("case file created", "case_file_number", "20240001")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "case file created", line["msg"])
	assert.Equal(t, "20240001", line["case_file_number"])
	assert.Equal(t, "compliance-api", line["service"])
}

func TestTextLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug", "text")
	log.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}
