package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New()

	Configure(logger, &buf, "debug", "json")
	logger.WithField("job", "tmdb-popular").Debug("Processing batch")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Processing batch", entry["msg"])
	assert.Equal(t, "tmdb-popular", entry["job"])
	assert.Equal(t, "debug", entry["level"])
}

func TestConfigure_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New()

	Configure(logger, &buf, "chatty", "text")
	assert.Equal(t, log.InfoLevel, logger.GetLevel())

	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	logger.Info("shown")
	assert.Contains(t, buf.String(), "shown")
}
