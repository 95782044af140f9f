package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	//** Arrange
	t.Setenv("APP_ENV", "")
	var buffer bytes.Buffer

	//** Act
	log := NewWithWriter("solver", &buffer)
	log.Info().Int("variables", 12).Msg("model built")

	//** Assert
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &entry))
	assert.Equal(t, "solver", entry["component"])
	assert.Equal(t, "model built", entry["message"])
	assert.Equal(t, float64(12), entry["variables"])
}

func TestConsoleFormat(t *testing.T) {
	//** Arrange
	t.Setenv("APP_ENV", "dev")
	var buffer bytes.Buffer

	//** Act
	log := NewWithWriter("cli", &buffer)
	log.Info().Msg("ready")

	//** Assert
	assert.Contains(t, buffer.String(), "ready")
	assert.False(t, json.Valid(buffer.Bytes()))
}

func TestSetLevel(t *testing.T) {
	previous := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(previous)

	require.NoError(t, SetLevel("warn"))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	require.NoError(t, SetLevel(""))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	assert.Error(t, SetLevel("loud"))
}
