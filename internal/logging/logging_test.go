package logging_test

import (
	"bytes"
	"testing"

	"github.com/jrsteele09/go-console-session/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, logging.ParseLevel("DEBUG"))
	require.Equal(t, zerolog.WarnLevel, logging.ParseLevel(" warn "))
	require.Equal(t, zerolog.InfoLevel, logging.ParseLevel("chatty"))
	require.Equal(t, zerolog.InfoLevel, logging.ParseLevel(""))
}

func TestSetupWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logging.SetupWriter(&buf, "info", "PROD")
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	log.Info().Str("workspace_id", "ws_1").Msg("switched")
	require.Contains(t, buf.String(), `"workspace_id":"ws_1"`)
	require.Contains(t, buf.String(), `"message":"switched"`)

	buf.Reset()
	log.Debug().Msg("hidden")
	require.Empty(t, buf.String())
}
