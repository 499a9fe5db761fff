package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestInit_SetsLevel(t *testing.T) {
	Init(Config{Level: "warn", Format: "json"})
	require.Equal(t, zerolog.WarnLevel, L().GetLevel())

	Init(Config{Level: "DEBUG"})
	require.Equal(t, zerolog.DebugLevel, L().GetLevel())
}

func TestInit_UnknownLevelFallsBackToInfo(t *testing.T) {
	Init(Config{Level: "verbose"})
	require.Equal(t, zerolog.InfoLevel, L().GetLevel())
}

func TestHelpers_RespectConfiguredLevel(t *testing.T) {
	Init(Config{Level: "warn"})

	require.False(t, Debug().Enabled())
	require.False(t, Info().Enabled())
	require.True(t, Warn().Enabled())
	require.True(t, Error().Enabled())

	Init(Config{Level: "debug"})
	require.True(t, Debug().Enabled())
	require.True(t, Info().Enabled())
}
