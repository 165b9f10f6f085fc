package logger_test

import (
	"testing"

	"github.com/NeuralTrust/callgate/pkg/infra/logger"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Level(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	l, err := logger.NewLogger(logger.Options{Level: "debug"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())

	l, err = logger.NewLogger(logger.Options{Level: "nonsense"})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}

func TestNewLogger_EnvOverridesLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")

	l, err := logger.NewLogger(logger.Options{Level: "debug"})
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())
}

func TestNewLogger_RejectsFileOutsideLogs(t *testing.T) {
	_, err := logger.NewLogger(logger.Options{File: "/tmp/callgate.log"})
	assert.Error(t, err)
}
