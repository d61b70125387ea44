package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	for _, format := range []string{"", "console", "json"} {
		log, err := New("debug", format)
		require.NoError(t, err, format)
		require.NotNil(t, log)
	}

	_, err := New("loud", "console")
	assert.Error(t, err)

	_, err = New("info", "xml")
	assert.Error(t, err)
}

func TestWithAddsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	var log Logger = &zapLogger{sugar: zap.New(core).Sugar()}

	log.With("target", "web1/databases/shop").Info("artifact promoted", "to", "weekly")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "artifact promoted", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "web1/databases/shop", fields["target"])
	assert.Equal(t, "weekly", fields["to"])
}
