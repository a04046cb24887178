package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("loud"))
}

func TestNew_CreatesLogDir(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	root := t.TempDir()
	l, err := New(root, false, "info")
	require.NoError(t, err)
	require.NotNil(t, l)
	_ = l.Sync()

	fi, err := os.Stat(filepath.Join(root, "logs"))
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestContextRoundTrip(t *testing.T) {
	l := zap.NewNop().Sugar()
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
