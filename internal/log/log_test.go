package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func capture(t *testing.T, o *Options) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, configure(o, zapcore.AddSync(&buf)))
	t.Cleanup(func() { _ = Configure(DefaultOptions()) })
	return &buf
}

func TestScopeLevels(t *testing.T) {
	s := RegisterScope("testScope", "test")
	require.Same(t, s, RegisterScope("testScope", "again"))

	buf := capture(t, &Options{OutputLevels: "testScope:warn"})
	s.Infof("hidden %d", 1)
	s.Warnf("shown %d", 2)
	s.Error("structured", zap.Int("rows", 3))

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "warn\ttestScope\tshown 2")
	require.Contains(t, out, `{"rows": 3}`)
}

func TestOverrideLevel(t *testing.T) {
	s := RegisterScope("otherScope", "test")
	buf := capture(t, &Options{OutputLevels: "all:debug", JSONEncoding: true})
	s.Debugf("deep")
	require.Contains(t, buf.String(), `"scope":"otherScope"`)
	require.Equal(t, DebugLevel, FindScope(DefaultScopeName).GetOutputLevel())
}

func TestInvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	err := configure(&Options{OutputLevels: "testScope:loud"}, zapcore.AddSync(&buf))
	require.Error(t, err)

	_, err = ParseLevel("verbose")
	require.Error(t, err)
	l, err := ParseLevel(" Info ")
	require.NoError(t, err)
	require.Equal(t, InfoLevel, l)
}
