package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require := require.New(t)

	cases := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"":        InfoLevel,
		"warn":    WarnLevel,
		"Warning": WarnLevel,
		"error":   ErrorLevel,
		"fatal":   FatalLevel,
	}
	for name, want := range cases {
		got, err := ParseLevel(name)
		require.NoError(err, name)
		require.Equal(want, got, name)
	}

	_, err := ParseLevel("verbose")
	require.EqualError(err, `unknown log level "verbose"`)
}

func TestSlogLogger(t *testing.T) {
	t.Setenv("ENV", "")

	t.Run("JSON records", func(t *testing.T) {
		require := require.New(t)

		var buf bytes.Buffer
		l := NewSlog(InfoLevel, false, WithOutput(&buf))

		l.Debug("hidden")
		l.Info("Protocol OK", "text", "hello")

		var rec map[string]any
		require.NoError(json.Unmarshal(buf.Bytes(), &rec))
		require.Equal("Protocol OK", rec["msg"])
		require.Equal("hello", rec["text"])
		require.Contains(rec, "ts")
	})

	t.Run("Level changes are shared with children", func(t *testing.T) {
		require := require.New(t)

		var buf bytes.Buffer
		l := NewSlog(InfoLevel, false, WithOutput(&buf))
		child := l.With("conn", "c1")

		require.Equal(InfoLevel, child.Level())
		l.SetLevel(DebugLevel)
		require.Equal(DebugLevel, child.Level())

		child.Debug("sent")
		require.Contains(buf.String(), `"conn":"c1"`)
	})

	t.Run("File output", func(t *testing.T) {
		require := require.New(t)

		var buf bytes.Buffer
		path := filepath.Join(t.TempDir(), "logs", "msgseq.log")
		l := NewSlog(InfoLevel, false, WithOutput(&buf), WithFile(path, false))

		l.Warn("peer gone")

		data, err := os.ReadFile(path)
		require.NoError(err)
		require.Contains(string(data), "peer gone")
		require.Contains(buf.String(), "peer gone")
	})

	t.Run("File can't be opened", func(t *testing.T) {
		require := require.New(t)

		// the parent of the log directory is a regular file
		blocker := filepath.Join(t.TempDir(), "blocker")
		require.NoError(os.WriteFile(blocker, nil, 0o600))

		var buf bytes.Buffer
		l := NewSlog(InfoLevel, false, WithOutput(&buf), WithFile(filepath.Join(blocker, "logs", "msgseq.log"), true))

		var rec map[string]any
		require.NoError(json.Unmarshal(buf.Bytes(), &rec))
		require.Equal("failed to open log file, logging to stderr", rec["msg"])
		require.Equal("WARN", rec["level"])
		require.Contains(rec["error"], "create log directory")

		buf.Reset()
		l.Info("still logging")
		require.Contains(buf.String(), "still logging")
	})
}

func TestMockLogger_Messages(t *testing.T) {
	require := require.New(t)

	m := NewMockLogger().AllowAll()
	m.Info("Protocol OK", "text", "a")
	m.Error("Protocol ERR", "expected", "b")
	m.Info("Protocol OK", "text", "c")

	require.Equal([]string{"Protocol OK", "Protocol OK"}, m.Messages("Info"))
	require.Equal([]string{"Protocol ERR"}, m.Messages("Error"))
	require.Empty(m.Messages("Warn"))
}

func TestMockLogger_ConcurrentMessages(t *testing.T) {
	require := require.New(t)

	m := NewMockLogger().AllowAll()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				m.Debug("task terminated")
			}
		}()
	}

	// reading while other goroutines log
	for range 100 {
		for _, msg := range m.Messages("Debug") {
			require.Equal("task terminated", msg)
		}
	}
	wg.Wait()

	require.Len(m.Messages("Debug"), 400)
}
