package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer for the duration of a test.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput := output
	originalColor := useColor
	output = buf
	useColor = false
	mu.Unlock()
	reconfigure()

	t.Cleanup(func() {
		mu.Lock()
		output = originalOutput
		useColor = originalColor
		mu.Unlock()
		SetFormat("text")
		SetLevel("INFO")
	})

	return buf
}

func decodeJSONLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry), buf.String())
	return entry
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level    string
		visible  []string
		filtered []string
	}{
		{"DEBUG", []string{"debug message", "info message", "warn message", "error message"}, nil},
		{"INFO", []string{"info message", "warn message", "error message"}, []string{"debug message"}},
		{"WARN", []string{"warn message", "error message"}, []string{"debug message", "info message"}},
		{"ERROR", []string{"error message"}, []string{"debug message", "info message", "warn message"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf := captureOutput(t)
			SetLevel(tt.level)

			Debug("debug message")
			Info("info message")
			Warn("warn message")
			Error("error message")

			out := buf.String()
			for _, msg := range tt.visible {
				assert.Contains(t, out, msg)
			}
			for _, msg := range tt.filtered {
				assert.NotContains(t, out, msg)
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	t.Run("CaseInsensitive", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("debug")
		Debug("lowercase works")
		assert.Contains(t, buf.String(), "lowercase works")
	})

	t.Run("InvalidIgnored", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("INFO")
		SetLevel("VERBOSE")
		Debug("hidden")
		Info("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})
}

func TestTextFormat(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")

	Info("object sent", KeyHandle, uint32(7), KeyBytes, int64(5))

	out := buf.String()
	assert.Contains(t, out, "[INFO]")
	assert.Contains(t, out, "object sent")
	assert.Contains(t, out, "handle=0x00000007")
	assert.Contains(t, out, "bytes=5")
}

func TestColorTextHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, true)).
		With(TransactionID(3))

	log.Info("Transaction done", Operation("GetObject"), Parent(0x12), Response("OK"))
	log.Warn("Transaction failed", Response("InvalidObjectHandle"), Err(errors.New("gone")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], colorGreen+"INFO"+colorReset)
	assert.Contains(t, lines[0], colorCyan+"transaction_id"+colorReset+"=3")
	assert.Contains(t, lines[0], "="+colorBlue+"GetObject"+colorReset)
	assert.Contains(t, lines[0], "="+colorGreen+"OK"+colorReset)
	assert.Contains(t, lines[0], "=0x00000012")
	assert.Contains(t, lines[1], "="+colorRed+"InvalidObjectHandle"+colorReset)
	assert.Contains(t, lines[1], "="+colorRed+"gone"+colorReset)

	buf.Reset()
	plain := slog.New(NewColorTextHandler(&buf, nil, false)).WithGroup("mtp")
	plain.Info("plain", Response("OK"))
	assert.Contains(t, buf.String(), " mtp.response=OK")
	assert.NotContains(t, buf.String(), "\033[")
}

func TestJSONFormat(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")
	SetFormat("json")

	Info("storage added", StorageID(0x00010001), Path("/srv/mtp"))

	entry := decodeJSONLine(t, buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "storage added", entry["msg"])
	assert.Equal(t, "0x00010001", entry["storage_id"])
	assert.Equal(t, "/srv/mtp", entry["path"])
	assert.Contains(t, entry, "time")
}

func TestFormatSwitching(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")

	SetFormat("json")
	SetFormat("xml")
	Info("still json")

	assert.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestContextLogging(t *testing.T) {
	t.Run("InjectsTransactionFields", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("INFO")
		SetFormat("json")

		lc := NewLogContext("GetObject", 1, 42).WithTrace("abc123", "xyz789")
		ctx := WithContext(context.Background(), lc)

		InfoCtx(ctx, "transfer complete", KeyBytes, 5)

		entry := decodeJSONLine(t, buf)
		assert.Equal(t, "abc123", entry["trace_id"])
		assert.Equal(t, "xyz789", entry["span_id"])
		assert.Equal(t, "GetObject", entry["operation"])
		assert.Equal(t, float64(1), entry["session_id"])
		assert.Equal(t, float64(42), entry["transaction_id"])
		assert.Equal(t, float64(5), entry["bytes"])
	})

	t.Run("SessionOmittedWhenClosed", func(t *testing.T) {
		buf := captureOutput(t)
		SetFormat("json")

		ctx := WithContext(context.Background(), NewLogContext("GetDeviceInfo", 0, 0))
		WarnCtx(ctx, "no session")

		entry := decodeJSONLine(t, buf)
		assert.NotContains(t, entry, "session_id")
		assert.Equal(t, float64(0), entry["transaction_id"])
	})

	t.Run("ContextWithoutLogContext", func(t *testing.T) {
		buf := captureOutput(t)
		ErrorCtx(context.Background(), "plain")
		assert.Contains(t, buf.String(), "plain")
	})
}

func TestLogContext(t *testing.T) {
	t.Run("CloneIsIndependent", func(t *testing.T) {
		lc := NewLogContext("OpenSession", 0, 1)
		clone := lc.WithSession(9)

		assert.Equal(t, uint32(0), lc.SessionID)
		assert.Equal(t, uint32(9), clone.SessionID)
		assert.Equal(t, lc.StartTime, clone.StartTime)
	})

	t.Run("NilSafe", func(t *testing.T) {
		var lc *LogContext
		assert.Nil(t, lc.Clone())
		assert.Nil(t, lc.WithTrace("a", "b"))
		assert.Zero(t, lc.DurationMs())
		assert.Nil(t, FromContext(nil)) //nolint:staticcheck
	})

	t.Run("DurationMs", func(t *testing.T) {
		lc := &LogContext{StartTime: time.Now().Add(-20 * time.Millisecond)}
		assert.GreaterOrEqual(t, lc.DurationMs(), 20.0)
	})
}

func TestFieldHelpers(t *testing.T) {
	assert.Equal(t, "0x1009", OpCode(0x1009).Value.String())
	assert.Equal(t, "0x00010001", StorageID(0x00010001).Value.String())
	assert.Equal(t, KeyError, Err(errors.New("boom")).Key)
	assert.True(t, Err(nil).Equal(Err(nil)))
	assert.Empty(t, Err(nil).Key)
}

func TestConcurrentLogging(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			Info("event sent", KeyHandle, n)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, strings.Count(buf.String(), "event sent"))
}

func TestInit(t *testing.T) {
	t.Run("FileOutput", func(t *testing.T) {
		captureOutput(t)
		path := t.TempDir() + "/mtpd.log"

		require.NoError(t, Init(Config{Level: "DEBUG", Format: "text", Output: path}))
		Debug("to file")

		mu.RLock()
		_, isFile := output.(interface{ Name() string })
		mu.RUnlock()
		assert.True(t, isFile)
	})

	t.Run("BadPath", func(t *testing.T) {
		captureOutput(t)
		err := Init(Config{Output: "/nonexistent-dir/mtpd.log"})
		assert.Error(t, err)
	})

	t.Run("InitWithWriter", func(t *testing.T) {
		captureOutput(t)
		var buf bytes.Buffer
		InitWithWriter(&buf, "INFO", "text", false)
		Info("hello writer")
		assert.Contains(t, buf.String(), "hello writer")
	})
}
