package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer, pattern string, level logrus.Level) Logger {
	l := logrus.New()
	l.SetFormatter(&formatter{pattern: pattern, time: DefaultTime})
	l.SetLevel(level)
	l.SetOutput(buf)
	return &logrusAdapter{Entry: logrus.NewEntry(l)}
}

func restoreLogger(t *testing.T) {
	t.Helper()
	before, beforeOut := GetLogger(), output
	t.Cleanup(func() {
		if output != nil && output != beforeOut {
			output.Close()
		}
		logger, output = before, beforeOut
	})
}

func TestGetLoggerBeforeInit(t *testing.T) {
	l := GetLogger()
	require.NotNil(t, l)
	assert.True(t, l.IsInfoEnabled())
	assert.False(t, l.IsDebugEnabled())
}

func TestInitStdoutOnly(t *testing.T) {
	before := GetLogger()
	restoreLogger(t)

	require.NoError(t, Init(&Config{Level: "debug"}))
	assert.True(t, GetLogger().IsDebugEnabled())
	assert.NotSame(t, before, GetLogger())
}

func TestInitNilConfigUsesDefaults(t *testing.T) {
	restoreLogger(t)

	require.NoError(t, Init(nil))
	assert.True(t, GetLogger().IsInfoEnabled())
	assert.False(t, GetLogger().IsDebugEnabled())
}

func TestInitWithFileOutput(t *testing.T) {
	restoreLogger(t)

	logPath := filepath.Join(t.TempDir(), "bypass.log")
	err := Init(&Config{
		Level: "info",
		File: FileAppenderOpt{
			Enabled:    true,
			Filename:   logPath,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		},
	})
	require.NoError(t, err)

	GetLogger().WithField("port", 9000).Info("bound")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bound")
	assert.Contains(t, string(data), "port=9000")
}

func TestInitWithInvalidLevel(t *testing.T) {
	err := Init(&Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestInitWithMissingFilename(t *testing.T) {
	err := Init(&Config{File: FileAppenderOpt{Enabled: true}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "filename")
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, "%level %msg", logrus.WarnLevel)

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "WARNING warn message")
	assert.Contains(t, out, "ERROR error message")
}

func TestFormatterPattern(t *testing.T) {
	f := &formatter{pattern: "%time [%level] %field %msg", time: time.RFC3339}
	entry := &logrus.Entry{
		Time:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Level:   logrus.InfoLevel,
		Message: "frame dropped",
		Data:    logrus.Fields{"reason": "malformed", "len": 12},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T12:00:00Z [INFO] len=12,reason=malformed frame dropped\n", string(out))
}

func TestFormatterCaller(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetFormatter(&formatter{pattern: "%caller %func %msg\n", time: DefaultTime})
	l.SetReportCaller(true)
	l.SetOutput(&buf)

	l.Info("here")

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "log/logger_test.go:"), out)
	assert.Contains(t, out, "TestFormatterCaller here")
}

func TestFormatterWithoutCaller(t *testing.T) {
	f := &formatter{pattern: "%caller|%func", time: DefaultTime}
	out, err := f.Format(&logrus.Entry{Data: logrus.Fields{}})
	require.NoError(t, err)
	assert.Equal(t, "unknown|unknown\n", string(out))
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, "%field %msg", logrus.InfoLevel)

	l.WithError(errors.New("boom")).WithFields(map[string]interface{}{"token": 3}).Error("push failed")
	assert.Equal(t, "error=boom,token=3 push failed\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestMultiWriter(t *testing.T) {
	var a, b bytes.Buffer
	w := NewMultiWriter().Add(&a).Add(failingWriter{}).Add(&b)

	n, err := w.Write([]byte("line"))
	assert.Equal(t, 4, n)
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, "line", a.String())
	assert.Equal(t, "line", b.String())
}

type countingCloser struct {
	bytes.Buffer
	closed int
}

func (c *countingCloser) Close() error {
	c.closed++
	return nil
}

func TestMultiWriterClosesOwnedAppenders(t *testing.T) {
	var shared bytes.Buffer
	owned := &countingCloser{}
	w := NewMultiWriter(&shared).AddOwned(owned)

	_, err := w.Write([]byte("line"))
	require.NoError(t, err)
	assert.Equal(t, "line", shared.String())
	assert.Equal(t, "line", owned.String())

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Equal(t, 1, owned.closed)
}

func TestMultiWriterJoinsErrors(t *testing.T) {
	w := NewMultiWriter(failingWriter{}, failingWriter{})
	_, err := w.Write([]byte("line"))
	require.Error(t, err)
	assert.Equal(t, "disk full\ndisk full", err.Error())
}

func TestInitReleasesReplacedFileAppender(t *testing.T) {
	restoreLogger(t)

	logPath := filepath.Join(t.TempDir(), "bypass.log")
	require.NoError(t, Init(&Config{File: FileAppenderOpt{Enabled: true, Filename: logPath}}))
	first := output
	require.NotNil(t, first)
	assert.Len(t, first.closers, 1)

	GetLogger().Info("before reinit")
	require.NoError(t, Init(&Config{}))
	assert.Empty(t, first.closers, "replaced file appender is closed")
	assert.NotSame(t, first, output)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "before reinit")
}
