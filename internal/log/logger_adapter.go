package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// logrusAdapter satisfies Logger with the embedded entry's print methods and
// keeps derived loggers wrapped.
type logrusAdapter struct {
	*logrus.Entry
}

func newLogrus(c Config, level logrus.Level, out io.Writer) *logrusAdapter {
	l := logrus.New()
	l.SetFormatter(&formatter{pattern: c.Pattern, time: c.Time})
	l.SetLevel(level)
	l.SetReportCaller(strings.Contains(c.Pattern, "%caller") || strings.Contains(c.Pattern, "%func"))
	l.SetOutput(out)
	return &logrusAdapter{Entry: logrus.NewEntry(l)}
}

func newDefault() Logger {
	c := Config{}
	c.applyDefaults()
	return newLogrus(c, logrus.InfoLevel, os.Stderr)
}

// initByConfig builds a logger writing to stdout and, when enabled, a rotated
// file. The caller owns the returned writer.
func initByConfig(cfg *Config) (Logger, *MultiWriter, error) {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	c.applyDefaults()

	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}

	out := NewMultiWriter(os.Stdout)
	if c.File.Enabled {
		if _, err := out.AddFileAppender(c.File); err != nil {
			return nil, nil, err
		}
	}
	return newLogrus(c, level, out), out, nil
}

func (l *logrusAdapter) WithField(field string, value interface{}) Logger {
	return &logrusAdapter{Entry: l.Entry.WithField(field, value)}
}

func (l *logrusAdapter) WithFields(fields map[string]interface{}) Logger {
	return &logrusAdapter{Entry: l.Entry.WithFields(fields)}
}

func (l *logrusAdapter) WithError(err error) Logger {
	return &logrusAdapter{Entry: l.Entry.WithError(err)}
}

func (l *logrusAdapter) IsTraceEnabled() bool { return l.Logger.IsLevelEnabled(logrus.TraceLevel) }
func (l *logrusAdapter) IsDebugEnabled() bool { return l.Logger.IsLevelEnabled(logrus.DebugLevel) }
func (l *logrusAdapter) IsInfoEnabled() bool  { return l.Logger.IsLevelEnabled(logrus.InfoLevel) }
