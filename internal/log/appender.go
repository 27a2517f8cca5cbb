package log

import (
	"errors"
	"io"
)

// MultiWriter fans each log line out to every appender. A failing appender
// does not stop the others; their errors are joined.
type MultiWriter struct {
	writers []io.Writer
	closers []io.Closer
}

// NewMultiWriter creates a writer over the given appenders.
func NewMultiWriter(writers ...io.Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (m *MultiWriter) Write(p []byte) (int, error) {
	var errs []error
	for _, w := range m.writers {
		if _, err := w.Write(p); err != nil {
			errs = append(errs, err)
		}
	}
	return len(p), errors.Join(errs...)
}

// Add appends an appender the writer does not own.
func (m *MultiWriter) Add(writer io.Writer) *MultiWriter {
	m.writers = append(m.writers, writer)
	return m
}

// AddOwned appends an appender that Close releases.
func (m *MultiWriter) AddOwned(writer io.WriteCloser) *MultiWriter {
	m.writers = append(m.writers, writer)
	m.closers = append(m.closers, writer)
	return m
}

// Close releases owned appenders such as rotated log files. Stdout is never closed.
func (m *MultiWriter) Close() error {
	var errs []error
	for _, c := range m.closers {
		errs = append(errs, c.Close())
	}
	m.closers = nil
	return errors.Join(errs...)
}
