package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/ternarybob/arbor"
)

// ConsoleSink writes each line to an io.Writer
type ConsoleSink struct {
	w  io.Writer
	mu sync.Mutex
}

// NewConsoleSink creates a sink over w
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

// Println writes line followed by a newline. Write errors are dropped.
func (s *ConsoleSink) Println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, line)
}

// LogSink forwards each line to the logger at info level
type LogSink struct {
	logger arbor.ILogger
	runTag string
}

// NewLogSink creates a sink over logger; tag is attached to each entry as "source"
func NewLogSink(logger arbor.ILogger, tag string) *LogSink {
	return &LogSink{logger: logger, runTag: tag}
}

// Println logs line
func (s *LogSink) Println(line string) {
	s.logger.Info().Str("source", s.runTag).Msg(line)
}
