package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New builds the process logger and installs it as log.Logger.
// Output goes to stderr so reports on stdout stay machine readable.
func New(format string, verbose bool) (zerolog.Logger, error) {
	return NewWithWriter(os.Stderr, format, verbose)
}

// NewWithWriter is New with an explicit destination
func NewWithWriter(w io.Writer, format string, verbose bool) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	var out io.Writer
	switch format {
	case "", FormatConsole:
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: !isTerminal(w)}
	case FormatJSON:
		zerolog.TimeFieldFormat = time.RFC3339
		out = w
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q (use console or json)", format)
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return logger, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
