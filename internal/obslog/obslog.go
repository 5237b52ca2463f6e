// Package obslog wires the structured logger used throughout the
// drivers, grounded on bbak-mcs-mcp's internal/logging package: a
// zerolog console writer (colorized only on a real terminal, detected
// via go-isatty) multiplexed with a lumberjack rotating file sink. This
// replaces the teacher's bare log.Printf/fmt.Println calls in
// sir_simulation.go/si_simulator.go.
package obslog

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures Init. LogFile may be empty, in which case only the
// console sink is used.
type Options struct {
	LogFile  string
	Verbose  bool
	MaxSizeMB int
}

// Init builds a logger that writes to stderr and, if LogFile is set, to
// a rotating file. Unlike the teacher's bare fmt.Println calls, every
// driver message carries structured fields (run ID, driver name, time
// horizon, event count) a caller can filter and aggregate on.
func Init(opts Options) zerolog.Logger {
	level := zerolog.InfoLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}

	isTerminal := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !isTerminal,
	}

	var out io.Writer = console
	if opts.LogFile != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 16
		}
		file := &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    maxSize,
			MaxBackups: 8,
			MaxAge:     90,
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(console, file)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
