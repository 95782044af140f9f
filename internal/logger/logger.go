package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger tagged with the component. Logs go to stderr so the meetings written to stdout stay clean;
// APP_ENV=dev switches to the human readable console format
func New(component string) zerolog.Logger {
	return NewWithWriter(component, os.Stderr)
}

func NewWithWriter(component string, out io.Writer) zerolog.Logger {
	if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Str("component", component).Logger()
}

// SetLevel sets the global level from its name; an empty name keeps the current level
func SetLevel(level string) error {
	if level == "" {
		return nil
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(parsed)
	return nil
}
