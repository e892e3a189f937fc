package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds the root logger. Development gets a console writer, everything
// else structured JSON.
func New(serviceName, environment, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if environment == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	return zerolog.New(out).Level(lvl).With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}
