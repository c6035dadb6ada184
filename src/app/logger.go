package app

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// InitLogger builds the root logger. Development gets colored console
// output; other environments log JSON. Logs go to stderr so CLI commands
// can print results on stdout.
func InitLogger(config AppConfig) zerolog.Logger {
	return newLogger(os.Stderr, *config.LogLevel, *config.Environment)
}

func newLogger(out io.Writer, levelStr, environment string) zerolog.Logger {
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if environment == "dev" || environment == "development" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    false,
			TimeFormat: "2006-01-02 15:04:05",
		}
	}

	return zerolog.New(out).With().
		Timestamp().
		Str("service", "walletcore").
		Logger()
}
