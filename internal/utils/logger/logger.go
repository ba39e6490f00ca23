// Package logger provides a global logger for the application
package logger

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

func initLogger() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env not loaded; continuing with existing environment")
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).With().Caller().Logger()

	environment := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if environment == "" {
		environment = "prod"
	}

	var logLevel zerolog.Level
	switch environment {
	case "dev", "test":
		logLevel = zerolog.DebugLevel
		log.Info().Str("environment", environment).Msg("Development/Test environment detected - enabling debug logs")
	case "prod":
		logLevel = zerolog.InfoLevel
		log.Info().Str("environment", environment).Msg("Production environment detected - enabling info level and above")
	default:
		logLevel = zerolog.InfoLevel
		log.Warn().Str("environment", environment).Msg("Unknown environment - defaulting to production log level (info and above)")
	}

	if override := os.Getenv("LOG_LEVEL"); override != "" {
		if lvl, ok := ParseLevel(override); ok {
			logLevel = lvl
			log.Info().Str("log_level", override).Msg("LOG_LEVEL detected - overriding environment log level")
		} else {
			log.Warn().Str("log_level", override).Msg("unrecognised LOG_LEVEL, ignoring")
		}
	}

	zerolog.SetGlobalLevel(logLevel)
}

// Init initializes the logger with the configuration from the environment.
// It sets up the global logger to use zerolog with console output.
// Example usage:
//
//	logger.Init() <- inside whichever main() function in your entrypoint
//
// Then, `LOG_LEVEL=trace go run ./cmd/nodeapi`
func Init() {
	initLogger()
}

// SetLevel applies a named level globally; unknown names leave the level untouched.
func SetLevel(name string) bool {
	lvl, ok := ParseLevel(name)
	if !ok {
		return false
	}
	zerolog.SetGlobalLevel(lvl)
	return true
}

// ParseLevel maps a level name such as "debug" to its zerolog level.
func ParseLevel(name string) (zerolog.Level, bool) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || name == "" {
		return zerolog.NoLevel, false
	}
	return lvl, true
}
