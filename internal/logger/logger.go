// Package logger provides a logr.Logger implementation backed by zerolog.
package logger

import (
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/rs/zerolog"
)

// NewZeroLogr returns a logr.Logger interface built on top of zerolog. It
// writes structured JSON entries to stderr.
func NewZeroLogr() logr.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerologr.NameFieldName = "logger"
	zerologr.NameSeparator = "/"

	zl := zerolog.New(os.Stderr).
		With().
		Timestamp().
		Caller().
		Logger()

	return zerologr.New(&zl)
}
