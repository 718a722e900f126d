package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns a console logger tagged with the given component name.
func New(component string) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Str("component", component).Logger()
}
