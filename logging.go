package filedex

import "github.com/rs/zerolog"

// newNopLogger returns the zero-overhead logger used whenever a caller
// doesn't supply one via WithLogger. Grounded on zeoday-chatlog's use of
// rs/zerolog threaded by value into each service constructor rather than
// a global logger.
func newNopLogger() zerolog.Logger {
	return zerolog.Nop()
}
