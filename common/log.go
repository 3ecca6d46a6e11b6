package common

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log is the process-wide structured logger. The teacher logs page-cache
// traffic with bare fmt.Printf (see Pager.evictLRU); we follow the
// sausheong-mindb paged-storage file's choice of zerolog instead, always
// through a console writer on stderr.
var Log = newLogger()

func newLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(writer).With().Timestamp().Logger()
}
