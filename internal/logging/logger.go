// Package logging builds the process logger.
package logging

import (
	"io"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// New returns a logfmt logger writing to w, tagged with service and a UTC
// timestamp and filtered to levelName and above. Unknown levels mean info.
func New(w io.Writer, service, levelName string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.WithPrefix(logger, "service", service)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	return level.NewFilter(logger, Option(levelName))
}

// Option maps a configured level name to a level filter option
func Option(levelName string) level.Option {
	switch levelName {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}
