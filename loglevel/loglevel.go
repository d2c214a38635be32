package loglevel

import (
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// NewLevelFilterFromString filters logger by lvl: DEBUG, INFO, WARN or ERROR,
// anything else defaults to INFO.
func NewLevelFilterFromString(logger log.Logger, lvl string) log.Logger {
	switch strings.ToUpper(lvl) {
	case "DEBUG":
		return level.NewFilter(logger, level.AllowDebug())
	case "WARN":
		return level.NewFilter(logger, level.AllowWarn())
	case "ERROR":
		return level.NewFilter(logger, level.AllowError())
	default:
		return level.NewFilter(logger, level.AllowInfo())
	}
}
