package cmd

import (
	"log"
	"os"

	"github.com/warpdl/warpsched/common"
	"github.com/warpdl/warpsched/pkg/logger"
)

// newLogger writes to stderr at lvl, or at debug when the debug env var is set.
func newLogger(lvl logger.Level) logger.Logger {
	if os.Getenv(common.DebugEnv) != "" {
		lvl = logger.LevelDebug
	}
	return logger.NewLeveledLogger(log.New(os.Stderr, "", log.LstdFlags), lvl)
}
