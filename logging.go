/*
DESCRIPTION
  logging.go provides a convenience constructor for a file-rotating
  logging.Logger, matching the lumberjack-backed logger construction the
  teacher's command-line tools use ahead of opening their pipelines.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package mvflow

import (
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/utils/logging"
)

// NewFileLogger returns a logging.Logger that writes to a size- and
// age-rotated file at path, suitable for passing to WithLogger. level
// follows logging.Logger's verbosity convention (lower is more verbose).
func NewFileLogger(path string, level int8) logging.Logger {
	roller := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes.
		MaxBackups: 3,
		MaxAge:     28, // days.
	}
	return logging.New(level, roller, false)
}
