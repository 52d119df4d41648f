package logging

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotatingFile returns a writer appending to path.  The file is rotated
// when it grows past maxSizeMB megabytes; at most maxBackups rotated files
// are kept.  Close it on shutdown.
func RotatingFile(path string, maxSizeMB, maxBackups int) io.WriteCloser {
	if maxSizeMB < 1 {
		maxSizeMB = 1
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
}
