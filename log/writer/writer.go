package writer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Console creates a console output writer.
func Console() zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:         os.Stdout,
		TimeFormat:  time.DateTime,
		FormatLevel: formatLevel,
	}
}

func formatLevel(i any) string {
	return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
}

// RotateConfig configures size-based log rotation.
type RotateConfig struct {
	Filepath   string
	Filename   string
	FileExt    string
	MaxSize    int  // max size of a single file in MB
	MaxBackups int  // number of rotated files kept
	MaxAge     int  // days rotated files are kept
	Compress   bool // gzip rotated files
}

func (c *RotateConfig) fileFullPath() string {
	return filepath.Join(c.Filepath, c.Filename+"."+c.FileExt)
}

// File creates a size-rotated file writer.
func File(config RotateConfig) io.Writer {
	return &lumberjack.Logger{
		Filename:   config.fileFullPath(),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
}
