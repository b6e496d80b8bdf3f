package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var Logger = logrus.New()

type Options struct {
	Level      string
	Production bool
	// Dir receives one log file per day. Empty means stdout only.
	Dir string
}

func Init(opts Options) error {
	Logger = logrus.New()

	if opts.Production {
		Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	Logger.SetLevel(parseLevel(opts.Level))

	if opts.Dir == "" {
		Logger.SetOutput(os.Stdout)
		return nil
	}

	currentDate := time.Now().Format("02_01_2006")
	fullPath := filepath.Join(opts.Dir, currentDate+".log")

	if err := os.MkdirAll(opts.Dir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(fullPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	Logger.SetOutput(io.MultiWriter(os.Stdout, file))
	return nil
}

// parseLevel falls back to info for empty or unknown names.
func parseLevel(level string) logrus.Level {
	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}
