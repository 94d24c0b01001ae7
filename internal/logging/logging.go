package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fatih/color"
)

var (
	mu      sync.Mutex
	logFile *os.File
	debug   bool
)

func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var writers []io.Writer
	writers = append(writers, os.Stdout)

	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		logFile = file
		writers = append(writers, logFile)
	}

	log.SetOutput(io.MultiWriter(writers...))
	return nil
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	log.SetOutput(os.Stderr)
	err := logFile.Close()
	logFile = nil
	return err
}

// SetDebug toggles debug-level output for the process.
func SetDebug(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	debug = enabled
}

func LogEvent(format string, args ...any) {
	log.Println(fmt.Sprintf(format, args...))
}

// Debugf logs only when debug mode is enabled.
func Debugf(format string, args ...any) {
	mu.Lock()
	enabled := debug
	mu.Unlock()
	if !enabled {
		return
	}
	log.Println(fmt.Sprintf("[DEBUG] "+format, args...))
}

// Warnf logs a yellow warning. The color codes go to the terminal writer and
// are harmless in the log file.
func Warnf(format string, args ...any) {
	log.Println(color.YellowString("[WARN] "+format, args...))
}

// Errorf logs a red error.
func Errorf(format string, args ...any) {
	log.Println(color.RedString("[ERROR] "+format, args...))
}
