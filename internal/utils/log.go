// Package utils
package utils

import (
	"io"
	"log"
	"os"
	"sync"
)

const defaultLogFile = "rsicalc.log"

var (
	logger  *log.Logger
	once    sync.Once
	logPath = defaultLogFile
)

// SetLogFile changes the file GetLogger writes to. "-" means stderr.
// It must be called before the first GetLogger call to take effect.
func SetLogFile(path string) {
	if path != "" {
		logPath = path
	}
}

func GetLogger() *log.Logger {
	once.Do(func() {
		logger = log.New(openLogOutput(logPath), "RSI Calc: ", log.LstdFlags)
	})
	return logger
}

func openLogOutput(path string) io.Writer {
	if path == "-" {
		return os.Stderr
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("cannot open log file %s, logging to stderr: %v", path, err)
		return os.Stderr
	}
	return file
}
