package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex

	output   io.Writer = os.Stderr
	outputMu sync.RWMutex
)

// NewLogger returns the logger for a component, creating it on first use.
// Level comes from BITCOACH_LOG_LEVEL (default "warn"); BITCOACH_LOG_FORMAT=json
// switches to JSON output. Logs always go to stderr unless redirected with
// SetOutput, so stdout stays free for MCP framing and JSON command output.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	logger := logrus.New()
	logger.SetOutput(&sharedWriter{})

	levelStr := os.Getenv("BITCOACH_LOG_LEVEL")
	if levelStr == "" {
		levelStr = "warn"
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.WarnLevel
	}
	logger.SetLevel(level)

	if os.Getenv("BITCOACH_LOG_FORMAT") == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			DisableColors:    true,
			FullTimestamp:    true,
			TimestampFormat:  "2006-01-02 15:04:05",
			DisableQuote:     true,
			QuoteEmptyFields: true,
		})
	}

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

// SetOutput redirects every component logger. Tests use it to capture logs.
func SetOutput(w io.Writer) {
	outputMu.Lock()
	defer outputMu.Unlock()
	output = w
}

// sharedWriter forwards to the current package output.
type sharedWriter struct{}

func (sharedWriter) Write(p []byte) (int, error) {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return output.Write(p)
}
