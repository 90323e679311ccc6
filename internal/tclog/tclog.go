// Package tclog supplies the daemon's structured logger and its daily
// rotating log-file path, generalising the teacher's ad hoc
// textcolor.go/log.go pair (a severity-to-color enum plus hand-rolled
// daily file naming) into a charmbracelet/log.Logger with a
// strftime-templated path, the same library the teacher already pulls in
// for its -T timestamp-format flag (src/xmit.go, src/tq.go).
package tclog

import (
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

// New returns a logger writing to w at the given level, with the
// timestamp and level styling charmbracelet/log provides out of the box.
// level is one of "debug", "info", "warn", "error".
func New(w *os.File, level string) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
	if lvl, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}

// DailyLogPath renders pattern (an strftime template, e.g. "%Y-%m-%d.log")
// against t and joins it under dir, matching the teacher's daily-name
// rotation in log_write (src/log.go) but letting the operator choose the
// naming scheme instead of a fixed "2006-01-02.log" layout.
func DailyLogPath(dir, pattern string, t time.Time) (string, error) {
	f, err := strftime.New(pattern)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, f.FormatString(t)), nil
}

// OpenDaily opens (creating if needed) the log file for t under dir,
// closing prev first if its name differs from the one t resolves to —
// the same "close and reopen on date rollover" rule as log_write.
func OpenDaily(dir, pattern string, t time.Time, prev *os.File) (*os.File, error) {
	path, err := DailyLogPath(dir, pattern, t)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		if prev.Name() == path {
			return prev, nil
		}
		prev.Close()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
}
