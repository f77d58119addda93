package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SessionLog is the log file of one viewer session.
type SessionLog struct {
	Path string
	file *os.File
}

// SessionLogPath returns the log file path of a session started at start:
// <logsDir>/<appName>.<yyyymmdd_hhmmss>.log.
func SessionLogPath(logsDir, appName string, start time.Time) string {
	return filepath.Join(logsDir,
		fmt.Sprintf("%s.%s.log", appName, start.Format("20060102_150405")))
}

// OpenSessionLog creates logsDir if needed and opens the session's log file.
// A file left by a session started in the same second is moved to
// <path>.old.
func OpenSessionLog(logsDir, appName string, start time.Time) (*SessionLog, error) {
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating logs dir: %w", err)
	}

	path := SessionLogPath(logsDir, appName, start)
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".old"); err != nil {
			return nil, fmt.Errorf("keeping previous log: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return &SessionLog{Path: path, file: f}, nil
}

func (s *SessionLog) Write(p []byte) (int, error) {
	return s.file.Write(p)
}

func (s *SessionLog) Close() error {
	return s.file.Close()
}
