package parser

import (
	"strings"
	"time"
)

// Level is the severity of a single log entry, ordered from least to most
// severe so that issue severity can be computed with a plain max.
type Level int

const (
	LevelVerbose Level = iota
	LevelInformation
	LevelWarning
	LevelError
	LevelCritical
)

// String returns the canonical display name of the level.
func (l Level) String() string {
	switch l {
	case LevelVerbose:
		return "Verbose"
	case LevelInformation:
		return "Information"
	case LevelWarning:
		return "Warning"
	case LevelError:
		return "Error"
	case LevelCritical:
		return "Critical"
	default:
		return "Information"
	}
}

// ParseLevel maps the level spellings seen across capture formats onto a
// Level. Unknown spellings report ok=false; callers decide whether that is
// an anomaly or a default.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verbose", "trace":
		return LevelVerbose, true
	case "information", "info", "informational":
		return LevelInformation, true
	case "warning", "warn":
		return LevelWarning, true
	case "error", "err":
		return LevelError, true
	case "critical", "crit", "fatal":
		return LevelCritical, true
	}
	return LevelInformation, false
}

// LevelFromEventLog maps the numeric level field of the binary event-log
// format. Level 0 is "LogAlways" which carries no severity of its own.
func LevelFromEventLog(n int) Level {
	switch n {
	case 1:
		return LevelCritical
	case 2:
		return LevelError
	case 3:
		return LevelWarning
	case 5:
		return LevelVerbose
	default: // 0 (LogAlways) and 4 (Information)
		return LevelInformation
	}
}

// LogEntry is one structured record extracted from a device log file.
// Identity fields (UserID through SequenceNumber) are stamped by the
// pipeline after parsing; the parser fills the rest. Entries are treated
// as immutable once produced.
type LogEntry struct {
	UserID         string     `json:"user_id"`
	SystemName     string     `json:"system_name"`
	SessionID      string     `json:"session_id"`
	LogType        string     `json:"log_type"`
	SequenceNumber int        `json:"sequence_number"`
	Level          Level      `json:"level"`
	LevelKnown     bool       `json:"-"` // false when the source carried no recognizable level
	Source         string     `json:"source"`
	EventID        *int       `json:"event_id"`
	Timestamp      *time.Time `json:"timestamp"`
	Message        string     `json:"message"`
}

// FileResult is the outcome of parsing one physical log file.
// A file-level error (unreadable or corrupt container) is distinct from a
// readable file that simply matched no format, which yields zero entries
// and a nil Err.
type FileResult struct {
	Entries        []LogEntry
	RecordsSkipped int
	Err            error
}
