package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pterm/pterm"
)

// LogFile is one discovered, parseable log file with the fleet identity
// carried by its position in the tree: {root}/{user}/{system}/{session}/.
// The session (capture timestamp) level is optional.
type LogFile struct {
	Path       string
	UserID     string
	SystemName string
	SessionID  string
	LogType    string
	Size       int64
	ModTime    time.Time
}

// DefaultLogTypes maps logical log-type names onto the physical filename
// patterns they may appear as. A logical type can map to several physical
// extensions; patterns are doublestar globs matched case-insensitively
// against the base name.
func DefaultLogTypes() map[string][]string {
	return map[string][]string{
		"System":      {"system.evtx", "system.evt", "system.log"},
		"Application": {"application.evtx", "application.evt", "application.log"},
		"Security":    {"security.evtx", "security.log"},
		"Setup":       {"setup.evtx", "setup.log"},
		"Agent":       {"agent*.log", "agent*.txt"},
	}
}

// Scanner enumerates the per-device log tree and fingerprints it.
type Scanner struct {
	logger   *pterm.Logger
	types    map[string][]string
	typeKeys []string // stable iteration order for deterministic matching
}

// NewScanner creates a scanner for the given logical log types. A nil map
// selects DefaultLogTypes.
func NewScanner(logger *pterm.Logger, types map[string][]string) *Scanner {
	if types == nil {
		types = DefaultLogTypes()
	}
	keys := make([]string, 0, len(types))
	for k := range types {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &Scanner{logger: logger, types: types, typeKeys: keys}
}

// Scan walks {root}/{user}/{system}/[{session}/] and collects files whose
// names match a configured logical log type. Unreadable sub-directories
// are skipped with a warning and never fail the scan; only an unreadable
// root itself is an error. The scan stats files but never reads contents.
func (s *Scanner) Scan(root string) ([]LogFile, error) {
	userDirs, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read logs root %s: %w", root, err)
	}

	var files []LogFile
	for _, userDir := range userDirs {
		if !userDir.IsDir() {
			continue
		}
		userPath := filepath.Join(root, userDir.Name())
		systemDirs, err := os.ReadDir(userPath)
		if err != nil {
			s.logger.Warn("Skipping unreadable user directory",
				s.logger.Args("path", userPath, "error", err))
			continue
		}
		for _, systemDir := range systemDirs {
			if !systemDir.IsDir() {
				continue
			}
			systemPath := filepath.Join(userPath, systemDir.Name())
			files = append(files, s.scanSystemDir(userDir.Name(), systemDir.Name(), systemPath)...)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	s.logger.Debug("Log discovery scan completed",
		s.logger.Args("root", root, "files", len(files)))
	return files, nil
}

// scanSystemDir collects log files directly under a system directory and,
// one level deeper, inside optional per-session capture directories.
func (s *Scanner) scanSystemDir(userID, systemName, systemPath string) []LogFile {
	entries, err := os.ReadDir(systemPath)
	if err != nil {
		s.logger.Warn("Skipping unreadable system directory",
			s.logger.Args("path", systemPath, "error", err))
		return nil
	}

	var files []LogFile
	for _, entry := range entries {
		if entry.IsDir() {
			sessionPath := filepath.Join(systemPath, entry.Name())
			files = append(files, s.scanLeafDir(userID, systemName, entry.Name(), sessionPath)...)
			continue
		}
		if lf, ok := s.classify(userID, systemName, "", systemPath, entry); ok {
			files = append(files, lf)
		}
	}
	return files
}

func (s *Scanner) scanLeafDir(userID, systemName, sessionID, dir string) []LogFile {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warn("Skipping unreadable session directory",
			s.logger.Args("path", dir, "error", err))
		return nil
	}
	var files []LogFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if lf, ok := s.classify(userID, systemName, sessionID, dir, entry); ok {
			files = append(files, lf)
		}
	}
	return files
}

func (s *Scanner) classify(userID, systemName, sessionID, dir string, entry os.DirEntry) (LogFile, bool) {
	logType, ok := s.matchLogType(entry.Name())
	if !ok {
		return LogFile{}, false
	}
	info, err := entry.Info()
	if err != nil {
		s.logger.Warn("Skipping unstatable log file",
			s.logger.Args("path", filepath.Join(dir, entry.Name()), "error", err))
		return LogFile{}, false
	}
	return LogFile{
		Path:       filepath.Join(dir, entry.Name()),
		UserID:     userID,
		SystemName: systemName,
		SessionID:  sessionID,
		LogType:    logType,
		Size:       info.Size(),
		ModTime:    info.ModTime(),
	}, true
}

// matchLogType resolves a file name to its logical log type, first match
// in stable type order wins.
func (s *Scanner) matchLogType(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, logType := range s.typeKeys {
		for _, pattern := range s.types[logType] {
			if ok, err := doublestar.Match(strings.ToLower(pattern), lower); err == nil && ok {
				return logType, true
			}
		}
	}
	return "", false
}
