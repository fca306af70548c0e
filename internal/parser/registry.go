package parser

import (
	"fmt"
	"path/filepath"

	"github.com/pterm/pterm"
)

// EntryParser turns one physical log file into LogEntry records.
// Implementations decide from the path alone whether a file is theirs;
// content-level failures are reported through FileResult.
type EntryParser interface {
	// Name returns the parser identifier (e.g. "textlog", "evtx").
	Name() string
	// CanParse reports whether this parser handles the given file path.
	CanParse(path string) bool
	// ParseFile reads and parses the file at path.
	ParseFile(path string) FileResult
}

// Registry holds the available parsers and routes files to the first one
// that claims them.
type Registry struct {
	logger  *pterm.Logger
	parsers []EntryParser
}

// NewRegistry creates an empty parser registry.
func NewRegistry(logger *pterm.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register appends a parser. Order matters: the first parser whose
// CanParse accepts a path wins.
func (r *Registry) Register(p EntryParser) {
	r.parsers = append(r.parsers, p)
	r.logger.Debug("Registered log parser", r.logger.Args("parser", p.Name()))
}

// ForFile returns the parser responsible for the given path.
func (r *Registry) ForFile(path string) (EntryParser, error) {
	for _, p := range r.parsers {
		if p.CanParse(path) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no parser registered for %q", filepath.Base(path))
}

// Names lists the registered parser identifiers.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.parsers))
	for _, p := range r.parsers {
		names = append(names, p.Name())
	}
	return names
}
