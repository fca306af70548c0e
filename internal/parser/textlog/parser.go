package textlog

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fleetlens/internal/parser"

	"github.com/pterm/pterm"
)

// Parser extracts LogEntry records from exported text event logs.
// Devices in the field have produced three generations of export formats,
// so parsing runs an ordered chain of mutually exclusive strategies and
// keeps the first one that yields at least one entry.
type Parser struct {
	logger     *pterm.Logger
	strategies []strategy
}

// strategy is one structural interpretation of a text log file.
// parse returns zero entries when the file is not in this format.
type strategy interface {
	name() string
	parse(lines []string) []parser.LogEntry
}

// NewParser creates a text log parser with the standard strategy chain:
// block format, legacy multi-line format, inline single-line format.
func NewParser(logger *pterm.Logger) *Parser {
	return &Parser{
		logger: logger,
		strategies: []strategy{
			newBlockStrategy(),
			newLegacyStrategy(),
			newInlineStrategy(),
		},
	}
}

// Name returns the parser identifier.
func (p *Parser) Name() string {
	return "textlog"
}

// CanParse accepts plain-text log exports by extension.
func (p *Parser) CanParse(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".log", ".txt":
		return true
	}
	return false
}

// ParseFile reads the file and runs the strategy chain. A file that no
// strategy can interpret yields zero entries and a warning, not an error;
// empty or irrelevant files are expected in the field.
func (p *Parser) ParseFile(path string) parser.FileResult {
	data, err := os.ReadFile(path)
	if err != nil {
		p.logger.WithCaller().Warn("Failed to read text log file",
			p.logger.Args("path", path, "error", err))
		return parser.FileResult{Err: err}
	}

	lines := splitLines(string(data))

	for _, s := range p.strategies {
		entries := s.parse(lines)
		if len(entries) == 0 {
			continue
		}
		p.logger.Debug("Text log strategy matched",
			p.logger.Args("path", path, "strategy", s.name(), "entries", len(entries)))
		return parser.FileResult{Entries: entries}
	}

	p.logger.Warn("No text log strategy matched file",
		p.logger.Args("path", path, "lines", len(lines)))
	return parser.FileResult{}
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n")
}

// timestampLayouts covers the formats seen across the export generations.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"1/2/2006 3:04:05 PM",
	"02.01.2006 15:04:05",
}

// parseTimestamp returns nil for unparsable timestamps; the entry is kept
// either way.
func parseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func parseEventID(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
