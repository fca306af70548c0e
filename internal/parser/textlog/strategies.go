package textlog

import (
	"regexp"
	"strconv"
	"strings"

	"fleetlens/internal/parser"
)

// Block format (current export tooling):
//
//	Event #12
//	========================================
//	Time: 2026-01-01 10:00:00
//	Level: Error
//	Source: Net
//	Event ID: 42
//	Category: Network
//	Message: Connection dropped
//	    retry budget exhausted
//
// Label lines may appear in any order. The Message value may start inline
// or on the following lines; an entry ends at the next header, a "=" row,
// or EOF.
type blockStrategy struct {
	headerRe  *regexp.Regexp
	sepRe     *regexp.Regexp
	labelRe   *regexp.Regexp
	messageRe *regexp.Regexp
}

func newBlockStrategy() *blockStrategy {
	return &blockStrategy{
		headerRe:  regexp.MustCompile(`^Event #(\d+)\s*$`),
		sepRe:     regexp.MustCompile(`^=+\s*$`),
		labelRe:   regexp.MustCompile(`^(Time|Level|Source|Event ID|Category):\s*(.*)$`),
		messageRe: regexp.MustCompile(`^Message:\s*(.*)$`),
	}
}

func (s *blockStrategy) name() string { return "block" }

type blockFields struct {
	seq      int
	time     string
	level    string
	source   string
	eventID  string
	category string
	message  []string
}

func (s *blockStrategy) parse(lines []string) []parser.LogEntry {
	var entries []parser.LogEntry
	var cur *blockFields
	inMessage := false

	flush := func() {
		if cur == nil {
			return
		}
		entries = append(entries, buildBlockEntry(cur))
		cur = nil
		inMessage = false
	}

	for _, line := range lines {
		if m := s.headerRe.FindStringSubmatch(line); m != nil {
			flush()
			seq, _ := strconv.Atoi(m[1])
			cur = &blockFields{seq: seq}
			continue
		}
		if s.sepRe.MatchString(line) {
			// A separator directly under the header is decoration; one
			// hit mid-message terminates the entry.
			if inMessage {
				flush()
			}
			continue
		}
		if cur == nil {
			continue
		}
		if inMessage {
			cur.message = append(cur.message, line)
			continue
		}
		if m := s.messageRe.FindStringSubmatch(line); m != nil {
			inMessage = true
			if strings.TrimSpace(m[1]) != "" {
				cur.message = append(cur.message, m[1])
			}
			continue
		}
		if m := s.labelRe.FindStringSubmatch(line); m != nil {
			switch m[1] {
			case "Time":
				cur.time = m[2]
			case "Level":
				cur.level = m[2]
			case "Source":
				cur.source = m[2]
			case "Event ID":
				cur.eventID = m[2]
			case "Category":
				cur.category = m[2]
			}
		}
	}
	flush()

	return entries
}

func buildBlockEntry(f *blockFields) parser.LogEntry {
	level, known := parser.ParseLevel(f.level)
	source := strings.TrimSpace(f.source)
	if source == "" {
		source = "Unknown"
	}
	return parser.LogEntry{
		SequenceNumber: f.seq,
		Level:          level,
		LevelKnown:     known,
		Source:         source,
		EventID:        parseEventID(f.eventID),
		Timestamp:      parseTimestamp(f.time),
		Message:        strings.TrimSpace(strings.Join(f.message, "\n")),
	}
}

// Legacy multi-line format (older capture tooling, same fields in a
// different order):
//
//	[Error] Net (Event 42)
//	Date: 2026-01-01 10:00:00
//	Description:
//	Connection dropped
//
// The description body runs until the next header line or EOF.
type legacyStrategy struct {
	headerRe *regexp.Regexp
	dateRe   *regexp.Regexp
	descRe   *regexp.Regexp
}

func newLegacyStrategy() *legacyStrategy {
	return &legacyStrategy{
		headerRe: regexp.MustCompile(`^\[(\w+)\]\s+([\w.\-]+)(?:\s+\(Event\s+(\d+)\))?\s*$`),
		dateRe:   regexp.MustCompile(`^Date:\s*(.*)$`),
		descRe:   regexp.MustCompile(`^Description:\s*(.*)$`),
	}
}

func (s *legacyStrategy) name() string { return "legacy" }

func (s *legacyStrategy) parse(lines []string) []parser.LogEntry {
	var entries []parser.LogEntry
	var cur *parser.LogEntry
	var body []string
	inBody := false

	flush := func() {
		if cur == nil {
			return
		}
		cur.Message = strings.TrimSpace(strings.Join(body, "\n"))
		cur.SequenceNumber = len(entries) + 1
		entries = append(entries, *cur)
		cur = nil
		body = nil
		inBody = false
	}

	for _, line := range lines {
		if m := s.headerRe.FindStringSubmatch(line); m != nil {
			// Header only counts when the bracketed token is a level;
			// otherwise this is message text that happens to match.
			level, known := parser.ParseLevel(m[1])
			if !known {
				if inBody {
					body = append(body, line)
				}
				continue
			}
			flush()
			cur = &parser.LogEntry{
				Level:      level,
				LevelKnown: true,
				Source:     m[2],
				EventID:    parseEventID(m[3]),
			}
			continue
		}
		if cur == nil {
			continue
		}
		if !inBody {
			if m := s.dateRe.FindStringSubmatch(line); m != nil {
				cur.Timestamp = parseTimestamp(m[1])
				continue
			}
			if m := s.descRe.FindStringSubmatch(line); m != nil {
				inBody = true
				if strings.TrimSpace(m[1]) != "" {
					body = append(body, m[1])
				}
				continue
			}
			continue
		}
		body = append(body, line)
	}
	flush()

	return entries
}

// Inline format (oldest captures): every field on a single line.
//
//	2026-01-01 10:00:00 Error Net[42]: Connection dropped
type inlineStrategy struct {
	lineRe *regexp.Regexp
}

func newInlineStrategy() *inlineStrategy {
	return &inlineStrategy{
		lineRe: regexp.MustCompile(
			`^(\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2})\s+` +
				`(?i:(Verbose|Trace|Information|Info|Warning|Warn|Error|Critical|Fatal))\s+` +
				`([\w.\-]+)(?:\[(\d+)\])?:\s*(.*)$`),
	}
}

func (s *inlineStrategy) name() string { return "inline" }

func (s *inlineStrategy) parse(lines []string) []parser.LogEntry {
	var entries []parser.LogEntry
	for _, line := range lines {
		m := s.lineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		level, known := parser.ParseLevel(m[2])
		entries = append(entries, parser.LogEntry{
			SequenceNumber: len(entries) + 1,
			Level:          level,
			LevelKnown:     known,
			Source:         m[3],
			EventID:        parseEventID(m[4]),
			Timestamp:      parseTimestamp(m[1]),
			Message:        strings.TrimSpace(m[5]),
		})
	}
	return entries
}
