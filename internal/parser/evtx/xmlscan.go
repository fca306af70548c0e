package evtx

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fleetlens/internal/parser"

	"github.com/pterm/pterm"
)

// xmlScanTier is the dependency-free fallback. The container embeds a
// rendered XML fragment for most records; a tolerant pattern search pulls
// <Event>...</Event> fragments straight out of the raw bytes and extracts
// the fields from text. Older records without embedded XML are skipped, so
// this tier trades completeness for running anywhere.
type xmlScanTier struct {
	logger *pterm.Logger
}

var (
	fragmentRe = regexp.MustCompile(`(?s)<Event[ >].*?</Event>`)
	eventIDRe  = regexp.MustCompile(`<EventID[^>]*>(\d+)</EventID>`)
	levelRe    = regexp.MustCompile(`<Level>(\d+)</Level>`)
	providerRe = regexp.MustCompile(`<Provider[^>]*Name=['"]([^'"]+)['"]`)
	timeRe     = regexp.MustCompile(`<TimeCreated[^>]*SystemTime=['"]([^'"]+)['"]`)
	dataRe     = regexp.MustCompile(`<Data(?:[^>]*Name=['"]([^'"]*)['"])?[^>]*>([^<]*)</Data>`)
)

func newXMLScanTier(logger *pterm.Logger) *xmlScanTier {
	return &xmlScanTier{logger: logger}
}

func (t *xmlScanTier) name() string { return "xmlscan" }

func (t *xmlScanTier) available() bool { return true }

func (t *xmlScanTier) parseFile(path string) parser.FileResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return parser.FileResult{Err: fmt.Errorf("read event-log file: %w", err)}
	}

	// Fragments are stored either as plain bytes or UTF-16LE. Try the raw
	// view first; if nothing matches, strip the interleaved NUL bytes of a
	// little-endian UTF-16 rendering and rescan.
	fragments := fragmentRe.FindAllString(string(data), -1)
	if len(fragments) == 0 {
		fragments = fragmentRe.FindAllString(string(bytes.ReplaceAll(data, []byte{0}, nil)), -1)
	}

	var res parser.FileResult
	for _, frag := range fragments {
		entry, ok := parseEventFragment(frag)
		if !ok {
			res.RecordsSkipped++
			continue
		}
		entry.SequenceNumber = len(res.Entries) + 1
		res.Entries = append(res.Entries, entry)
	}
	return res
}

// eventTimeLayouts covers the SystemTime spellings seen in rendered
// fragments.
var eventTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
}

// parseEventFragment extracts one LogEntry from a rendered <Event> XML
// fragment. It is shared by the OS-API tier (which renders fragments
// through the host) and the scan tier (which finds them in raw bytes).
// A fragment with neither an event ID nor a provider is unusable.
func parseEventFragment(frag string) (parser.LogEntry, bool) {
	var entry parser.LogEntry

	if m := eventIDRe.FindStringSubmatch(frag); m != nil {
		if id, err := strconv.Atoi(m[1]); err == nil {
			entry.EventID = &id
		}
	}

	entry.Source = "Unknown"
	if m := providerRe.FindStringSubmatch(frag); m != nil {
		entry.Source = m[1]
	}

	if entry.EventID == nil && entry.Source == "Unknown" {
		return parser.LogEntry{}, false
	}

	entry.Level = parser.LevelInformation
	if m := levelRe.FindStringSubmatch(frag); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			entry.Level = parser.LevelFromEventLog(n)
			entry.LevelKnown = true
		}
	}

	if m := timeRe.FindStringSubmatch(frag); m != nil {
		for _, layout := range eventTimeLayouts {
			if ts, err := time.Parse(layout, m[1]); err == nil {
				entry.Timestamp = &ts
				break
			}
		}
	}

	entry.Message = renderDataValues(frag)
	return entry, true
}

// renderDataValues joins the <Data> values of the EventData section into a
// single message line, keeping Name attributes when present.
func renderDataValues(frag string) string {
	matches := dataRe.FindAllStringSubmatch(frag, -1)
	if len(matches) == 0 {
		return ""
	}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		value := strings.TrimSpace(m[2])
		if value == "" {
			continue
		}
		if m[1] != "" {
			parts = append(parts, m[1]+"="+value)
		} else {
			parts = append(parts, value)
		}
	}
	return strings.Join(parts, "; ")
}
