package evtx

import (
	"encoding/json"
	"fmt"
	"strconv"

	"fleetlens/internal/parser"

	evtxlib "github.com/0xrawsec/golang-evtx/evtx"
	"github.com/pterm/pterm"
)

// Paths into the rendered event map. The container stores every record as
// an Event element with a System section and an optional EventData section.
var (
	levelPath     = evtxlib.Path("/Event/System/Level")
	providerPath  = evtxlib.Path("/Event/System/Provider/Name")
	eventDataPath = evtxlib.Path("/Event/EventData")
)

// structuredTier decodes the container with the evtx library: it opens the
// file, walks chunks and iterates fully parsed records. This is the
// richest tier and the default everywhere the library can run.
type structuredTier struct {
	logger *pterm.Logger
}

func newStructuredTier(logger *pterm.Logger) *structuredTier {
	return &structuredTier{logger: logger}
}

func (t *structuredTier) name() string { return "structured" }

func (t *structuredTier) available() bool { return true }

func (t *structuredTier) parseFile(path string) parser.FileResult {
	// OpenDirty skips the file-header checksum so partially flushed logs
	// from crashed devices still decode.
	f, err := evtxlib.OpenDirty(path)
	if err != nil {
		return parser.FileResult{Err: fmt.Errorf("open evtx container: %w", err)}
	}
	defer f.Close()

	var res parser.FileResult
	seq := 0
	for event := range f.FastEvents() {
		entry, ok := t.convert(event)
		if !ok {
			res.RecordsSkipped++
			continue
		}
		seq++
		entry.SequenceNumber = seq
		res.Entries = append(res.Entries, entry)
	}
	return res
}

func (t *structuredTier) convert(event *evtxlib.GoEvtxMap) (parser.LogEntry, bool) {
	if event == nil {
		return parser.LogEntry{}, false
	}

	source, err := event.GetString(&providerPath)
	if err != nil || source == "" {
		source = "Unknown"
	}

	id := int(event.EventID())
	var eventID *int
	if id != 0 {
		eventID = &id
	}
	if eventID == nil && source == "Unknown" {
		// Record carries neither identity field; nothing to group on.
		return parser.LogEntry{}, false
	}

	level := parser.LevelInformation
	known := false
	if n, err := event.GetInt(&levelPath); err == nil {
		level = parser.LevelFromEventLog(int(n))
		known = true
	} else if s, err := event.GetString(&levelPath); err == nil {
		if n, convErr := strconv.Atoi(s); convErr == nil {
			level = parser.LevelFromEventLog(n)
			known = true
		}
	}

	entry := parser.LogEntry{
		Level:      level,
		LevelKnown: known,
		Source:     source,
		EventID:    eventID,
		Message:    renderEventData(event),
	}

	if ts := event.TimeCreated(); !ts.IsZero() {
		entry.Timestamp = &ts
	}
	return entry, true
}

// renderEventData flattens the EventData section to a compact JSON string.
// The container has no message catalog, so the raw data values are the
// closest thing to a rendered message.
func renderEventData(event *evtxlib.GoEvtxMap) string {
	data, err := event.GetMap(&eventDataPath)
	if err != nil || data == nil {
		return ""
	}
	b, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(b)
}
