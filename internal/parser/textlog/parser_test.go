package textlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fleetlens/internal/parser"

	"github.com/pterm/pterm"
)

func testLogger() *pterm.Logger {
	return pterm.DefaultLogger.WithLevel(pterm.LogLevelFatal)
}

func writeTempLog(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write temp log: %v", err)
	}
	return path
}

func TestParser_CanParse(t *testing.T) {
	p := NewParser(testLogger())

	accepted := []string{"system.log", "export.TXT", "/a/b/Application.log"}
	for _, path := range accepted {
		if !p.CanParse(path) {
			t.Errorf("Expected parser to accept %q", path)
		}
	}

	rejected := []string{"system.evtx", "notes.md", "archive.log.gz", "system"}
	for _, path := range rejected {
		if p.CanParse(path) {
			t.Errorf("Expected parser to reject %q", path)
		}
	}
}

func TestParser_ParseBlockFormat(t *testing.T) {
	content := `Event #12
========================================
Time: 2026-01-01 10:00:00
Level: Error
Source: Net
Event ID: 42
Category: Network
Message: Connection dropped
    retry budget exhausted

Event #13
========================================
Time: 2026-01-01 10:05:00
Level: Warning
Source: Disk
Event ID: 7
Message: Free space below threshold
`
	p := NewParser(testLogger())
	res := p.ParseFile(writeTempLog(t, "blocks.log", content))
	if res.Err != nil {
		t.Fatalf("Unexpected file error: %v", res.Err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(res.Entries))
	}

	first := res.Entries[0]
	if first.SequenceNumber != 12 {
		t.Errorf("Expected SequenceNumber 12, got %d", first.SequenceNumber)
	}
	if first.Level != parser.LevelError || !first.LevelKnown {
		t.Errorf("Expected known Error level, got %v (known=%v)", first.Level, first.LevelKnown)
	}
	if first.Source != "Net" {
		t.Errorf("Expected Source 'Net', got %q", first.Source)
	}
	if first.EventID == nil || *first.EventID != 42 {
		t.Errorf("Expected EventID 42, got %v", first.EventID)
	}
	expected := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	if first.Timestamp == nil || !first.Timestamp.Equal(expected) {
		t.Errorf("Expected Timestamp %v, got %v", expected, first.Timestamp)
	}
	if first.Message != "Connection dropped\n    retry budget exhausted" {
		t.Errorf("Unexpected multi-line message: %q", first.Message)
	}

	second := res.Entries[1]
	if second.Level != parser.LevelWarning {
		t.Errorf("Expected Warning level, got %v", second.Level)
	}
	if second.Message != "Free space below threshold" {
		t.Errorf("Unexpected message: %q", second.Message)
	}
}

func TestParser_ParseBlockFormat_MissingFields(t *testing.T) {
	// Time, Level and Source omitted entirely. The entry must survive with
	// nil timestamp, unknown level and the "Unknown" source placeholder.
	content := `Event #1
========================================
Message: something went wrong
`
	p := NewParser(testLogger())
	res := p.ParseFile(writeTempLog(t, "partial.log", content))
	if len(res.Entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(res.Entries))
	}

	entry := res.Entries[0]
	if entry.Timestamp != nil {
		t.Errorf("Expected nil Timestamp, got %v", entry.Timestamp)
	}
	if entry.LevelKnown {
		t.Error("Expected LevelKnown false for missing level")
	}
	if entry.Source != "Unknown" {
		t.Errorf("Expected Source 'Unknown', got %q", entry.Source)
	}
	if entry.Message != "something went wrong" {
		t.Errorf("Unexpected message: %q", entry.Message)
	}
}

func TestParser_ParseBlockFormat_GarbledTimestamp(t *testing.T) {
	content := `Event #1
========================================
Time: not a date at all
Level: Error
Source: Kernel
Message: boom
`
	p := NewParser(testLogger())
	res := p.ParseFile(writeTempLog(t, "garbled.log", content))
	if len(res.Entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(res.Entries))
	}
	if res.Entries[0].Timestamp != nil {
		t.Errorf("Expected nil Timestamp for garbled value, got %v", res.Entries[0].Timestamp)
	}
	if res.Entries[0].Level != parser.LevelError {
		t.Errorf("Expected Error level, got %v", res.Entries[0].Level)
	}
}

func TestParser_ParseLegacyFormat(t *testing.T) {
	content := `[Error] Net (Event 42)
Date: 2026-01-01 10:00:00
Description:
Connection dropped
retry budget exhausted

[Warning] Disk
Date: 2026-01-01 11:00:00
Description: Free space low
`
	p := NewParser(testLogger())
	res := p.ParseFile(writeTempLog(t, "legacy.log", content))
	if len(res.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(res.Entries))
	}

	first := res.Entries[0]
	if first.Level != parser.LevelError {
		t.Errorf("Expected Error level, got %v", first.Level)
	}
	if first.Source != "Net" {
		t.Errorf("Expected Source 'Net', got %q", first.Source)
	}
	if first.EventID == nil || *first.EventID != 42 {
		t.Errorf("Expected EventID 42, got %v", first.EventID)
	}
	if first.Message != "Connection dropped\nretry budget exhausted" {
		t.Errorf("Unexpected message: %q", first.Message)
	}

	second := res.Entries[1]
	if second.EventID != nil {
		t.Errorf("Expected nil EventID, got %v", second.EventID)
	}
	if second.Message != "Free space low" {
		t.Errorf("Unexpected inline description: %q", second.Message)
	}
	if second.SequenceNumber != 2 {
		t.Errorf("Expected assigned SequenceNumber 2, got %d", second.SequenceNumber)
	}
}

func TestParser_ParseLegacyFormat_BracketInBody(t *testing.T) {
	// A bracketed token that is not a level must not start a new entry.
	content := `[Error] App
Date: 2026-01-01 10:00:00
Description:
module [cache] failed to load
`
	p := NewParser(testLogger())
	res := p.ParseFile(writeTempLog(t, "bracket.log", content))
	if len(res.Entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(res.Entries))
	}
	if res.Entries[0].Message != "module [cache] failed to load" {
		t.Errorf("Unexpected message: %q", res.Entries[0].Message)
	}
}

func TestParser_ParseInlineFormat(t *testing.T) {
	content := `2026-01-01 10:00:00 Error Net[42]: Connection dropped
2026-01-01T10:05:00 warning Disk: Free space low
garbage line that matches nothing
2026-01-01 10:10:00 Information svc.updater: Check complete
`
	p := NewParser(testLogger())
	res := p.ParseFile(writeTempLog(t, "inline.log", content))
	if len(res.Entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(res.Entries))
	}

	first := res.Entries[0]
	if first.EventID == nil || *first.EventID != 42 {
		t.Errorf("Expected EventID 42, got %v", first.EventID)
	}
	if first.Message != "Connection dropped" {
		t.Errorf("Unexpected message: %q", first.Message)
	}

	if res.Entries[1].Level != parser.LevelWarning {
		t.Errorf("Expected case-insensitive Warning level, got %v", res.Entries[1].Level)
	}
	if res.Entries[2].Source != "svc.updater" {
		t.Errorf("Expected dotted source, got %q", res.Entries[2].Source)
	}
}

func TestParser_StrategyChain_FirstMatchWins(t *testing.T) {
	// Block header present, so the block strategy must claim the file even
	// though the body would also satisfy the inline pattern.
	content := `Event #1
========================================
Time: 2026-01-01 10:00:00
Level: Error
Source: Net
Message: 2026-01-01 10:00:00 Error Net[42]: nested line
`
	p := NewParser(testLogger())
	res := p.ParseFile(writeTempLog(t, "mixed.log", content))
	if len(res.Entries) != 1 {
		t.Fatalf("Expected block strategy to win with 1 entry, got %d", len(res.Entries))
	}
	if res.Entries[0].SequenceNumber != 1 {
		t.Errorf("Expected block sequence number 1, got %d", res.Entries[0].SequenceNumber)
	}
}

func TestParser_NoStrategyMatches(t *testing.T) {
	p := NewParser(testLogger())
	res := p.ParseFile(writeTempLog(t, "noise.log", "just some free text\nno structure here\n"))
	if res.Err != nil {
		t.Fatalf("Unstructured file must not be a file error, got %v", res.Err)
	}
	if len(res.Entries) != 0 {
		t.Fatalf("Expected 0 entries, got %d", len(res.Entries))
	}
}

func TestParser_UnreadableFile(t *testing.T) {
	p := NewParser(testLogger())
	res := p.ParseFile(filepath.Join(t.TempDir(), "missing.log"))
	if res.Err == nil {
		t.Fatal("Expected file error for missing file")
	}
}

func TestParser_EntriesNeverNullLevelOrSource(t *testing.T) {
	// Whatever the input shape, produced entries carry a usable level enum
	// and a non-empty source.
	contents := []string{
		"Event #1\n====\nMessage: x\n",
		"[Error] Net\nDescription: y\n",
		"2026-01-01 10:00:00 Error Net: z\n",
	}
	p := NewParser(testLogger())
	for i, content := range contents {
		res := p.ParseFile(writeTempLog(t, "f.log", content))
		for _, entry := range res.Entries {
			if entry.Source == "" {
				t.Errorf("case %d: empty source", i)
			}
			if entry.Level < parser.LevelVerbose || entry.Level > parser.LevelCritical {
				t.Errorf("case %d: level out of range: %v", i, entry.Level)
			}
		}
	}
}
