package detect

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"fleetlens/internal/parser"

	"gopkg.in/yaml.v3"
)

// MatchSpec is the tagged matcher variant of one catalog pattern: exactly
// one of regex, keywords, or source(+event_id) must be set.
type MatchSpec struct {
	Regex    string   `yaml:"regex,omitempty"`
	Keywords []string `yaml:"keywords,omitempty"`
	Source   string   `yaml:"source,omitempty"`
	EventID  *int     `yaml:"event_id,omitempty"`
}

// Pattern is one entry of the issue-pattern catalog: a matcher plus the
// category, baseline severity and operator-facing texts attached to it.
type Pattern struct {
	Name      string    `yaml:"name"`
	Match     MatchSpec `yaml:"match"`
	Category  string    `yaml:"category"`
	Severity  string    `yaml:"severity"`
	RootCause string    `yaml:"root_cause"`
	Solution  string    `yaml:"solution"`
}

// compiledPattern carries the pattern with its matcher ready to evaluate.
type compiledPattern struct {
	Pattern
	severity parser.Level
	re       *regexp.Regexp
}

// matches evaluates the pattern's matcher against one entry. All three
// matcher kinds answer through this single capability, which is what keeps
// the catalog data-driven.
func (p *compiledPattern) matches(entry parser.LogEntry) bool {
	switch {
	case p.re != nil:
		return p.re.MatchString(entry.Message)
	case len(p.Match.Keywords) > 0:
		msg := strings.ToLower(entry.Message)
		for _, kw := range p.Match.Keywords {
			if !strings.Contains(msg, strings.ToLower(kw)) {
				return false
			}
		}
		return true
	case p.Match.Source != "":
		if !strings.EqualFold(entry.Source, p.Match.Source) {
			return false
		}
		if p.Match.EventID == nil {
			return true
		}
		return entry.EventID != nil && *entry.EventID == *p.Match.EventID
	}
	return false
}

// Catalog is the ordered pattern list; evaluation is first match wins.
type Catalog struct {
	patterns []compiledPattern
}

// Compile validates and compiles raw patterns into a catalog.
func Compile(patterns []Pattern) (*Catalog, error) {
	c := &Catalog{patterns: make([]compiledPattern, 0, len(patterns))}
	for i, p := range patterns {
		if p.Name == "" {
			return nil, fmt.Errorf("pattern %d: missing name", i)
		}
		cp := compiledPattern{Pattern: p}
		if p.Match.Regex != "" {
			re, err := regexp.Compile(p.Match.Regex)
			if err != nil {
				return nil, fmt.Errorf("pattern %q: bad regex: %w", p.Name, err)
			}
			cp.re = re
		} else if len(p.Match.Keywords) == 0 && p.Match.Source == "" {
			return nil, fmt.Errorf("pattern %q: empty matcher", p.Name)
		}
		if level, ok := parser.ParseLevel(p.Severity); ok {
			cp.severity = level
		} else {
			cp.severity = parser.LevelWarning
		}
		c.patterns = append(c.patterns, cp)
	}
	return c, nil
}

// Load reads a YAML pattern file. The catalog is static configuration
// loaded at startup, never runtime user input.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pattern catalog: %w", err)
	}
	var patterns []Pattern
	if err := yaml.Unmarshal(data, &patterns); err != nil {
		return nil, fmt.Errorf("parse pattern catalog: %w", err)
	}
	return Compile(patterns)
}

// match returns the first pattern matching the entry.
func (c *Catalog) match(entry parser.LogEntry) (*compiledPattern, bool) {
	for i := range c.patterns {
		if c.patterns[i].matches(entry) {
			return &c.patterns[i], true
		}
	}
	return nil, false
}

// Len reports the number of patterns in the catalog.
func (c *Catalog) Len() int {
	return len(c.patterns)
}

// DefaultCatalog is the compiled-in baseline used when no catalog file is
// configured. Must always compile; the regexes are maintained alongside
// the tests.
func DefaultCatalog() *Catalog {
	c, err := Compile([]Pattern{
		{
			Name:      "disk-failure",
			Match:     MatchSpec{Regex: `(?i)(bad block|disk error|smart.*(fail|warn)|the device has a bad block)`},
			Category:  "Storage",
			Severity:  "Critical",
			RootCause: "The storage device is reporting media errors and may be failing.",
			Solution:  "Back up the machine and replace the disk; run a full surface scan to confirm.",
		},
		{
			Name:      "disk-space",
			Match:     MatchSpec{Regex: `(?i)(disk (is )?full|low disk space|not enough space on (the )?disk)`},
			Category:  "Storage",
			Severity:  "Warning",
			RootCause: "A volume is running out of free space.",
			Solution:  "Free disk space or extend the volume; check log and temp directories first.",
		},
		{
			Name:      "network-drop",
			Match:     MatchSpec{Regex: `(?i)(network (connection|link).*(lost|down|dropped)|dns (resolution|lookup) fail)`},
			Category:  "Network",
			Severity:  "Error",
			RootCause: "The machine is losing network connectivity or name resolution.",
			Solution:  "Check cabling/Wi-Fi signal, NIC drivers and DNS configuration.",
		},
		{
			Name:      "service-crash",
			Match:     MatchSpec{Keywords: []string{"service", "terminated unexpectedly"}},
			Category:  "Services",
			Severity:  "Error",
			RootCause: "A system service crashed.",
			Solution:  "Inspect the service's own log, update it, and review recent configuration changes.",
		},
		{
			Name:      "unexpected-shutdown",
			Match:     MatchSpec{Source: "EventLog", EventID: intPtr(6008)},
			Category:  "Stability",
			Severity:  "Error",
			RootCause: "The machine shut down without a clean stop, typically power loss or a hard hang.",
			Solution:  "Check power supply and thermal readings; review entries immediately before the shutdown.",
		},
		{
			Name:      "auth-failure",
			Match:     MatchSpec{Regex: `(?i)(logon failure|authentication failed|account.*locked out)`},
			Category:  "Security",
			Severity:  "Warning",
			RootCause: "Repeated failed logons against this machine.",
			Solution:  "Verify the account credentials; investigate the source if failures persist.",
		},
		{
			Name:      "app-hang",
			Match:     MatchSpec{Source: "Application Hang"},
			Category:  "Applications",
			Severity:  "Warning",
			RootCause: "An application stopped responding.",
			Solution:  "Update the application; if it recurs, capture a hang dump for the vendor.",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("default catalog does not compile: %v", err))
	}
	return c
}

func intPtr(n int) *int { return &n }
