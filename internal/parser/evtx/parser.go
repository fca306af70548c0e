package evtx

import (
	"errors"
	"path/filepath"
	"strings"

	"fleetlens/internal/parser"

	"github.com/pterm/pterm"
)

// ErrNoTierAvailable is returned when no decoding tier can run in this
// environment. The caller treats this as a run-level failure; it is the
// only parser construction error that escalates.
var ErrNoTierAvailable = errors.New("evtx: no decoding tier available")

// recordTier is one of the fallback strategies for decoding the binary
// event-log container. Tier selection happens once at parser construction;
// per-record failures under the chosen tier are skipped and counted, never
// fatal to the file.
type recordTier interface {
	name() string
	available() bool
	parseFile(path string) parser.FileResult
}

// Parser decodes binary event-log (.evtx) files through a degrading tier
// chain: the structured container library, then the host OS event-log API
// (Windows only), then a dependency-free XML fragment scrape.
type Parser struct {
	logger *pterm.Logger
	tier   recordTier
}

// NewParser picks the first available tier and binds the parser to it.
func NewParser(logger *pterm.Logger) (*Parser, error) {
	return newParserWithTiers(logger, []recordTier{
		newStructuredTier(logger),
		newOSLogTier(logger),
		newXMLScanTier(logger),
	})
}

func newParserWithTiers(logger *pterm.Logger, tiers []recordTier) (*Parser, error) {
	for _, t := range tiers {
		if !t.available() {
			logger.Debug("Event log tier unavailable", logger.Args("tier", t.name()))
			continue
		}
		logger.Info("Binary event-log parser ready", logger.Args("tier", t.name()))
		return &Parser{logger: logger, tier: t}, nil
	}
	return nil, ErrNoTierAvailable
}

// Name returns the parser identifier.
func (p *Parser) Name() string {
	return "evtx"
}

// Tier reports which decoding tier was selected at construction.
func (p *Parser) Tier() string {
	return p.tier.name()
}

// CanParse accepts binary event-log exports by extension.
func (p *Parser) CanParse(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".evtx", ".evt":
		return true
	}
	return false
}

// ParseFile decodes the file under the selected tier. An unopenable file
// yields zero entries plus a file-level error, distinct from a readable
// file that contains no decodable records.
func (p *Parser) ParseFile(path string) parser.FileResult {
	res := p.tier.parseFile(path)
	if res.Err != nil {
		p.logger.WithCaller().Warn("Failed to decode event-log file",
			p.logger.Args("path", path, "tier", p.tier.name(), "error", res.Err))
		return res
	}
	if res.RecordsSkipped > 0 {
		p.logger.Debug("Skipped undecodable event-log records",
			p.logger.Args("path", path, "tier", p.tier.name(), "skipped", res.RecordsSkipped))
	}
	return res
}
