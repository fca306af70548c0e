//go:build !windows

package evtx

import (
	"fleetlens/internal/parser"

	"github.com/pterm/pterm"
)

// osLogTier is only usable on the host that owns the event log; on every
// other platform it reports itself unavailable and the chain degrades to
// the XML scan tier.
type osLogTier struct {
	logger *pterm.Logger
}

func newOSLogTier(logger *pterm.Logger) *osLogTier {
	return &osLogTier{logger: logger}
}

func (t *osLogTier) name() string { return "oslog" }

func (t *osLogTier) available() bool { return false }

func (t *osLogTier) parseFile(path string) parser.FileResult {
	return parser.FileResult{Err: ErrNoTierAvailable}
}
