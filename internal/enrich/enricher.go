package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fleetlens/internal/detect"

	"github.com/pterm/pterm"
)

const defaultTimeout = 10 * time.Second

// Enricher rewrites issue root-cause/solution texts with an LLM, best
// effort only. Any provider failure leaves the pattern text in place and
// the issue marked pattern-only; enrichment can degrade richness, never
// availability.
type Enricher struct {
	provider Provider
	model    string
	timeout  time.Duration
	logger   *pterm.Logger
}

// NewEnricher binds an enricher to a provider and model. timeout <= 0
// selects the 10s default; the timeout is a hard bound per issue.
func NewEnricher(provider Provider, model string, timeout time.Duration, logger *pterm.Logger) *Enricher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Enricher{provider: provider, model: model, timeout: timeout, logger: logger}
}

// EnrichIssues attempts enrichment for every issue in place and returns
// the number of failures. The caller must not hold any run lock while
// this executes.
func (e *Enricher) EnrichIssues(ctx context.Context, issues []*detect.Issue) int {
	failures := 0
	for i, issue := range issues {
		if ctx.Err() != nil {
			// Run was cancelled; count the remainder as not enriched.
			failures += len(issues) - i
			break
		}
		if err := e.enrichOne(ctx, issue); err != nil {
			failures++
			e.logger.Debug("Issue enrichment failed, keeping pattern text",
				e.logger.Args("signature", issue.Signature, "error", err))
		}
	}
	if failures > 0 {
		e.logger.Info("Enrichment completed with pattern-only issues",
			e.logger.Args("issues", len(issues), "pattern_only", failures))
	}
	return failures
}

func (e *Enricher) enrichOne(ctx context.Context, issue *detect.Issue) error {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.provider.Complete(callCtx, e.model, buildPrompt(issue))
	if err != nil {
		return err
	}

	rootCause, solution, err := parseSections(raw)
	if err != nil {
		return err
	}

	issue.RootCause = rootCause
	issue.Solution = solution
	issue.Enriched = true
	return nil
}

// ListModels is the read-only model discovery operation. It shares the
// fail-soft contract: an unreachable provider yields an empty list, never
// an error to the caller.
func (e *Enricher) ListModels(ctx context.Context) []string {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	models, err := e.provider.ListModels(callCtx)
	if err != nil {
		e.logger.Debug("Model discovery failed",
			e.logger.Args("provider", e.provider.Name(), "error", err))
		return []string{}
	}
	return models
}

// buildPrompt sends the pattern placeholder plus a bounded set of sample
// messages for one issue.
func buildPrompt(issue *detect.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are assisting an operator managing a fleet of machines.\n")
	fmt.Fprintf(&b, "A recurring issue was detected in the device logs.\n\n")
	fmt.Fprintf(&b, "Category: %s\nSeverity: %s\nOccurrences: %d\n",
		issue.Category, issue.Severity, issue.OccurrenceCount)
	fmt.Fprintf(&b, "Current assessment: %s\n\nSample log messages:\n", issue.RootCause)
	for _, entry := range issue.SampleEntries {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", entry.Level, entry.Source, entry.Message)
	}
	b.WriteString("\nRespond with exactly two sections:\nROOT CAUSE: <one short paragraph>\nSOLUTION: <one short paragraph>\n")
	return b.String()
}

// parseSections extracts the two required sections from a completion.
// Anything that does not carry both sections is a malformed response.
func parseSections(raw string) (rootCause, solution string, err error) {
	upper := strings.ToUpper(raw)
	rcIdx := strings.Index(upper, "ROOT CAUSE:")
	solIdx := strings.Index(upper, "SOLUTION:")
	if rcIdx < 0 || solIdx < 0 || solIdx <= rcIdx {
		return "", "", fmt.Errorf("malformed completion: missing sections")
	}
	rootCause = strings.TrimSpace(raw[rcIdx+len("ROOT CAUSE:") : solIdx])
	solution = strings.TrimSpace(raw[solIdx+len("SOLUTION:"):])
	if rootCause == "" || solution == "" {
		return "", "", fmt.Errorf("malformed completion: empty section")
	}
	return rootCause, solution, nil
}
