package analysis

import (
	"context"
	"errors"
	"sync"
	"time"

	"fleetlens/internal/detect"
	"fleetlens/internal/discovery"
	"fleetlens/internal/enrich"
	"fleetlens/internal/parser"
	"fleetlens/internal/store"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pterm/pterm"
)

// ErrNoReport is returned when no report has ever been published for a
// root.
var ErrNoReport = errors.New("analysis: no cached report for root")

// RunState is the per-root orchestrator state.
type RunState int

const (
	StateIdle RunState = iota
	StateRunning
	StateDone
	StateError
)

func (s RunState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// rootRunner tracks one logs root: its state machine, the generation
// counter guarding stale publishes, the latest published report and the
// completion signal callers subscribe to instead of starting a second run.
type rootRunner struct {
	state       RunState
	generation  uint64
	runningHash string
	report      *AnalysisReport
	lastErr     error
	done        chan struct{}
	cancel      context.CancelFunc
}

// startable reports whether a new run may begin. Done and Error both fall
// back to Idle for scheduling purposes.
func (r *rootRunner) startable() bool {
	return r.state != StateRunning
}

// Options tunes the orchestrator.
type Options struct {
	// Workers is the parse worker-pool size per run.
	Workers int
	// CacheSize bounds the LRU of reports kept by signature hash.
	CacheSize int
}

// Service owns the analysis pipeline for all configured logs roots. It
// guarantees at most one run in flight per root; unrelated roots analyze
// concurrently. Callers arriving during a refresh receive the previous
// report flagged stale, or block on the in-flight run's completion signal
// when no previous report exists.
type Service struct {
	logger   *pterm.Logger
	scanner  *discovery.Scanner
	registry *parser.Registry
	detector *detect.Detector
	enricher *enrich.Enricher // nil disables enrichment
	repo     store.ReportRepository
	cache    *lru.Cache[string, *AnalysisReport]
	workers  int

	mu      sync.Mutex
	runners map[string]*rootRunner
}

// NewService wires the pipeline. enricher and repo may be nil (enrichment
// and persistence disabled respectively).
func NewService(
	logger *pterm.Logger,
	scanner *discovery.Scanner,
	registry *parser.Registry,
	detector *detect.Detector,
	enricher *enrich.Enricher,
	repo store.ReportRepository,
	opts Options,
) *Service {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 16
	}
	cache, _ := lru.New[string, *AnalysisReport](opts.CacheSize)

	s := &Service{
		logger:   logger,
		scanner:  scanner,
		registry: registry,
		detector: detector,
		enricher: enricher,
		repo:     repo,
		cache:    cache,
		workers:  opts.Workers,
		runners:  make(map[string]*rootRunner),
	}
	s.warmFromStore()
	return s
}

// warmFromStore reloads the latest persisted report per root so cached
// reports survive restarts.
func (s *Service) warmFromStore() {
	if s.repo == nil {
		return
	}
	roots, err := s.repo.Roots()
	if err != nil {
		s.logger.Warn("Failed to list persisted report roots", s.logger.Args("error", err))
		return
	}
	for _, root := range roots {
		rec, err := s.repo.FindLatestByRoot(root)
		if err != nil {
			s.logger.Warn("Failed to reload persisted report",
				s.logger.Args("root", root, "error", err))
			continue
		}
		report := fromRecord(rec)
		s.mu.Lock()
		s.runnerLocked(root).report = report
		s.mu.Unlock()
		s.cache.Add(report.SignatureHash, report)
		s.logger.Info("Reloaded cached report from store",
			s.logger.Args("root", root, "generated_at", report.GeneratedAt))
	}
}

func (s *Service) runnerLocked(root string) *rootRunner {
	runner, ok := s.runners[root]
	if !ok {
		runner = &rootRunner{}
		s.runners[root] = runner
	}
	return runner
}

// ComputeSignature fingerprints the root's current file set, stat-only.
func (s *Service) ComputeSignature(root string) (discovery.Signature, error) {
	return s.scanner.ComputeSignature(root)
}

// State reports the current run state for a root.
func (s *Service) State(root string) RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runnerLocked(root).state
}

// GetOrRunAnalysis returns the report for the root's current signature,
// running the pipeline when the signature changed or force is set. The
// second return value reports whether a refresh is (still) in progress
// for the returned report.
func (s *Service) GetOrRunAnalysis(ctx context.Context, root string, force bool) (*AnalysisReport, bool, error) {
	sig, err := s.scanner.ComputeSignature(root)
	if err != nil {
		s.mu.Lock()
		runner := s.runnerLocked(root)
		if runner.startable() {
			runner.state = StateError
			runner.lastErr = err
		}
		s.mu.Unlock()
		return nil, false, err
	}

	s.mu.Lock()
	runner := s.runnerLocked(root)

	if runner.state == StateRunning {
		if runner.report != nil {
			report := runner.report.staleCopy()
			s.mu.Unlock()
			return report, true, nil
		}
		done := runner.done
		s.mu.Unlock()
		return s.awaitRun(ctx, root, done)
	}

	if !force {
		if runner.report != nil && runner.report.SignatureHash == sig.Hash {
			report := runner.report
			s.mu.Unlock()
			return report, false, nil
		}
		if report, ok := s.cache.Get(sig.Hash); ok && report.Root == root {
			runner.report = report
			runner.state = StateDone
			s.mu.Unlock()
			return report, false, nil
		}
	}

	prev := runner.report
	done := s.startRunLocked(root, runner, sig)
	s.mu.Unlock()

	if prev != nil {
		// Stale-plus-flag policy: serve the superseded report while the
		// fresh run executes in the background.
		return prev.staleCopy(), true, nil
	}
	return s.awaitRun(ctx, root, done)
}

// GetCachedReport returns the latest published report for the root
// without triggering any work.
func (s *Service) GetCachedReport(root string) (*AnalysisReport, error) {
	s.mu.Lock()
	runner := s.runnerLocked(root)
	report := runner.report
	running := runner.state == StateRunning
	s.mu.Unlock()

	if report == nil {
		return nil, ErrNoReport
	}
	if running {
		return report.staleCopy(), nil
	}
	return report, nil
}

// Refresh recomputes the signature and, when it changed, cancels any
// stale in-flight run and starts a fresh one. Used by the background
// poller; errors are absorbed after logging since nobody is waiting.
func (s *Service) Refresh(root string) {
	sig, err := s.scanner.ComputeSignature(root)
	if err != nil {
		s.logger.Warn("Signature poll failed", s.logger.Args("root", root, "error", err))
		return
	}

	s.mu.Lock()
	runner := s.runnerLocked(root)
	if runner.state == StateRunning {
		if runner.runningHash != sig.Hash {
			// Signature moved under a live run: cancel it; the
			// generation bump makes its publish a no-op.
			s.logger.Info("Logs changed mid-run, cancelling stale analysis",
				s.logger.Args("root", root))
			runsCancelled.WithLabelValues(root).Inc()
			runner.generation++
			if runner.cancel != nil {
				runner.cancel()
			}
			runner.state = StateIdle
			runner.done = nil
			s.startRunLocked(root, runner, sig)
		}
		s.mu.Unlock()
		return
	}
	if runner.report != nil && runner.report.SignatureHash == sig.Hash {
		s.mu.Unlock()
		return
	}
	s.startRunLocked(root, runner, sig)
	s.mu.Unlock()
}

// Stop cancels all in-flight runs.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for root, runner := range s.runners {
		if runner.state == StateRunning && runner.cancel != nil {
			s.logger.Debug("Cancelling in-flight analysis on shutdown",
				s.logger.Args("root", root))
			runner.cancel()
		}
	}
}

// startRunLocked transitions the runner to Running and launches the run
// goroutine. Caller must hold s.mu.
func (s *Service) startRunLocked(root string, runner *rootRunner, sig discovery.Signature) chan struct{} {
	runner.generation++
	gen := runner.generation
	runner.state = StateRunning
	runner.runningHash = sig.Hash
	runner.lastErr = nil
	done := make(chan struct{})
	runner.done = done

	ctx, cancel := context.WithCancel(context.Background())
	runner.cancel = cancel

	runsStarted.WithLabelValues(root).Inc()
	s.logger.Info("Starting analysis run",
		s.logger.Args("root", root, "files", len(sig.Files), "generation", gen))

	go s.run(ctx, cancel, root, sig, gen, done)
	return done
}

// awaitRun blocks until the in-flight run completes, honoring caller
// cancellation.
func (s *Service) awaitRun(ctx context.Context, root string, done chan struct{}) (*AnalysisReport, bool, error) {
	select {
	case <-ctx.Done():
		return nil, true, ctx.Err()
	case <-done:
	}
	s.mu.Lock()
	runner := s.runnerLocked(root)
	report, err := runner.report, runner.lastErr
	s.mu.Unlock()
	if err != nil {
		return nil, false, err
	}
	if report == nil {
		return nil, false, ErrNoReport
	}
	return report, false, nil
}

// run executes one full pipeline pass and publishes the result unless the
// generation advanced (signature changed mid-run), in which case the
// partial result is discarded, never merged.
func (s *Service) run(ctx context.Context, cancel context.CancelFunc, root string, sig discovery.Signature, gen uint64, done chan struct{}) {
	defer cancel()
	start := time.Now()

	report, err := s.buildReport(ctx, root, sig)

	s.mu.Lock()
	runner := s.runnerLocked(root)
	if runner.generation != gen {
		s.mu.Unlock()
		close(done)
		s.logger.Debug("Discarding superseded analysis run",
			s.logger.Args("root", root, "generation", gen))
		return
	}
	if err != nil {
		runner.state = StateError
		runner.lastErr = err
		runner.done = nil
		close(done)
		s.mu.Unlock()
		s.logger.WithCaller().Error("Analysis run failed",
			s.logger.Args("root", root, "error", err))
		return
	}

	runner.state = StateDone
	runner.report = report
	runner.done = nil
	close(done)
	s.mu.Unlock()
	s.cache.Add(sig.Hash, report)

	s.logger.Info("Analysis run completed",
		s.logger.Args(
			"root", root,
			"issues", len(report.Issues),
			"entries", report.Totals.Entries,
			"duration_ms", time.Since(start).Milliseconds(),
		))

	// Enrichment runs after the pattern-based report is already published
	// and cacheable, so a slow or absent LLM degrades richness only. The
	// run lock is not held here.
	if s.enricher != nil && len(report.Issues) > 0 {
		report = s.enrichReport(ctx, root, sig, gen, report)
	}
	s.persist(report)
}

// enrichReport enriches a copy of the published report and republishes it
// under the generation guard.
func (s *Service) enrichReport(ctx context.Context, root string, sig discovery.Signature, gen uint64, report *AnalysisReport) *AnalysisReport {
	issues := make([]*detect.Issue, len(report.Issues))
	for i, issue := range report.Issues {
		cp := *issue
		issues[i] = &cp
	}

	failures := s.enricher.EnrichIssues(ctx, issues)
	enrichmentFailures.Add(float64(failures))

	enriched := *report
	enriched.Issues = issues
	enriched.EnrichmentFailures = failures

	s.mu.Lock()
	runner := s.runnerLocked(root)
	if runner.generation != gen {
		s.mu.Unlock()
		return report
	}
	runner.report = &enriched
	s.mu.Unlock()
	s.cache.Add(sig.Hash, &enriched)
	return &enriched
}

func (s *Service) persist(report *AnalysisReport) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Save(toRecord(report)); err != nil {
		s.logger.WithCaller().Warn("Failed to persist analysis report",
			s.logger.Args("root", report.Root, "error", err))
	}
}

// buildReport runs discovery -> parallel parse -> detect for one root.
func (s *Service) buildReport(ctx context.Context, root string, sig discovery.Signature) (*AnalysisReport, error) {
	files, err := s.scanner.Scan(root)
	if err != nil {
		// Only an unreadable root itself escalates to a run failure.
		return nil, err
	}

	outcome := s.parseFiles(ctx, files)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	parseErrors.Add(float64(outcome.parseErrors))
	recordsSkipped.Add(float64(outcome.recordsSkipped))

	det := s.detector.Detect(outcome.entries)

	users := make(map[string]struct{})
	systems := make(map[string]struct{})
	for _, f := range files {
		users[f.UserID] = struct{}{}
		systems[f.UserID+"/"+f.SystemName] = struct{}{}
	}

	severity, category := issueStats(det.Issues)
	return &AnalysisReport{
		ID:            uuid.NewString(),
		Root:          root,
		SignatureHash: sig.Hash,
		GeneratedAt:   time.Now(),
		Totals: Totals{
			Users:   len(users),
			Systems: len(systems),
			Files:   len(files),
			Entries: len(outcome.entries),
		},
		Issues:         det.Issues,
		SeverityStats:  severity,
		CategoryStats:  category,
		FilesSkipped:   outcome.filesSkipped,
		ParseErrors:    outcome.parseErrors,
		RecordsSkipped: outcome.recordsSkipped,
		Anomalies:      det.Anomalies,
	}, nil
}

type parseOutcome struct {
	entries        []parser.LogEntry
	filesSkipped   int
	parseErrors    int
	recordsSkipped int
}

type fileResult struct {
	index   int
	entries []parser.LogEntry
	skipped bool
	fileErr bool
	records int
}

// parseFiles decodes all discovered files through a worker pool. Parsing
// is CPU-bound with no shared mutable state; results are reassembled in
// discovery order so the detector sees a deterministic entry sequence,
// which is the sole synchronization point of the run.
func (s *Service) parseFiles(ctx context.Context, files []discovery.LogFile) parseOutcome {
	if len(files) == 0 {
		return parseOutcome{}
	}

	numWorkers := s.workers
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	jobs := make(chan int, len(files))
	results := make(chan fileResult, len(files))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					results <- fileResult{index: idx, skipped: true}
					continue
				}
				results <- s.parseOne(idx, files[idx])
			}
		}()
	}
	for idx := range files {
		jobs <- idx
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]fileResult, len(files))
	for res := range results {
		ordered[res.index] = res
	}

	var out parseOutcome
	for _, res := range ordered {
		switch {
		case res.skipped:
			out.filesSkipped++
		case res.fileErr:
			out.parseErrors++
		default:
			out.entries = append(out.entries, res.entries...)
			out.recordsSkipped += res.records
		}
	}
	return out
}

func (s *Service) parseOne(idx int, file discovery.LogFile) fileResult {
	p, err := s.registry.ForFile(file.Path)
	if err != nil {
		s.logger.Warn("No parser for discovered file, skipping",
			s.logger.Args("path", file.Path, "error", err))
		return fileResult{index: idx, skipped: true}
	}

	res := p.ParseFile(file.Path)
	if res.Err != nil {
		return fileResult{index: idx, fileErr: true, records: res.RecordsSkipped}
	}

	// Stamp fleet identity from the file's position in the tree.
	entries := make([]parser.LogEntry, len(res.Entries))
	for i, entry := range res.Entries {
		entry.UserID = file.UserID
		entry.SystemName = file.SystemName
		entry.SessionID = file.SessionID
		entry.LogType = file.LogType
		entries[i] = entry
	}
	return fileResult{index: idx, entries: entries, records: res.RecordsSkipped}
}
