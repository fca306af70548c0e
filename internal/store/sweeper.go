package store

import (
	"time"

	"github.com/pterm/pterm"
)

// RetentionSweeper periodically deletes reports older than the configured
// retention window. A retention of zero days disables the sweep.
type RetentionSweeper struct {
	repo          ReportRepository
	logger        *pterm.Logger
	retentionDays int
	interval      time.Duration

	stopChan chan struct{}
	doneChan chan struct{}
}

// NewRetentionSweeper creates a new retention sweeper
func NewRetentionSweeper(repo ReportRepository, logger *pterm.Logger, retentionDays int, interval time.Duration) *RetentionSweeper {
	return &RetentionSweeper{
		repo:          repo,
		logger:        logger,
		retentionDays: retentionDays,
		interval:      interval,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

// Start launches the sweep loop in the background
func (s *RetentionSweeper) Start() {
	if s.retentionDays <= 0 {
		s.logger.Info("Report retention disabled, keeping all reports")
		close(s.doneChan)
		return
	}

	s.logger.Info("Report retention sweeper started",
		s.logger.Args("retention_days", s.retentionDays, "interval", s.interval.String()))

	go func() {
		defer close(s.doneChan)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.sweep()
		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

// Stop terminates the sweep loop
func (s *RetentionSweeper) Stop() {
	if s.retentionDays <= 0 {
		return
	}
	close(s.stopChan)
	<-s.doneChan
}

func (s *RetentionSweeper) sweep() {
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	deleted, err := s.repo.DeleteOlderThan(cutoff)
	if err != nil {
		s.logger.WithCaller().Warn("Report retention sweep failed", s.logger.Args("error", err))
		return
	}
	if deleted > 0 {
		s.logger.Info("Swept expired reports",
			s.logger.Args("deleted", deleted, "cutoff", cutoff.Format(time.RFC3339)))
	}
}
