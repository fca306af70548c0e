package analysis

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pterm/pterm"
)

// Poller keeps cached reports fresh for a set of logs roots. A ticker
// periodically recomputes each root's signature; filesystem notifications
// shorten the latency between an upload landing and the refresh, but the
// ticker alone is sufficient since fsnotify does not watch recursively
// and network mounts may not emit events at all.
type Poller struct {
	service  *Service
	logger   *pterm.Logger
	roots    []string
	interval time.Duration
	watcher  *fsnotify.Watcher

	stop chan struct{}
	done chan struct{}
}

// NewPoller builds a poller for the given roots. interval must be
// positive.
func NewPoller(service *Service, logger *pterm.Logger, roots []string, interval time.Duration) *Poller {
	return &Poller{
		service:  service,
		logger:   logger,
		roots:    roots,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the poll loop in the background. watch enables
// filesystem notifications on top of the interval ticker.
func (p *Poller) Start(watch bool) {
	if watch {
		p.setupWatcher()
	}
	go p.loop()
	p.logger.Info("Analysis poller started",
		p.logger.Args("roots", len(p.roots), "interval", p.interval.String(), "watch", watch))
}

// Stop terminates the loop and waits for it to exit.
func (p *Poller) Stop() {
	close(p.stop)
	<-p.done
	if p.watcher != nil {
		p.watcher.Close()
	}
}

// setupWatcher registers the roots and their user/system subtrees.
// Failures are logged and ignored; the ticker still covers the root.
func (p *Poller) setupWatcher() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Warn("Filesystem watcher unavailable, falling back to polling only",
			p.logger.Args("error", err))
		return
	}
	p.watcher = watcher

	for _, root := range p.roots {
		p.watchTree(root)
	}
}

// watchTree adds the root and up to two directory levels below it, which
// covers {root}/{user}/{system}. Session directories appear later and are
// picked up by the ticker.
func (p *Poller) watchTree(root string) {
	if err := p.watcher.Add(root); err != nil {
		p.logger.Warn("Failed to watch logs root", p.logger.Args("root", root, "error", err))
		return
	}
	users, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, user := range users {
		if !user.IsDir() {
			continue
		}
		userDir := filepath.Join(root, user.Name())
		_ = p.watcher.Add(userDir)
		systems, err := os.ReadDir(userDir)
		if err != nil {
			continue
		}
		for _, system := range systems {
			if system.IsDir() {
				_ = p.watcher.Add(filepath.Join(userDir, system.Name()))
			}
		}
	}
}

func (p *Poller) loop() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Coalesce bursts of filesystem events into one refresh.
	var pending bool
	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}

	var events chan fsnotify.Event
	var watchErrs chan error
	if p.watcher != nil {
		events = p.watcher.Events
		watchErrs = p.watcher.Errors
	}

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.refreshAll()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !pending {
				pending = true
				debounce.Reset(2 * time.Second)
			}
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			p.logger.Warn("Filesystem watcher error", p.logger.Args("error", err))
		case <-debounce.C:
			pending = false
			p.refreshAll()
		}
	}
}

func (p *Poller) refreshAll() {
	for _, root := range p.roots {
		p.service.Refresh(root)
	}
}
