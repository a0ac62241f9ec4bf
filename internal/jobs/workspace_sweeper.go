package jobs

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// WorkspaceSweeper removes request workspaces left behind by a crashed or
// killed server. Requests remove their own workspace on return, so anything
// older than MaxAge under Dir is an orphan.
type WorkspaceSweeper struct {
	dir      string
	maxAge   time.Duration
	logger   *log.Logger
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorkspaceSweeper creates a sweeper for dir (os.TempDir when empty).
func NewWorkspaceSweeper(dir string, maxAge, interval time.Duration, logger *log.Logger) *WorkspaceSweeper {
	if dir == "" {
		dir = os.TempDir()
	}
	if interval == 0 {
		interval = 10 * time.Minute
	}
	if maxAge == 0 {
		maxAge = time.Hour
	}
	return &WorkspaceSweeper{
		dir:      dir,
		maxAge:   maxAge,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background job.
func (j *WorkspaceSweeper) Start() {
	j.wg.Add(1)
	go j.run()
	j.logger.Printf("WorkspaceSweeper: started (dir=%s, interval=%v, maxAge=%v)", j.dir, j.interval, j.maxAge)
}

// Stop stops the background job and waits for a running sweep.
func (j *WorkspaceSweeper) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
	j.wg.Wait()
	j.logger.Println("WorkspaceSweeper: stopped")
}

func (j *WorkspaceSweeper) run() {
	defer j.wg.Done()

	// Run immediately on start
	j.Sweep()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Sweep()
		case <-j.stopCh:
			return
		}
	}
}

// Sweep removes every stale workspace once and returns how many it removed.
func (j *WorkspaceSweeper) Sweep() int {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		j.logger.Printf("WorkspaceSweeper: failed to list %s: %v", j.dir, err)
		return 0
	}

	cutoff := j.now().Add(-j.maxAge)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "ggwave-") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.dir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			j.logger.Printf("WorkspaceSweeper: failed to remove %s: %v", path, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		j.logger.Printf("WorkspaceSweeper: removed %d stale workspaces", removed)
	}
	return removed
}
