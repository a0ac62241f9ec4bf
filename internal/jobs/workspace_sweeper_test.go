package jobs

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWorkspaceSweeper_RemovesOnlyStaleWorkspaces(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-2 * time.Hour)

	mk := func(name string, mtime time.Time) string {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(p, 0o700); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(p, "in.wav"), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(p, mtime, mtime); err != nil {
			t.Fatal(err)
		}
		return p
	}

	stale := mk("ggwave-stale", old)
	fresh := mk("ggwave-fresh", time.Now())
	other := mk("something-else", old)

	j := NewWorkspaceSweeper(dir, time.Hour, time.Minute, log.New(io.Discard, "", 0))
	if n := j.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale workspace still present: %v", err)
	}
	for _, p := range []string{fresh, other} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s removed: %v", p, err)
		}
	}
}

func TestWorkspaceSweeper_StartStop(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "ggwave-orphan")
	if err := os.Mkdir(p, 0o700); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(p, old, old); err != nil {
		t.Fatal(err)
	}

	j := NewWorkspaceSweeper(dir, time.Minute, time.Hour, log.New(io.Discard, "", 0))
	j.Start()
	j.Stop()
	j.Stop() // second Stop is a no-op

	// Start sweeps immediately, so the orphan is gone once Stop returns.
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Errorf("orphan still present after Start/Stop: %v", err)
	}
}

func TestWorkspaceSweeper_MissingDir(t *testing.T) {
	j := NewWorkspaceSweeper(filepath.Join(t.TempDir(), "missing"), time.Minute, time.Minute, log.New(io.Discard, "", 0))
	if n := j.Sweep(); n != 0 {
		t.Errorf("Sweep() = %d, want 0", n)
	}
}
