package codec

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Workspace is a request-scoped temporary directory. Callers defer Close right
// after creation so it is removed on every return path.
type Workspace struct {
	dir  string
	once sync.Once
	err  error
}

// NewWorkspace creates a uniquely named directory under base (os.TempDir when empty).
func NewWorkspace(base string) (*Workspace, error) {
	if base == "" {
		base = os.TempDir()
	}
	dir, err := os.MkdirTemp(base, "ggwave-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

func (w *Workspace) Dir() string { return w.dir }

func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// WriteFile stores data under name and returns the full path.
func (w *Workspace) WriteFile(name string, data []byte) (string, error) {
	p := w.Path(name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return p, nil
}

func (w *Workspace) ReadFile(name string) ([]byte, error) {
	b, err := os.ReadFile(w.Path(name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return b, nil
}

// Close removes the directory and everything in it. Safe to call more than once.
func (w *Workspace) Close() error {
	w.once.Do(func() {
		w.err = os.RemoveAll(w.dir)
	})
	return w.err
}
