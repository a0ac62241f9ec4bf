package codec

import (
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"
)

// Tools holds the paths of the external codec executables. Paths are checked
// for executability on every call, never cached.
type Tools struct {
	ToFile   string // text -> wav
	FromFile string // wav -> report
	CLI      string // interactive duplex tool
	CLIArgs  []string
	FFmpeg   string // name on PATH or absolute path
}

// Availability reports which tools can currently be executed.
type Availability struct {
	OK       bool `json:"ok"`
	ToFile   bool `json:"toFile"`
	FromFile bool `json:"fromFile"`
	CLI      bool `json:"cli"`
	FFmpeg   bool `json:"ffmpeg"`
}

func (t Tools) Available() Availability {
	return Availability{
		OK:       true,
		ToFile:   executable(t.ToFile),
		FromFile: executable(t.FromFile),
		CLI:      executable(t.CLI),
		FFmpeg:   executable(t.ffmpegPath()),
	}
}

// CheckCLI returns ErrToolUnavailable if the interactive tool cannot run.
func (t Tools) CheckCLI() error {
	return check("relay", "ggwave-cli", t.CLI)
}

func (t Tools) ffmpegPath() string {
	if t.FFmpeg == "" {
		return "ffmpeg"
	}
	return t.FFmpeg
}

func check(op, name, path string) error {
	if !executable(path) {
		return newError(op, ErrToolUnavailable, fmt.Sprintf("%s binary not found. Build it first.", name), nil)
	}
	return nil
}

// executable reports whether path can be run. Bare names are looked up on PATH.
func executable(path string) bool {
	if path == "" {
		return false
	}
	if !strings.ContainsRune(path, '/') {
		_, err := exec.LookPath(path)
		return err == nil
	}
	return unix.Access(path, unix.X_OK) == nil
}
