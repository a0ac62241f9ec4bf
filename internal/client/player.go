package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/lukasbauer/tonebridge/internal/codec"
)

// Player plays a WAV and returns once playback has finished.
type Player interface {
	Play(ctx context.Context, wav []byte) error
}

// CommandPlayer plays through an external program that takes the WAV path as
// its last argument, e.g. "ffplay -nodisp -autoexit -loglevel quiet".
type CommandPlayer struct {
	argv    []string
	workDir string
}

func NewCommandPlayer(cmdline, workDir string) (*CommandPlayer, error) {
	argv := strings.Fields(cmdline)
	if len(argv) == 0 {
		return nil, errors.New("client: empty player command")
	}
	return &CommandPlayer{argv: argv, workDir: workDir}, nil
}

func (p *CommandPlayer) Play(ctx context.Context, wav []byte) error {
	ws, err := codec.NewWorkspace(p.workDir)
	if err != nil {
		return err
	}
	defer ws.Close()

	path, err := ws.WriteFile("message.wav", wav)
	if err != nil {
		return err
	}

	args := append(append([]string(nil), p.argv[1:]...), path)
	cmd := exec.CommandContext(ctx, p.argv[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("client: %s: %w: %s", p.argv[0], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
