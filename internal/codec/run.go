package codec

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"time"
)

// result of one finished tool invocation.
type runResult struct {
	stdout   string
	stderr   string
	exitCode int
}

// run starts path with args, feeds stdin (may be nil) and waits for exit.
// A non-nil error means the process could not be started or did not exit
// normally; a non-zero exitCode alone is not an error.
func run(ctx context.Context, path string, args []string, stdin io.Reader) (runResult, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children that inherit the pipes must not hold Wait open after a kill.
	cmd.WaitDelay = 2 * time.Second

	if err := cmd.Start(); err != nil {
		return runResult{}, &spawnError{err: err}
	}
	err := cmd.Wait()
	res := runResult{stdout: stdout.String(), stderr: stderr.String(), exitCode: cmd.ProcessState.ExitCode()}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return res, err
	}
	if res.exitCode < 0 {
		// killed by a signal, e.g. the safety timeout
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, err
	}
	return res, nil
}

type spawnError struct{ err error }

func (e *spawnError) Error() string { return e.err.Error() }
func (e *spawnError) Unwrap() error { return e.err }

func isSpawnError(err error) bool {
	var se *spawnError
	return errors.As(err, &se)
}
