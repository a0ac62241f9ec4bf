package codec

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/lukasbauer/tonebridge/internal/metrics"
)

const defaultToolTimeout = 30 * time.Second

// EncodeParams are the optional encoder arguments. Zero means "tool default".
type EncodeParams struct {
	Volume     int `json:"volume,omitempty"`
	SampleRate int `json:"sampleRate,omitempty"`
	Protocol   int `json:"protocol,omitempty"`
}

// DecodeResult is the outcome of a decode. An empty Message with a nil error
// means the tool ran and found nothing.
type DecodeResult struct {
	Message string `json:"message"`
	Raw     string `json:"raw"`
}

// GatewayConfig is shared by the batch and streaming gateways.
type GatewayConfig struct {
	Tools       Tools
	WorkDir     string
	ToolTimeout time.Duration
	SampleRate  int // conversion target rate, streaming only
}

// BatchGateway runs one-shot encode and decode requests, each with its own
// workspace and subprocess.
type BatchGateway struct {
	cfg     GatewayConfig
	logger  *log.Logger
	metrics *metrics.Metrics
}

func NewBatchGateway(cfg GatewayConfig, logger *log.Logger, m *metrics.Metrics) *BatchGateway {
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = defaultToolTimeout
	}
	return &BatchGateway{cfg: cfg, logger: logger, metrics: m}
}

// toolContext detaches from the caller's cancellation: once spawned, a tool
// runs to completion or until the safety timeout.
func toolContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

// Encode renders message to WAV audio.
func (g *BatchGateway) Encode(ctx context.Context, message string, p EncodeParams) ([]byte, error) {
	const op = "encode"
	if message == "" {
		return nil, newError(op, ErrValidation, "message is required", nil)
	}
	if err := check(op, "ggwave-to-file", g.cfg.Tools.ToFile); err != nil {
		return nil, err
	}

	ws, err := NewWorkspace(g.cfg.WorkDir)
	if err != nil {
		return nil, newError(op, ErrSpawnFailed, "", err)
	}
	defer g.closeWorkspace(ws)

	wavPath := ws.Path("out.wav")
	args := []string{"-f" + wavPath}
	if p.Volume != 0 {
		args = append(args, "-v"+strconv.Itoa(p.Volume))
	}
	if p.SampleRate != 0 {
		args = append(args, "-s"+strconv.Itoa(p.SampleRate))
	}
	if p.Protocol != 0 {
		args = append(args, "-p"+strconv.Itoa(p.Protocol))
	}

	tctx, cancel := toolContext(ctx, g.cfg.ToolTimeout)
	defer cancel()

	start := time.Now()
	res, err := run(tctx, g.cfg.Tools.ToFile, args, strings.NewReader(message))
	g.metrics.ObserveTool("to-file", start, exitOutcome(res, err))
	if err != nil {
		if isSpawnError(err) {
			return nil, newError(op, ErrSpawnFailed, err.Error(), err)
		}
		return nil, newError(op, ErrExitNonZero, res.stderr, err)
	}
	if res.exitCode != 0 {
		g.logger.Printf("codec: encode exited with code %d: %s", res.exitCode, strings.TrimSpace(res.stderr))
		return nil, newError(op, ErrExitNonZero, res.stderr, fmt.Errorf("exit code %d", res.exitCode))
	}

	data, err := ws.ReadFile("out.wav")
	if err != nil {
		return nil, newError(op, ErrExitNonZero, "read wav failed", err)
	}
	return data, nil
}

// Decode extracts the message carried by a WAV payload.
func (g *BatchGateway) Decode(ctx context.Context, audio []byte) (DecodeResult, error) {
	const op = "decode"
	if len(audio) == 0 {
		return DecodeResult{}, newError(op, ErrValidation, "file is required (audio/wav)", nil)
	}
	if err := check(op, "ggwave-from-file", g.cfg.Tools.FromFile); err != nil {
		return DecodeResult{}, err
	}

	ws, err := NewWorkspace(g.cfg.WorkDir)
	if err != nil {
		return DecodeResult{}, newError(op, ErrSpawnFailed, "", err)
	}
	defer g.closeWorkspace(ws)

	wavPath, err := ws.WriteFile("in.wav", audio)
	if err != nil {
		return DecodeResult{}, newError(op, ErrSpawnFailed, "", err)
	}

	res, err := g.decodeFile(ctx, wavPath)
	if err != nil {
		if isSpawnError(err) {
			return DecodeResult{}, newError(op, ErrSpawnFailed, err.Error(), err)
		}
		return DecodeResult{}, newError(op, ErrExitNonZero, res.stderr, err)
	}
	// A non-zero exit that still produced a report is a miss, not a failure.
	if res.exitCode != 0 && strings.TrimSpace(res.stdout) == "" {
		return DecodeResult{}, newError(op, ErrExitNonZero, res.stderr, fmt.Errorf("exit code %d", res.exitCode))
	}

	out := DecodeResult{Message: ExtractMessage(res.stdout), Raw: res.stdout}
	g.metrics.ObserveDecode("batch", out.Message != "")
	return out, nil
}

func (g *BatchGateway) decodeFile(ctx context.Context, wavPath string) (runResult, error) {
	tctx, cancel := toolContext(ctx, g.cfg.ToolTimeout)
	defer cancel()

	start := time.Now()
	res, err := run(tctx, g.cfg.Tools.FromFile, []string{wavPath}, nil)
	g.metrics.ObserveTool("from-file", start, exitOutcome(res, err))
	return res, err
}

func (g *BatchGateway) closeWorkspace(ws *Workspace) {
	if err := ws.Close(); err != nil {
		g.logger.Printf("codec: remove workspace %s: %v", ws.Dir(), err)
	}
}

func exitOutcome(res runResult, err error) string {
	switch {
	case err != nil && isSpawnError(err):
		return "spawn_failed"
	case err != nil:
		return "killed"
	case res.exitCode != 0:
		return "exit_nonzero"
	default:
		return "ok"
	}
}
