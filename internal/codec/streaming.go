package codec

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/lukasbauer/tonebridge/internal/metrics"
)

const defaultConvertSampleRate = 48000

// StreamingGateway decodes short compressed chunks captured from a microphone.
// Each chunk is converted to mono WAV with ffmpeg and then handed to the
// decoder. Decoder failures after a good conversion are routine misses and
// come back as an empty result.
type StreamingGateway struct {
	cfg     GatewayConfig
	logger  *log.Logger
	metrics *metrics.Metrics
}

func NewStreamingGateway(cfg GatewayConfig, logger *log.Logger, m *metrics.Metrics) *StreamingGateway {
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = defaultToolTimeout
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultConvertSampleRate
	}
	return &StreamingGateway{cfg: cfg, logger: logger, metrics: m}
}

func (g *StreamingGateway) DecodeChunk(ctx context.Context, chunk []byte) (DecodeResult, error) {
	const op = "decode-chunk"
	if len(chunk) == 0 {
		return DecodeResult{}, newError(op, ErrValidation, "file is required (audio/webm)", nil)
	}
	if err := check(op, "ggwave-from-file", g.cfg.Tools.FromFile); err != nil {
		return DecodeResult{}, err
	}

	ws, err := NewWorkspace(g.cfg.WorkDir)
	if err != nil {
		return DecodeResult{}, newError(op, ErrSpawnFailed, "", err)
	}
	defer func() {
		if err := ws.Close(); err != nil {
			g.logger.Printf("codec: remove workspace %s: %v", ws.Dir(), err)
		}
	}()

	webmPath, err := ws.WriteFile("in.webm", chunk)
	if err != nil {
		return DecodeResult{}, newError(op, ErrSpawnFailed, "", err)
	}
	wavPath := ws.Path("in.wav")

	if err := g.convert(ctx, webmPath, wavPath); err != nil {
		return DecodeResult{}, err
	}

	tctx, cancel := toolContext(ctx, g.cfg.ToolTimeout)
	defer cancel()

	start := time.Now()
	res, err := run(tctx, g.cfg.Tools.FromFile, []string{wavPath}, nil)
	g.metrics.ObserveTool("from-file", start, exitOutcome(res, err))
	if err != nil || res.exitCode != 0 {
		g.metrics.ObserveDecode("stream", false)
		return DecodeResult{Raw: res.stdout}, nil
	}

	out := DecodeResult{Message: ExtractMessage(res.stdout), Raw: res.stdout}
	g.metrics.ObserveDecode("stream", out.Message != "")
	return out, nil
}

func (g *StreamingGateway) convert(ctx context.Context, in, out string) error {
	const op = "convert"
	ffmpeg := g.cfg.Tools.ffmpegPath()
	if !executable(ffmpeg) {
		return newError(op, ErrConversionFailed, "ffmpeg not found or failed", ErrToolUnavailable)
	}

	args := []string{
		"-y", "-v", "error",
		"-i", in,
		"-ar", strconv.Itoa(g.cfg.SampleRate),
		"-ac", "1",
		"-f", "wav",
		out,
	}

	tctx, cancel := toolContext(ctx, g.cfg.ToolTimeout)
	defer cancel()

	start := time.Now()
	res, err := run(tctx, ffmpeg, args, nil)
	g.metrics.ObserveTool("ffmpeg", start, exitOutcome(res, err))
	if err != nil {
		return newError(op, ErrConversionFailed, "ffmpeg not found or failed", err)
	}
	if res.exitCode != 0 {
		return newError(op, ErrConversionFailed, res.stderr, fmt.Errorf("ffmpeg exit code %d", res.exitCode))
	}
	return nil
}
