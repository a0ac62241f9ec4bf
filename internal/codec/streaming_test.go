package codec_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lukasbauer/tonebridge/internal/codec"
	"github.com/lukasbauer/tonebridge/internal/codec/codectest"
)

func newStreaming(t *testing.T, tools codec.Tools) (*codec.StreamingGateway, string) {
	t.Helper()
	work := t.TempDir()
	return codec.NewStreamingGateway(codec.GatewayConfig{Tools: tools, WorkDir: work}, testLogger(), nil), work
}

func TestDecodeChunk(t *testing.T) {
	tools := codectest.Tools(t)

	tests := []struct {
		name    string
		chunk   string
		wantMsg string
	}{
		{"message", "GGWAVE:hey", "hey"},
		{"routine miss", "silence", ""},
		{"decoder exits non-zero", "MISS", ""},
		{"decoder fails without output", "FAIL", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, work := newStreaming(t, tools)
			res, err := g.DecodeChunk(context.Background(), []byte(tt.chunk))
			if err != nil {
				t.Fatalf("DecodeChunk() error = %v", err)
			}
			if res.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", res.Message, tt.wantMsg)
			}
			assertNoWorkspaces(t, work)
		})
	}
}

func TestDecodeChunk_ConversionFailure(t *testing.T) {
	tools := codectest.Tools(t)
	g, work := newStreaming(t, tools)

	_, err := g.DecodeChunk(context.Background(), []byte("BAD header"))
	if !errors.Is(err, codec.ErrConversionFailed) {
		t.Fatalf("err = %v, want ErrConversionFailed", err)
	}
	if got := codec.Details(err); !strings.Contains(got, "Invalid data found") {
		t.Errorf("details = %q, want ffmpeg stderr", got)
	}
	assertNoWorkspaces(t, work)
}

func TestDecodeChunk_FFmpegMissing(t *testing.T) {
	tools := codectest.Tools(t)
	tools.FFmpeg = "/nonexistent/ffmpeg"
	g, _ := newStreaming(t, tools)

	_, err := g.DecodeChunk(context.Background(), []byte("GGWAVE:hey"))
	if !errors.Is(err, codec.ErrConversionFailed) {
		t.Fatalf("err = %v, want ErrConversionFailed", err)
	}
	if !errors.Is(err, codec.ErrToolUnavailable) {
		t.Errorf("err = %v, want it to wrap ErrToolUnavailable", err)
	}
}

func TestDecodeChunk_Validation(t *testing.T) {
	g, _ := newStreaming(t, codec.Tools{})

	_, err := g.DecodeChunk(context.Background(), nil)
	if !errors.Is(err, codec.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if got := codec.Details(err); got != "file is required (audio/webm)" {
		t.Errorf("details = %q", got)
	}
}

func TestDecodeChunk_DecoderUnavailable(t *testing.T) {
	tools := codectest.Tools(t)
	tools.FromFile = ""
	g, _ := newStreaming(t, tools)

	_, err := g.DecodeChunk(context.Background(), []byte("GGWAVE:hey"))
	if !errors.Is(err, codec.ErrToolUnavailable) {
		t.Fatalf("err = %v, want ErrToolUnavailable", err)
	}
}
