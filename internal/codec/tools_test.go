package codec_test

import (
	"errors"
	"testing"

	"github.com/lukasbauer/tonebridge/internal/codec"
	"github.com/lukasbauer/tonebridge/internal/codec/codectest"
)

func TestTools_Available(t *testing.T) {
	tools := codectest.Tools(t)
	got := tools.Available()
	want := codec.Availability{OK: true, ToFile: true, FromFile: true, CLI: true, FFmpeg: true}
	if got != want {
		t.Errorf("Available() = %+v, want %+v", got, want)
	}

	tools.CLI = "/nonexistent/ggwave-cli"
	tools.FFmpeg = "definitely-not-on-path-ffmpeg"
	got = tools.Available()
	if !got.OK || got.CLI || got.FFmpeg || !got.ToFile {
		t.Errorf("Available() = %+v, want ok with cli and ffmpeg false", got)
	}
}

func TestTools_CheckCLI(t *testing.T) {
	tools := codectest.Tools(t)
	if err := tools.CheckCLI(); err != nil {
		t.Fatalf("CheckCLI() error = %v", err)
	}
	tools.CLI = ""
	if err := tools.CheckCLI(); !errors.Is(err, codec.ErrToolUnavailable) {
		t.Errorf("CheckCLI() = %v, want ErrToolUnavailable", err)
	}
}
