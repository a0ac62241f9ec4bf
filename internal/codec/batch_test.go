package codec_test

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lukasbauer/tonebridge/internal/codec"
	"github.com/lukasbauer/tonebridge/internal/codec/codectest"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newBatch(t *testing.T, tools codec.Tools) (*codec.BatchGateway, string) {
	t.Helper()
	work := t.TempDir()
	g := codec.NewBatchGateway(codec.GatewayConfig{Tools: tools, WorkDir: work}, testLogger(), nil)
	return g, work
}

func assertNoWorkspaces(t *testing.T, work string) {
	t.Helper()
	entries, err := os.ReadDir(work)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("work dir has %d leftover entries, first %q", len(entries), entries[0].Name())
	}
}

func TestEncode_WritesMessageOnStdin(t *testing.T) {
	tools := codectest.Tools(t)
	g, work := newBatch(t, tools)

	wav, err := g.Encode(context.Background(), "hello there", codec.EncodeParams{})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if got, want := string(wav), "GGWAVE:hello there"; got != want {
		t.Errorf("wav = %q, want %q", got, want)
	}
	assertNoWorkspaces(t, work)
}

func TestEncode_OptionalArguments(t *testing.T) {
	tools := codectest.Tools(t)
	g, _ := newBatch(t, tools)

	if _, err := g.Encode(context.Background(), "x", codec.EncodeParams{Volume: 50, Protocol: 2}); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	args := strings.TrimSpace(codectest.ToFileArgs(t, tools))
	if !strings.HasPrefix(args, "-f") {
		t.Errorf("args = %q, want leading -f<path>", args)
	}
	if !strings.HasSuffix(args, " -v50 -p2") {
		t.Errorf("args = %q, want -v50 -p2 and no sample rate", args)
	}
	if !strings.HasSuffix(strings.Fields(args)[0], "out.wav") {
		t.Errorf("output path = %q, want out.wav", strings.Fields(args)[0])
	}
}

func TestEncode_EmptyMessageIsValidationError(t *testing.T) {
	// Tools that do not exist: validation must come first.
	g, _ := newBatch(t, codec.Tools{ToFile: "/nonexistent/ggwave-to-file"})

	_, err := g.Encode(context.Background(), "", codec.EncodeParams{})
	if !errors.Is(err, codec.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if got := codec.Details(err); got != "message is required" {
		t.Errorf("details = %q", got)
	}
}

func TestEncode_ToolUnavailable(t *testing.T) {
	dir := t.TempDir()
	notExec := filepath.Join(dir, "ggwave-to-file")
	if err := os.WriteFile(notExec, []byte("#!/bin/sh\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "missing")},
		{"not executable", notExec},
		{"empty path", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, work := newBatch(t, codec.Tools{ToFile: tt.path})
			_, err := g.Encode(context.Background(), "hi", codec.EncodeParams{})
			if !errors.Is(err, codec.ErrToolUnavailable) {
				t.Fatalf("err = %v, want ErrToolUnavailable", err)
			}
			if got := codec.Details(err); got != "ggwave-to-file binary not found. Build it first." {
				t.Errorf("details = %q", got)
			}
			assertNoWorkspaces(t, work)
		})
	}
}

func TestEncode_NonZeroExit(t *testing.T) {
	dir := t.TempDir()
	tools := codec.Tools{ToFile: codectest.Write(t, dir, "enc", "#!/bin/sh\necho 'bad protocol' >&2\nexit 4\n")}
	g, work := newBatch(t, tools)

	_, err := g.Encode(context.Background(), "hi", codec.EncodeParams{Protocol: 99})
	if !errors.Is(err, codec.ErrExitNonZero) {
		t.Fatalf("err = %v, want ErrExitNonZero", err)
	}
	if got := codec.Details(err); !strings.Contains(got, "bad protocol") {
		t.Errorf("details = %q, want stderr text", got)
	}
	assertNoWorkspaces(t, work)
}

func TestEncode_TimeoutKillsTool(t *testing.T) {
	dir := t.TempDir()
	tools := codec.Tools{ToFile: codectest.Write(t, dir, "enc", "#!/bin/sh\nexec sleep 30\n")}
	g := codec.NewBatchGateway(codec.GatewayConfig{Tools: tools, WorkDir: t.TempDir(), ToolTimeout: 200 * time.Millisecond}, testLogger(), nil)

	start := time.Now()
	_, err := g.Encode(context.Background(), "hi", codec.EncodeParams{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Encode took %s after timeout", elapsed)
	}
}

func TestEncode_CallerCancelDoesNotKillTool(t *testing.T) {
	tools := codectest.Tools(t)
	g, _ := newBatch(t, tools)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	wav, err := g.Encode(ctx, "still here", codec.EncodeParams{})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if string(wav) != "GGWAVE:still here" {
		t.Errorf("wav = %q", wav)
	}
}

func TestDecode(t *testing.T) {
	tools := codectest.Tools(t)

	tests := []struct {
		name     string
		audio    string
		wantMsg  string
		wantRaw  string
		wantKind error
	}{
		{name: "message", audio: "GGWAVE:hi there", wantMsg: "hi there", wantRaw: "Decoded message with length 8: 'hi there'"},
		{name: "nothing found", audio: "noise", wantRaw: "No message decoded"},
		{name: "non-zero exit with report", audio: "MISS", wantRaw: "No message decoded"},
		{name: "non-zero exit without report", audio: "FAIL", wantKind: codec.ErrExitNonZero},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, work := newBatch(t, tools)
			res, err := g.Decode(context.Background(), []byte(tt.audio))
			if tt.wantKind != nil {
				if !errors.Is(err, tt.wantKind) {
					t.Fatalf("err = %v, want %v", err, tt.wantKind)
				}
				if got := codec.Details(err); !strings.Contains(got, "failed to read wav") {
					t.Errorf("details = %q, want stderr", got)
				}
				assertNoWorkspaces(t, work)
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if res.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", res.Message, tt.wantMsg)
			}
			if !strings.Contains(res.Raw, tt.wantRaw) {
				t.Errorf("raw = %q, want it to contain %q", res.Raw, tt.wantRaw)
			}
			assertNoWorkspaces(t, work)
		})
	}
}

func TestDecode_EmptyUpload(t *testing.T) {
	g, _ := newBatch(t, codec.Tools{})
	_, err := g.Decode(context.Background(), nil)
	if !errors.Is(err, codec.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestRoundTrip(t *testing.T) {
	tools := codectest.Tools(t)
	g, _ := newBatch(t, tools)

	for _, msg := range []string{"a", "hello", "hiiiiiii", "with spaces and 123"} {
		wav, err := g.Encode(context.Background(), msg, codec.EncodeParams{})
		if err != nil {
			t.Fatalf("Encode(%q) error = %v", msg, err)
		}
		res, err := g.Decode(context.Background(), wav)
		if err != nil {
			t.Fatalf("Decode(%q) error = %v", msg, err)
		}
		if res.Message != msg {
			t.Errorf("round trip = %q, want %q", res.Message, msg)
		}
	}
}

func TestConcurrentRequestsUseSeparateWorkspaces(t *testing.T) {
	tools := codectest.Tools(t)
	g, work := newBatch(t, tools)

	const n = 8
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		msg := strings.Repeat("x", i+1)
		go func() {
			wav, err := g.Encode(context.Background(), msg, codec.EncodeParams{})
			if err != nil {
				errs <- err
				return
			}
			res, err := g.Decode(context.Background(), wav)
			if err == nil && res.Message != msg {
				err = errors.New("got " + res.Message + ", want " + msg)
			}
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Error(err)
		}
	}
	assertNoWorkspaces(t, work)
}
