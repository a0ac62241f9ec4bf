package app

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lukasbauer/tonebridge/internal/codec/codectest"
	"github.com/lukasbauer/tonebridge/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	tools := codectest.Tools(t)
	return &config.Config{
		Env:               "test",
		Port:              5055,
		ShutdownTimeout:   5 * time.Second,
		ToFileBin:         tools.ToFile,
		FromFileBin:       tools.FromFile,
		CLIBin:            tools.CLI,
		CLIArgs:           tools.CLIArgs,
		FFmpegBin:         tools.FFmpeg,
		ConvertSampleRate: 48000,
		WorkDir:           t.TempDir(),
		ToolTimeout:       10 * time.Second,
		MaxUploadBytes:    1 << 20,
		RelayQueueSize:    8,
	}
}

func TestNew_RequiresValidConfig(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	if _, err := New(nil, logger); err == nil {
		t.Error("New(nil) error = nil")
	}
	cfg := testConfig(t)
	cfg.Port = 0
	if _, err := New(cfg, logger); err == nil {
		t.Error("New() with invalid port error = nil")
	}
}

func TestApp_ServesAndDrains(t *testing.T) {
	a, err := New(testConfig(t), log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	a.Start()

	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/encode", "application/json", strings.NewReader(`{"message":"wired"}`))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "GGWAVE:wired" {
		t.Fatalf("encode = %d %q", resp.StatusCode, body)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/cli"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The banner means the session is registered and its tool is running.
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read banner: %v", err)
	}
	if n := a.Sessions().Len(); n != 1 {
		t.Fatalf("Sessions().Len() = %d, want 1", n)
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.ShutdownTimeout())
	defer cancel()
	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if n := a.Sessions().Len(); n != 0 {
		t.Errorf("Sessions().Len() = %d after Close, want 0", n)
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
				t.Errorf("close = %v, want 1001", err)
			}
			break
		}
	}

	// New sessions are refused once draining.
	conn2, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial after close: %v", err)
	}
	defer conn2.Close()
	_ = conn2.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn2.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
		t.Errorf("second session close = %v, want 1013", err)
	}
}
