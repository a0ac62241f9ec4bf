package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lukasbauer/tonebridge/internal/capture"
	"github.com/lukasbauer/tonebridge/internal/client"
	"github.com/lukasbauer/tonebridge/internal/codec"
)

const usage = `usage: tonebridge <command> [flags]

commands:
  health                 show which tools the server can run
  send [-link] TEXT      send one message
  script [-link] FILE    send every line of FILE ("-" for stdin)
  listen [-link]         decode the microphone until interrupted
  decode FILE.wav        decode a recording
`

func main() {
	logger := log.New(os.Stderr, "", log.LstdFlags)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Printf("load .env: %v", err)
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := client.LoadConfig()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Args[1], os.Args[2:]); err != nil {
		logger.Fatalf("%s: %v", os.Args[1], err)
	}
}

func run(ctx context.Context, cfg *client.Config, logger *log.Logger, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	useLink := fs.Bool("link", false, "open a duplex session and route messages over it")
	volume := fs.Int("volume", 0, "encode volume (0 for server default)")
	protocol := fs.Int("protocol", 0, "encode protocol id (0 for server default)")
	_ = fs.Parse(args)

	api := client.NewAPI(cfg.ServerURL, &http.Client{Timeout: cfg.HTTPTimeout})

	switch cmd {
	case "health":
		h, err := api.Health(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("ok=%t toFile=%t fromFile=%t cli=%t ffmpeg=%t\n", h.OK, h.ToFile, h.FromFile, h.CLI, h.FFmpeg)
		return nil
	case "decode":
		if fs.NArg() != 1 {
			return fmt.Errorf("expected one WAV file")
		}
		wav, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			return err
		}
		ctrl := client.NewController(client.ControllerConfig{}, api, nil, logger)
		msg, err := ctrl.DecodeFile(ctx, wav)
		if err != nil {
			return err
		}
		fmt.Println(msg)
		return nil
	}

	player, err := client.NewCommandPlayer(cfg.PlayerCmd, cfg.WorkDir)
	if err != nil {
		return err
	}
	ctrl := client.NewController(client.ControllerConfig{
		ScriptGap: cfg.ScriptGap,
		Params:    codec.EncodeParams{Volume: *volume, Protocol: *protocol},
	}, api, player, logger)

	if *useLink {
		link, err := client.Dial(ctx, cfg.RelayURL(), logger)
		if err != nil {
			return err
		}
		defer link.Close()
		ctrl.SetLink(link)
		go printInbound(link, logger)
	}

	switch cmd {
	case "send":
		text := strings.Join(fs.Args(), " ")
		if text == "" {
			return fmt.Errorf("nothing to send")
		}
		route, err := ctrl.Send(ctx, text)
		if err != nil {
			return err
		}
		logger.Printf("sent via %s", route)
	case "script":
		if fs.NArg() != 1 {
			return fmt.Errorf("expected one script file")
		}
		script, err := readScript(fs.Arg(0))
		if err != nil {
			return err
		}
		return ctrl.PlayScript(ctx, script)
	case "listen":
		return listen(ctx, cfg, ctrl, logger)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
	if *useLink {
		// Keep the session open to print what the server side hears.
		<-ctx.Done()
	}
	return nil
}

func readScript(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(bufio.NewReader(os.Stdin))
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

func printInbound(link *client.Link, logger *log.Logger) {
	for ev := range link.Events() {
		if msg, ok := client.InboundMessage(ev); ok {
			fmt.Printf("< %s\n", msg)
			continue
		}
		logger.Printf("relay %s: %s", ev.Type, ev.Data)
	}
}

func listen(ctx context.Context, cfg *client.Config, ctrl *client.Controller, logger *log.Logger) error {
	var dev capture.Device
	if cfg.CaptureFormat == "portaudio" {
		d, err := capture.NewPortAudioDevice(cfg.CaptureRate)
		if err != nil {
			return err
		}
		dev = d
	} else {
		dev = &capture.FFmpegDevice{Bin: cfg.FFmpegBin, Format: cfg.CaptureFormat, Input: cfg.CaptureInput, Rate: cfg.CaptureRate}
	}

	src := capture.NewSource(dev, capture.Config{
		ChunkInterval: cfg.ChunkInterval,
		LevelInterval: cfg.LevelInterval,
	}, logger)
	if err := src.Start(); err != nil {
		return err
	}

	go func() {
		for lvl := range src.Levels() {
			fmt.Fprintf(os.Stderr, "\rlevel %-40s", strings.Repeat("#", int(lvl*40)))
		}
	}()
	go func() {
		<-ctx.Done()
		if err := src.Stop(); err != nil {
			logger.Printf("stop capture: %v", err)
		}
	}()

	// Drain with a background context so the flushed final chunk is decoded.
	return ctrl.Listen(context.WithoutCancel(ctx), src.Chunks(), func(c capture.Chunk, msg string) {
		fmt.Printf("\n[%s] %s\n", c.StartedAt.Local().Format("15:04:05"), msg)
	})
}
