package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/lukasbauer/tonebridge/internal/capture"
	"github.com/lukasbauer/tonebridge/internal/codec"
)

// NoMessage is shown when an uploaded recording carried nothing.
const NoMessage = "(no message detected)"

// Backend is the subset of the relay server API the controller needs.
type Backend interface {
	Encode(ctx context.Context, message string, p codec.EncodeParams) ([]byte, error)
	Decode(ctx context.Context, wav []byte) (codec.DecodeResult, error)
	DecodeChunk(ctx context.Context, chunk []byte) (codec.DecodeResult, error)
}

// Channel is a live duplex session, normally a *Link.
type Channel interface {
	Ready() bool
	Send(text string) error
}

// Route names the path a message took.
type Route string

const (
	RouteLink  Route = "link"
	RouteAudio Route = "audio"
)

type ControllerConfig struct {
	ScriptGap time.Duration
	Params    codec.EncodeParams
}

// Controller routes outgoing messages to the live session when there is one
// and to encode plus local playback otherwise. Only one message is on the
// audio channel at a time, and only one script runs at a time.
type Controller struct {
	cfg     ControllerConfig
	backend Backend
	player  Player
	logger  *log.Logger

	linkMu sync.RWMutex
	link   Channel

	sendMu   sync.Mutex
	scriptMu sync.Mutex
}

func NewController(cfg ControllerConfig, backend Backend, player Player, logger *log.Logger) *Controller {
	return &Controller{cfg: cfg, backend: backend, player: player, logger: logger}
}

// SetLink attaches (or with nil, detaches) the live session.
func (c *Controller) SetLink(ch Channel) {
	c.linkMu.Lock()
	c.link = ch
	c.linkMu.Unlock()
}

func (c *Controller) readyLink() Channel {
	c.linkMu.RLock()
	defer c.linkMu.RUnlock()
	if c.link != nil && c.link.Ready() {
		return c.link
	}
	return nil
}

// Send dispatches one message and returns once it has been handed to the
// session or fully played.
func (c *Controller) Send(ctx context.Context, text string) (Route, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if link := c.readyLink(); link != nil {
		err := link.Send(text)
		if err == nil {
			c.logger.Printf("client: sent %q over link", text)
			return RouteLink, nil
		}
		if !errors.Is(err, ErrLinkClosed) {
			return RouteLink, err
		}
		// Link dropped between the check and the write.
	}

	start := time.Now()
	wav, err := c.backend.Encode(ctx, text, c.cfg.Params)
	if err != nil {
		return RouteAudio, fmt.Errorf("encode: %w", err)
	}
	c.logger.Printf("client: encoded %q in %s", text, time.Since(start).Round(time.Millisecond))

	if err := c.player.Play(ctx, wav); err != nil {
		return RouteAudio, fmt.Errorf("play: %w", err)
	}
	return RouteAudio, nil
}

var lineBreak = regexp.MustCompile(`\r?\n`)

// ScriptLines splits a script into its non-blank, trimmed lines.
func ScriptLines(script string) []string {
	var lines []string
	for _, l := range lineBreak.Split(script, -1) {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// PlayScript sends each line in order, waiting for one to finish before the
// next and pausing ScriptGap between them. A second script waits for the
// running one.
func (c *Controller) PlayScript(ctx context.Context, script string) error {
	c.scriptMu.Lock()
	defer c.scriptMu.Unlock()

	for i, line := range ScriptLines(script) {
		if i > 0 && c.cfg.ScriptGap > 0 {
			t := time.NewTimer(c.cfg.ScriptGap)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := c.Send(ctx, line); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return nil
}

// Listen decodes captured chunks in capture order until the chunk channel
// closes or ctx is done. Each found message is passed to onMessage. Misses
// and failed chunks are logged and skipped.
func (c *Controller) Listen(ctx context.Context, chunks <-chan capture.Chunk, onMessage func(capture.Chunk, string)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return nil
			}
			start := time.Now()
			res, err := c.backend.DecodeChunk(ctx, chunk.Audio)
			if err != nil {
				c.logger.Printf("client: chunk %d: %v", chunk.Seq, err)
				continue
			}
			c.logger.Printf("client: chunk %d decoded in %s", chunk.Seq, time.Since(start).Round(time.Millisecond))
			if res.Message != "" {
				onMessage(chunk, res.Message)
			}
		}
	}
}

// DecodeFile decodes a WAV recording and returns its message, or NoMessage.
func (c *Controller) DecodeFile(ctx context.Context, wav []byte) (string, error) {
	res, err := c.backend.Decode(ctx, wav)
	if err != nil {
		return "", err
	}
	if res.Message == "" {
		return NoMessage, nil
	}
	return res.Message, nil
}
