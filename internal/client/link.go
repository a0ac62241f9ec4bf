package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lukasbauer/tonebridge/internal/codec"
	"github.com/lukasbauer/tonebridge/internal/relay"
)

var ErrLinkClosed = errors.New("client: link is closed")

// Link is a duplex connection to the relay server's interactive tool.
type Link struct {
	conn   *websocket.Conn
	logger *log.Logger

	events    chan relay.Event
	done      chan struct{}
	ready     atomic.Bool
	closeOnce sync.Once
	mu        sync.Mutex // serialises writes
	wg        sync.WaitGroup

	closeMu     sync.Mutex
	closeCode   int
	closeReason string
}

// Dial opens a Link to wsURL, e.g. ws://localhost:5055/ws/cli.
func Dial(ctx context.Context, wsURL string, logger *log.Logger) (*Link, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay: %w", err)
	}

	l := &Link{
		conn:   conn,
		logger: logger,
		events: make(chan relay.Event, 100),
		done:   make(chan struct{}),
	}
	l.ready.Store(true)

	l.wg.Add(1)
	go l.readLoop()

	return l, nil
}

// Ready reports whether the connection is open.
func (l *Link) Ready() bool { return l.ready.Load() }

// Events delivers every frame from the server in order. The channel is
// closed when the connection ends; the last event is a closed event whose
// Data holds the close reason.
func (l *Link) Events() <-chan relay.Event { return l.events }

// CloseStatus returns the close code and reason sent by the server, or 0 if
// the connection is still open or ended without a close frame.
func (l *Link) CloseStatus() (int, string) {
	l.closeMu.Lock()
	defer l.closeMu.Unlock()
	return l.closeCode, l.closeReason
}

// Send forwards one line of text to the interactive tool.
func (l *Link) Send(text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.Ready() {
		return ErrLinkClosed
	}
	_ = l.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return l.conn.WriteJSON(relay.Command{Type: "send", Text: text})
}

// Close ends the session. The server kills its tool when the connection goes.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.ready.Store(false)
		close(l.done)

		l.mu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closed")
		_ = l.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		l.mu.Unlock()

		err = l.conn.Close()

		// Wait for readLoop so the events channel is closed on return.
		l.wg.Wait()
	})
	return err
}

func (l *Link) readLoop() {
	defer l.wg.Done()
	defer close(l.events)
	defer l.ready.Store(false)

	for {
		_, msg, err := l.conn.ReadMessage()
		if err != nil {
			reason := err.Error()
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				l.closeMu.Lock()
				l.closeCode, l.closeReason = ce.Code, ce.Text
				l.closeMu.Unlock()
				reason = ce.Text
			}
			l.ready.Store(false)
			l.emit(relay.Event{Type: relay.EventClosed, Data: reason})
			return
		}

		var ev relay.Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			l.logger.Printf("client: failed to parse relay frame: %v", err)
			continue
		}
		if !l.emit(ev) {
			return
		}
	}
}

func (l *Link) emit(ev relay.Event) bool {
	select {
	case <-l.done:
		return false
	case l.events <- ev:
		return true
	}
}

// InboundMessage extracts a message heard by the server side tool from one
// relay event: decoded frames carry it directly, and the tool's stderr
// reports received payloads in its own shape.
func InboundMessage(ev relay.Event) (string, bool) {
	switch ev.Type {
	case relay.EventDecoded:
		return ev.Message, ev.Message != ""
	case relay.EventStderr:
		if kind, payload := codec.ClassifyLine(ev.Data); kind == codec.LineReceived {
			return payload, true
		}
	}
	return "", false
}
