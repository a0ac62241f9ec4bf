package relay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sys/unix"

	"github.com/lukasbauer/tonebridge/internal/codec"
	"github.com/lukasbauer/tonebridge/internal/metrics"
)

const (
	writeWait        = 10 * time.Second
	maxInboundBytes  = 64 * 1024
	maxLineBytes     = 1024 * 1024
	defaultQueueSize = 64

	// Output still buffered when the subprocess exits is relayed for at most
	// this long before the pipes are closed.
	drainWait = 2 * time.Second
)

// Close reasons sent to the peer.
const (
	reasonUnavailable = "ggwave-cli not available"
	reasonSpawnFailed = "ggwave-cli spawn failed"
	reasonDraining    = "server draining"
	reasonShutdown    = "server shutting down"
)

// Config is shared by every session of a server.
type Config struct {
	Tools     codec.Tools
	QueueSize int // inbound commands waiting for the subprocess
}

// Session pairs one duplex connection with one interactive codec subprocess.
// Run owns both exclusively: it is the only writer to the connection and the
// only goroutine that starts, signals and reaps the subprocess.
type Session struct {
	ID        string
	CreatedAt time.Time

	cfg     Config
	conn    *websocket.Conn
	logger  *log.Logger
	metrics *metrics.Metrics

	state    atomic.Int32
	pid      atomic.Int64
	exitCode atomic.Int64
	reaped   atomic.Bool

	shutdown     chan struct{}
	shutdownOnce sync.Once
	stopped      chan struct{} // actor loop finished
	done         chan struct{} // session fully closed
}

func NewSession(cfg Config, conn *websocket.Conn, logger *log.Logger, m *metrics.Metrics) *Session {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		cfg:       cfg,
		conn:      conn,
		logger:    logger,
		metrics:   m,
		shutdown:  make(chan struct{}),
		stopped:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	s.exitCode.Store(-1)
	return s
}

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	if prev != st {
		s.logger.Printf("relay: session %s %s -> %s", s.ID, prev, st)
	}
}

// Done is closed once the subprocess has been reaped and the connection closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Pid of the subprocess, 0 before spawn.
func (s *Session) Pid() int { return int(s.pid.Load()) }

// ExitCode of the subprocess, -1 if it was killed or never started.
func (s *Session) ExitCode() int { return int(s.exitCode.Load()) }

// Shutdown asks the session to kill its subprocess and close the connection.
func (s *Session) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdown) })
}

// Run drives the session until it is closed. It blocks.
func (s *Session) Run(ctx context.Context, reg *Registry) {
	defer close(s.done)
	defer s.setState(StateClosed)

	if !reg.Add(s) {
		s.reject(websocket.CloseTryAgainLater, reasonDraining, "draining")
		return
	}
	defer reg.Remove(s)

	if err := s.cfg.Tools.CheckCLI(); err != nil {
		s.logger.Printf("relay: session %s: %v", s.ID, err)
		s.reject(websocket.CloseInternalServerErr, reasonUnavailable, "unavailable")
		return
	}

	cmd := exec.Command(s.cfg.Tools.CLI, s.cfg.Tools.CLIArgs...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdin, stdout, stderr, err := pipes(cmd)
	if err == nil {
		err = cmd.Start()
	}
	if err != nil {
		s.logger.Printf("relay: session %s: spawn %s: %v", s.ID, s.cfg.Tools.CLI, err)
		sentry.CaptureException(fmt.Errorf("relay: spawn interactive tool: %w", err))
		s.reject(websocket.CloseInternalServerErr, reasonSpawnFailed, "spawn_failed")
		return
	}
	s.pid.Store(int64(cmd.Process.Pid))
	s.setState(StateActive)
	s.metrics.SessionStarted()
	defer func() { s.metrics.SessionEnded(time.Since(s.CreatedAt)) }()

	s.loop(ctx, cmd, stdin, stdout, stderr)
}

func pipes(cmd *exec.Cmd) (io.WriteCloser, io.ReadCloser, io.ReadCloser, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, nil, err
	}
	return stdin, stdout, stderr, nil
}

func (s *Session) loop(ctx context.Context, cmd *exec.Cmd, stdin io.WriteCloser, stdout, stderr io.ReadCloser) {
	lines := make(chan outputLine, s.cfg.QueueSize)
	var readers sync.WaitGroup
	readers.Add(2)
	go s.scan(stdout, streamStdout, lines, &readers)
	go s.scan(stderr, streamStderr, lines, &readers)
	go func() {
		readers.Wait()
		close(lines)
	}()

	// The exit is observed without waiting for the pipes: descendants of the
	// tool may still hold them open. They share its process group and are
	// killed with it.
	exited := make(chan int, 1)
	go func() {
		code := -1
		state, err := cmd.Process.Wait()
		if err != nil {
			s.logger.Printf("relay: session %s: wait: %v", s.ID, err)
		} else {
			code = state.ExitCode()
		}
		killGroup(cmd.Process.Pid)
		s.reaped.Store(true)
		exited <- code
	}()
	defer stdout.Close()
	defer stderr.Close()

	inbox := make(chan string, s.cfg.QueueSize)
	go s.feed(stdin, inbox)

	commands := make(chan Command)
	connGone := make(chan struct{})
	readerDone := make(chan struct{})
	go s.readConn(commands, connGone, readerDone)

	var (
		shutdown  = s.shutdown
		ctxDone   = ctx.Done()
		drained   <-chan time.Time
		connOpen  = true
		exitSeen  bool
		exitCode  int
		closeCode = websocket.CloseNormalClosure
		reason    string
	)

	beginClosing := func(why string) {
		if s.State() == StateActive {
			s.logger.Printf("relay: session %s closing: %s", s.ID, why)
			s.setState(StateClosing)
		}
		commands = nil
	}

	for lines != nil || !exitSeen {
		select {
		case c := <-commands:
			select {
			case inbox <- c.Text:
			default:
				s.logger.Printf("relay: session %s: inbound queue full, dropping command", s.ID)
			}

		case l, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if !connOpen {
				continue
			}
			for _, ev := range eventsFor(l) {
				if err := s.write(ev); err != nil {
					s.logger.Printf("relay: session %s: write: %v", s.ID, err)
					connOpen = false
					beginClosing("write failed")
					if !exitSeen {
						s.kill(cmd)
					}
					break
				}
			}

		case code := <-exited:
			exited = nil
			exitSeen = true
			exitCode = code
			drained = time.After(drainWait)
			s.exitCode.Store(int64(code))
			s.logger.Printf("relay: session %s: subprocess exited with code %d", s.ID, code)
			beginClosing("subprocess exited")
			if reason == "" {
				reason = fmt.Sprintf("cli_exit_%d", code)
			}

		case <-drained:
			drained = nil
			s.logger.Printf("relay: session %s: output still open %s after exit, closing pipes", s.ID, drainWait)
			_ = stdout.Close()
			_ = stderr.Close()

		case <-connGone:
			connGone = nil
			connOpen = false
			beginClosing("connection closed")
			if !exitSeen {
				s.kill(cmd)
			}

		case <-shutdown:
			shutdown = nil
			closeCode, reason = websocket.CloseGoingAway, reasonShutdown
			beginClosing("shutdown")
			s.kill(cmd)

		case <-ctxDone:
			ctxDone = nil
			closeCode, reason = websocket.CloseGoingAway, reasonShutdown
			beginClosing("context done")
			s.kill(cmd)
		}
	}
	close(s.stopped)
	close(inbox)

	if connOpen {
		if reason == "" {
			reason = fmt.Sprintf("cli_exit_%d", exitCode)
		}
		s.closeConn(closeCode, reason)
	} else {
		_ = s.conn.Close()
	}
	<-readerDone
}

func (s *Session) scan(r io.Reader, which stream, out chan<- outputLine, wg *sync.WaitGroup) {
	defer wg.Done()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)
	for sc.Scan() {
		out <- outputLine{stream: which, text: sc.Text()}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, os.ErrClosed) {
		s.logger.Printf("relay: session %s: read output: %v", s.ID, err)
	}
}

// feed writes queued commands to the subprocess, one line each.
func (s *Session) feed(stdin io.WriteCloser, inbox <-chan string) {
	defer stdin.Close()
	broken := false
	for text := range inbox {
		if broken {
			continue
		}
		if _, err := io.WriteString(stdin, text+"\n"); err != nil {
			s.logger.Printf("relay: session %s: write stdin: %v", s.ID, err)
			broken = true
		}
	}
}

func (s *Session) readConn(commands chan<- Command, gone, done chan<- struct{}) {
	defer close(done)
	defer close(gone)

	s.conn.SetReadLimit(maxInboundBytes)
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Printf("relay: session %s: connection closed by peer", s.ID)
			} else if s.State() == StateActive {
				s.logger.Printf("relay: session %s: read error: %v", s.ID, err)
			}
			return
		}

		c, err := parseCommand(msg)
		if err != nil {
			s.logger.Printf("relay: session %s: ignoring malformed frame: %v", s.ID, err)
			continue
		}

		select {
		case commands <- c:
		case <-s.stopped:
			return
		}
	}
}

func (s *Session) write(ev Event) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(ev); err != nil {
		return err
	}
	s.metrics.RelayEvent(string(ev.Type))
	return nil
}

func (s *Session) closeConn(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		s.logger.Printf("relay: session %s: write close: %v", s.ID, err)
	}
	s.metrics.RelayEvent(string(EventClosed))
	_ = s.conn.Close()
}

func (s *Session) reject(code int, reason, label string) {
	s.metrics.SessionRejected(label)
	msg := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = s.conn.Close()
}

// kill sends SIGKILL to the subprocess group. There is no grace period.
// Once the subprocess is reaped its group id may be reused, so kill is a no-op.
func (s *Session) kill(cmd *exec.Cmd) {
	if s.reaped.Load() {
		return
	}
	if !killGroup(cmd.Process.Pid) {
		_ = cmd.Process.Kill()
	}
}

// killGroup reports false when the group could not be signalled for a reason
// other than it being gone already.
func killGroup(pid int) bool {
	err := unix.Kill(-pid, unix.SIGKILL)
	return err == nil || errors.Is(err, unix.ESRCH)
}
