package capture

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
)

// FFmpegDevice captures from a platform input through an ffmpeg subprocess
// that writes raw s16le mono PCM to its stdout.
type FFmpegDevice struct {
	Bin    string // ffmpeg executable, "ffmpeg" when empty
	Format string // input format: pulse, alsa, avfoundation, dshow
	Input  string // input name: default, :0, audio=...
	Rate   int

	exclusive
}

func (d *FFmpegDevice) SampleRate() int {
	if d.Rate <= 0 {
		return 48000
	}
	return d.Rate
}

func (d *FFmpegDevice) args() []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", d.Format,
		"-i", d.Input,
		"-ac", "1",
		"-ar", strconv.Itoa(d.SampleRate()),
		"-f", "s16le",
		"-",
	}
}

func (d *FFmpegDevice) Open() (Stream, error) {
	if d.Format == "" || d.Input == "" {
		return nil, errors.New("capture: ffmpeg device needs a format and an input")
	}
	if err := d.claim(); err != nil {
		return nil, err
	}

	bin := d.Bin
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.Command(bin, d.args()...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		d.release()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		d.release()
		return nil, fmt.Errorf("capture: start ffmpeg: %w", err)
	}
	return &ffmpegStream{cmd: cmd, r: bufio.NewReaderSize(stdout, 64*1024), stderr: &stderr, release: d.release}, nil
}

type ffmpegStream struct {
	cmd     *exec.Cmd
	r       *bufio.Reader
	stderr  *bytes.Buffer
	raw     []byte
	release func()

	closeOnce sync.Once
	closeErr  error
}

func (s *ffmpegStream) Read(buf []int16) (int, error) {
	need := 2 * len(buf)
	if cap(s.raw) < need {
		s.raw = make([]byte, need)
	}
	raw := s.raw[:need]

	n, err := io.ReadAtLeast(s.r, raw, 2)
	n -= n % 2
	for i := 0; i < n/2; i++ {
		buf[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return n / 2, err
	}
	return n / 2, nil
}

// Close kills ffmpeg and releases the device.
func (s *ffmpegStream) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		if err := s.cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				s.closeErr = err
			}
		}
		s.release()
	})
	return s.closeErr
}
