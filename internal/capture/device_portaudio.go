//go:build portaudio

package capture

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioDevice captures from the default input through PortAudio.
type PortAudioDevice struct {
	Rate            int
	FramesPerBuffer int

	exclusive
}

func NewPortAudioDevice(rate int) (Device, error) {
	return &PortAudioDevice{Rate: rate, FramesPerBuffer: 1024}, nil
}

func (d *PortAudioDevice) SampleRate() int {
	if d.Rate <= 0 {
		return 48000
	}
	return d.Rate
}

func (d *PortAudioDevice) Open() (Stream, error) {
	if err := d.claim(); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		d.release()
		return nil, fmt.Errorf("capture: portaudio init: %w", err)
	}

	in := make([]int16, d.FramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(d.SampleRate()), len(in), in)
	if err != nil {
		_ = portaudio.Terminate()
		d.release()
		return nil, fmt.Errorf("capture: open default stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		d.release()
		return nil, fmt.Errorf("capture: start stream: %w", err)
	}
	return &portAudioStream{stream: stream, in: in, release: d.release, closed: make(chan struct{})}, nil
}

type portAudioStream struct {
	stream  *portaudio.Stream
	in      []int16
	release func()

	mu        sync.Mutex
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func (s *portAudioStream) Read(buf []int16) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closed:
		return 0, fmt.Errorf("capture: stream closed")
	default:
	}
	if err := s.stream.Read(); err != nil {
		return 0, err
	}
	return copy(buf, s.in), nil
}

func (s *portAudioStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.stream.Stop(); err != nil {
			s.closeErr = err
		}
		if err := s.stream.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
		_ = portaudio.Terminate()
		s.release()
	})
	return s.closeErr
}
