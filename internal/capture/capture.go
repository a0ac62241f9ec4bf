// Package capture turns a live audio input into ordered, WAV-packed chunks and
// a separate stream of level samples.
package capture

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrDeviceBusy     = errors.New("capture: device already in use")
	ErrAlreadyStarted = errors.New("capture: source already started")
	ErrNotStarted     = errors.New("capture: source not started")
)

// Chunk is one timed segment of captured audio. Audio holds a mono 16-bit
// WAV file; Level is the RMS over the same samples.
type Chunk struct {
	ID        string
	Seq       int
	StartedAt time.Time
	Duration  time.Duration
	Audio     []byte
	Level     float64
}

// Device is an audio input that can be opened by one Source at a time.
type Device interface {
	Open() (Stream, error)
	SampleRate() int
}

// Stream yields mono signed 16-bit samples. Read blocks until at least one
// sample is available. Close releases the device and unblocks Read.
type Stream interface {
	Read(buf []int16) (int, error)
	Close() error
}

// exclusive guards a device against concurrent opens.
type exclusive struct {
	mu    sync.Mutex
	inUse bool
}

func (e *exclusive) claim() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inUse {
		return ErrDeviceBusy
	}
	e.inUse = true
	return nil
}

func (e *exclusive) release() {
	e.mu.Lock()
	e.inUse = false
	e.mu.Unlock()
}
