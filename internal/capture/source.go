package capture

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Config struct {
	ChunkInterval time.Duration // audio per chunk
	LevelInterval time.Duration // level sampling period
	LevelWindow   int           // samples used for each level value
	FrameSize     int           // samples per device read
}

func (c Config) withDefaults() Config {
	if c.ChunkInterval <= 0 {
		c.ChunkInterval = 2 * time.Second
	}
	if c.LevelInterval <= 0 {
		c.LevelInterval = 50 * time.Millisecond
	}
	if c.LevelWindow <= 0 {
		c.LevelWindow = 1024
	}
	if c.FrameSize <= 0 {
		c.FrameSize = 1024
	}
	return c
}

// Source captures from one Device. A Source runs once: after Stop it cannot
// be started again.
//
// Chunks are delivered in capture order on Chunks, which is closed after the
// last (possibly partial) chunk. Consumers must drain Chunks until it is
// closed. Level samples are delivered on Levels independently; a lagging
// level subscriber misses samples rather than stalling capture.
type Source struct {
	dev    Device
	cfg    Config
	logger *log.Logger

	mu       sync.Mutex
	started  bool
	stopping bool
	stream   Stream

	win   *window
	winMu sync.Mutex

	chunks chan Chunk
	levels chan float64

	stopLevels chan struct{}
	captureWG  sync.WaitGroup
	levelsWG   sync.WaitGroup
}

func NewSource(dev Device, cfg Config, logger *log.Logger) *Source {
	cfg = cfg.withDefaults()
	return &Source{
		dev:        dev,
		cfg:        cfg,
		logger:     logger,
		win:        newWindow(cfg.LevelWindow),
		chunks:     make(chan Chunk, 8),
		levels:     make(chan float64, 16),
		stopLevels: make(chan struct{}),
	}
}

func (s *Source) Chunks() <-chan Chunk { return s.chunks }

func (s *Source) Levels() <-chan float64 { return s.levels }

// Start opens the device and begins capture.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}

	stream, err := s.dev.Open()
	if err != nil {
		return err
	}
	s.started = true
	s.stream = stream

	s.captureWG.Add(1)
	go s.capture(stream, time.Now().UTC())
	s.levelsWG.Add(1)
	go s.sampleLevels()

	s.logger.Printf("capture: started at %d Hz, %s chunks", s.dev.SampleRate(), s.cfg.ChunkInterval)
	return nil
}

// Stop releases the device, flushes the buffered partial chunk and waits for
// both channels to be closed.
func (s *Source) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if s.stopping {
		s.mu.Unlock()
		s.captureWG.Wait()
		s.levelsWG.Wait()
		return nil
	}
	s.stopping = true
	stream := s.stream
	s.mu.Unlock()

	err := stream.Close()
	s.captureWG.Wait()
	close(s.stopLevels)
	s.levelsWG.Wait()

	s.logger.Printf("capture: stopped")
	return err
}

func (s *Source) isStopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}

func (s *Source) capture(stream Stream, startedAt time.Time) {
	defer s.captureWG.Done()
	defer close(s.chunks)

	rate := s.dev.SampleRate()
	perChunk := int(int64(rate) * int64(s.cfg.ChunkInterval) / int64(time.Second))
	if perChunk <= 0 {
		perChunk = 1
	}

	frame := make([]int16, s.cfg.FrameSize)
	pending := make([]int16, 0, perChunk)
	emitted := 0 // samples already handed out, for chunk timestamps
	seq := 0

	emit := func(samples []int16) {
		audio, err := encodeWAV(samples, rate)
		if err != nil {
			s.logger.Printf("capture: dropping chunk %d: %v", seq, err)
			return
		}
		offset := time.Duration(int64(emitted) * int64(time.Second) / int64(rate))
		s.chunks <- Chunk{
			ID:        uuid.NewString(),
			Seq:       seq,
			StartedAt: startedAt.Add(offset),
			Duration:  time.Duration(int64(len(samples)) * int64(time.Second) / int64(rate)),
			Audio:     audio,
			Level:     rms(samples),
		}
		seq++
		emitted += len(samples)
	}

	for {
		n, err := stream.Read(frame)
		if n > 0 {
			s.winMu.Lock()
			s.win.push(frame[:n])
			s.winMu.Unlock()

			pending = append(pending, frame[:n]...)
			for len(pending) >= perChunk {
				emit(append([]int16(nil), pending[:perChunk]...))
				pending = append(pending[:0], pending[perChunk:]...)
			}
		}
		if err != nil {
			if !s.isStopping() {
				s.logger.Printf("capture: read: %v", err)
			}
			break
		}
	}

	if len(pending) > 0 {
		emit(pending)
	}
}

func (s *Source) sampleLevels() {
	defer s.levelsWG.Done()
	defer close(s.levels)

	ticker := time.NewTicker(s.cfg.LevelInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopLevels:
			return
		case <-ticker.C:
			s.winMu.Lock()
			level := rms(s.win.snapshot())
			s.winMu.Unlock()

			select {
			case s.levels <- level:
			default:
			}
		}
	}
}
