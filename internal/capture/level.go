package capture

import "math"

// rms returns the root mean square of samples normalised to 0..1.
func rms(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// window keeps the most recent samples for level sampling.
type window struct {
	buf  []int16
	next int
	full bool
}

func newWindow(size int) *window {
	return &window{buf: make([]int16, size)}
}

func (w *window) push(samples []int16) {
	for _, s := range samples {
		w.buf[w.next] = s
		w.next++
		if w.next == len(w.buf) {
			w.next = 0
			w.full = true
		}
	}
}

func (w *window) snapshot() []int16 {
	if w.full {
		out := make([]int16, len(w.buf))
		copy(out, w.buf[w.next:])
		copy(out[len(w.buf)-w.next:], w.buf[:w.next])
		return out
	}
	return append([]int16(nil), w.buf[:w.next]...)
}
