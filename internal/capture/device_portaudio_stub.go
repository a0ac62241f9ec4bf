//go:build !portaudio

package capture

import "errors"

// NewPortAudioDevice is only available in builds with the portaudio tag.
func NewPortAudioDevice(_ int) (Device, error) {
	return nil, errors.New("capture: built without portaudio support (build with -tags portaudio)")
}
