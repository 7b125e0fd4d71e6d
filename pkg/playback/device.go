package playback

import (
	"fmt"
	"sync/atomic"

	"github.com/asticode/go-astiav"
)

type AudioFormat struct {
	Channels     int                 `json:"channels"`
	SampleFormat astiav.SampleFormat `json:"-"`
	SampleRate   int                 `json:"sample_rate"`
	// Device buffer size in sample frames
	Samples int `json:"samples,omitempty"`
}

func (f AudioFormat) String() string {
	return fmt.Sprintf("%dHz %dch %s", f.SampleRate, f.Channels, f.SampleFormat)
}

func (f AudioFormat) matchesFrame(fm *astiav.Frame) bool {
	return fm.SampleFormat() == f.SampleFormat &&
		fm.ChannelLayout().Channels() == f.Channels &&
		fm.SampleRate() == f.SampleRate
}

// AudioDeviceCallback must fill b entirely. It's called from the device's own goroutine
// or thread.
type AudioDeviceCallback func(b []byte)

type AudioDevice interface {
	Close() error
	Pause() error
	Resume() error
}

// AudioDeviceOpener opens a paused device. The obtained format may differ from the
// desired one.
type AudioDeviceOpener interface {
	OpenAudioDevice(desired AudioFormat, cb AudioDeviceCallback) (d AudioDevice, obtained AudioFormat, err error)
}

type AudioDeviceOpenerFunc func(desired AudioFormat, cb AudioDeviceCallback) (AudioDevice, AudioFormat, error)

func (fn AudioDeviceOpenerFunc) OpenAudioDevice(desired AudioFormat, cb AudioDeviceCallback) (AudioDevice, AudioFormat, error) {
	return fn(desired, cb)
}

// AudioDeviceCallback fills b with decoded audio, decoding more whenever the audio
// buffer is exhausted. What can't be filled stays silent.
func (s *Session) AudioDeviceCallback(b []byte) {
	// Silence by default
	clear(b)

	// Lock
	s.ma.Lock()
	defer s.ma.Unlock()

	// Audio path is not initialized
	if s.a == nil || s.a.b == nil {
		return
	}

	// Audio path has failed
	if s.a.err != nil {
		atomic.AddUint64(&s.cs.underruns, 1)
		return
	}

	// Loop
	for written := 0; written < len(b); {
		// Audio buffer is exhausted
		if s.a.b.exhausted() {
			// Reset
			s.a.b.reset()

			// Decode
			ok, err := s.decodeNextAudioPacket()
			if err != nil {
				s.l.WarnC(s.ctx, fmt.Errorf("playback: decoding next audio packet failed: %w", err))
			}

			// Underrun
			if !ok || s.a.b.exhausted() {
				atomic.AddUint64(&s.cs.underruns, 1)
				return
			}
		}

		// Copy
		written += s.a.b.read(b[written:])
	}
}
