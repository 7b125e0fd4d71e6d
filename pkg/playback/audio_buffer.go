package playback

import (
	"fmt"
	"sync"
)

type AudioBufferState struct {
	AllocatedCapacity int `json:"allocated_capacity"`
	Position          int `json:"position"`
	ValidSize         int `json:"valid_size"`
}

// audioBuffer is written by the audio decode path and read by the device callback.
// 0 <= position <= validSize <= len(b) holds at all times.
type audioBuffer struct {
	b         []byte
	m         sync.Mutex // Locks b, position and validSize
	position  int
	validSize int
}

func newAudioBuffer(capacity int) *audioBuffer {
	return &audioBuffer{b: make([]byte, capacity)}
}

func (b *audioBuffer) state() AudioBufferState {
	b.m.Lock()
	defer b.m.Unlock()
	return AudioBufferState{
		AllocatedCapacity: len(b.b),
		Position:          b.position,
		ValidSize:         b.validSize,
	}
}

func (b *audioBuffer) exhausted() bool {
	b.m.Lock()
	defer b.m.Unlock()
	return b.position >= b.validSize
}

func (b *audioBuffer) reset() {
	b.m.Lock()
	defer b.m.Unlock()
	b.position = 0
	b.validSize = 0
}

// Grows the buffer only if required exceeds the allocated capacity. Buffered
// bytes are dropped when it grows.
func (b *audioBuffer) grow(required int) (grown bool) {
	// Lock
	b.m.Lock()
	defer b.m.Unlock()

	// Nothing to do
	if required <= len(b.b) {
		return
	}

	// Reallocate
	b.b = make([]byte, required)
	b.position = 0
	b.validSize = 0
	return true
}

// Replaces buffered bytes with src, which must fit in the allocated capacity
func (b *audioBuffer) write(src []byte) error {
	return b.fill(func(dst []byte) (int, error) {
		if len(src) > len(dst) {
			return 0, fmt.Errorf("playback: %d bytes don't fit in a %d bytes buffer", len(src), len(dst))
		}
		return copy(dst, src), nil
	})
}

// Replaces buffered bytes with whatever fn writes in the whole allocated capacity
func (b *audioBuffer) fill(fn func(dst []byte) (int, error)) error {
	// Lock
	b.m.Lock()
	defer b.m.Unlock()

	// Fill
	n, err := fn(b.b)
	if err != nil {
		b.position = 0
		b.validSize = 0
		return err
	}

	// Clamp
	if n < 0 {
		n = 0
	} else if n > len(b.b) {
		n = len(b.b)
	}

	// Update cursors
	b.position = 0
	b.validSize = n
	return nil
}

// Copies min(len(dst), remaining bytes) and advances the position
func (b *audioBuffer) read(dst []byte) (n int) {
	// Lock
	b.m.Lock()
	defer b.m.Unlock()

	// Copy
	n = copy(dst, b.b[b.position:b.validSize])
	b.position += n
	return
}

func (b *audioBuffer) free() {
	b.m.Lock()
	defer b.m.Unlock()
	b.b = nil
	b.position = 0
	b.validSize = 0
}
