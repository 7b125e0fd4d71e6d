// Package oto provides audio devices backed by oto. Oto allows a single context per
// process: the first opened device decides the format every later device obtains.
package oto

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/asticode/go-astiplayer/pkg/playback"
	"github.com/ebitengine/oto/v3"
)

var _ playback.AudioDeviceOpener = (*Opener)(nil)

type Opener struct {
	c playerContext
	f playback.AudioFormat // Context format
	l astikit.CompleteLogger
	m sync.Mutex // Locks c and f
	o OpenerOptions
}

type OpenerOptions struct {
	// Defaults to oto's default
	BufferDuration time.Duration
	Logger         astikit.StdLogger
}

func NewOpener(o OpenerOptions) *Opener {
	return &Opener{
		l: astikit.AdaptStdLogger(o.Logger),
		o: o,
	}
}

func (o *Opener) OpenAudioDevice(desired playback.AudioFormat, cb playback.AudioDeviceCallback) (playback.AudioDevice, playback.AudioFormat, error) {
	// Lock
	o.m.Lock()
	defer o.m.Unlock()

	// Create context
	if o.c == nil {
		// Create format
		f := playback.AudioFormat{
			Channels:     desired.Channels,
			SampleFormat: astiav.SampleFormatS16,
			SampleRate:   desired.SampleRate,
		}

		// Create context
		c, err := newPlayerContext(&oto.NewContextOptions{
			BufferSize:   o.o.BufferDuration,
			ChannelCount: f.Channels,
			Format:       oto.FormatSignedInt16LE,
			SampleRate:   f.SampleRate,
		})
		if err != nil {
			return nil, playback.AudioFormat{}, fmt.Errorf("oto: creating context failed: %w", err)
		}

		// Store
		o.c = c
		o.f = f
		o.l.Debugf("oto: created context with format %s", f)
	}

	// Create obtained format
	obtained := o.f
	obtained.Samples = desired.Samples
	if obtained.Channels != desired.Channels || obtained.SampleRate != desired.SampleRate {
		o.l.Debugf("oto: desired %s differs from context format %s", desired, o.f)
	}

	// Create device
	d := &device{r: newCallbackReader(cb)}
	d.p = o.c.newPlayer(d.r)
	return d, obtained, nil
}

// callbackReader fills every read with the callback until it's closed
type callbackReader struct {
	cb     playback.AudioDeviceCallback
	closed bool
	m      sync.Mutex // Locks closed
}

func newCallbackReader(cb playback.AudioDeviceCallback) *callbackReader {
	return &callbackReader{cb: cb}
}

func (r *callbackReader) Read(b []byte) (int, error) {
	// Lock
	r.m.Lock()
	defer r.m.Unlock()

	// Closed
	if r.closed {
		return 0, io.EOF
	}

	// Callback
	r.cb(b)
	return len(b), nil
}

func (r *callbackReader) close() {
	r.m.Lock()
	defer r.m.Unlock()
	r.closed = true
}

var _ playback.AudioDevice = (*device)(nil)

type device struct {
	closed bool
	m      sync.Mutex // Locks closed and p
	p      player
	r      *callbackReader
}

func (d *device) Pause() error {
	// Lock
	d.m.Lock()
	defer d.m.Unlock()

	// Pause
	if !d.closed {
		d.p.Pause()
	}
	return nil
}

func (d *device) Resume() error {
	// Lock
	d.m.Lock()
	defer d.m.Unlock()

	// Device is closed
	if d.closed {
		return errors.New("oto: device is closed")
	}

	// Play
	d.p.Play()
	return nil
}

func (d *device) Close() error {
	// Lock
	d.m.Lock()
	defer d.m.Unlock()

	// Already closed
	if d.closed {
		return nil
	}
	d.closed = true

	// Close reader first so that no callback happens past this point
	d.r.close()

	// Close player
	if err := d.p.Close(); err != nil {
		return fmt.Errorf("oto: closing player failed: %w", err)
	}
	return nil
}
