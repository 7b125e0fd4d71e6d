// Package miniaudio provides audio devices backed by miniaudio. Devices pull their
// samples from the session's callback on miniaudio's own thread.
package miniaudio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/asticode/go-astiplayer/pkg/playback"
	"github.com/gen2brain/malgo"
)

const bytesPerSample = 2

var _ playback.AudioDeviceOpener = (*Opener)(nil)

// Opener opens playback devices on a shared miniaudio context
type Opener struct {
	c  deviceContext
	ds map[*device]bool
	l  astikit.CompleteLogger
	m  sync.Mutex // Locks c and ds
}

type OpenerOptions struct {
	Logger astikit.StdLogger
}

func NewOpener(o OpenerOptions) (*Opener, error) {
	// Create opener
	op := &Opener{
		ds: make(map[*device]bool),
		l:  astikit.AdaptStdLogger(o.Logger),
	}

	// Create context
	var err error
	if op.c, err = newDeviceContext(op.l); err != nil {
		return nil, fmt.Errorf("miniaudio: creating context failed: %w", err)
	}
	return op, nil
}

// Close closes every device still open and releases the context
func (o *Opener) Close() error {
	// Lock
	o.m.Lock()
	defer o.m.Unlock()

	// Already closed
	if o.c == nil {
		return nil
	}

	// Close devices
	for d := range o.ds {
		d.uninit()
	}
	o.ds = make(map[*device]bool)

	// Close context
	err := o.c.close()
	o.c = nil
	if err != nil {
		return fmt.Errorf("miniaudio: closing context failed: %w", err)
	}
	return nil
}

func (o *Opener) OpenAudioDevice(desired playback.AudioFormat, cb playback.AudioDeviceCallback) (playback.AudioDevice, playback.AudioFormat, error) {
	// Lock
	o.m.Lock()
	defer o.m.Unlock()

	// Opener is closed
	if o.c == nil {
		return nil, playback.AudioFormat{}, errors.New("miniaudio: opener is closed")
	}

	// Only S16 is supported
	if desired.SampleFormat != astiav.SampleFormatS16 {
		o.l.Debugf("miniaudio: desired sample format %s is not supported, using %s", desired.SampleFormat, astiav.SampleFormatS16)
	}

	// Create config
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Channels = uint32(desired.Channels)
	cfg.Playback.Format = malgo.FormatS16
	cfg.SampleRate = uint32(desired.SampleRate)
	if desired.Samples > 0 {
		cfg.PeriodSizeInFrames = uint32(desired.Samples)
	}
	cfg.Alsa.NoMMap = 1

	// Create device
	d := &device{
		cb: cb,
		o:  o,
	}

	// Init device
	var err error
	if d.d, err = o.c.initDevice(cfg, malgo.DeviceCallbacks{Data: d.onData}); err != nil {
		return nil, playback.AudioFormat{}, fmt.Errorf("miniaudio: initializing device failed: %w", err)
	}

	// Store device
	o.ds[d] = true

	// Create obtained format
	obtained := playback.AudioFormat{
		Channels:     int(d.d.PlaybackChannels()),
		SampleFormat: astiav.SampleFormatS16,
		SampleRate:   int(d.d.SampleRate()),
		Samples:      desired.Samples,
	}
	d.channels = obtained.Channels

	// Log
	o.l.Debugf("miniaudio: opened device, desired %s, obtained %s", desired, obtained)
	return d, obtained, nil
}

var _ playback.AudioDevice = (*device)(nil)

// device starts paused
type device struct {
	cb       playback.AudioDeviceCallback
	channels int
	d        malgoDevice
	m        sync.Mutex // Locks d and started
	o        *Opener
	started  bool
}

func (d *device) onData(out, in []byte, frameCount uint32) {
	// Get size
	n := int(frameCount) * d.channels * bytesPerSample
	if n > len(out) {
		n = len(out)
	}

	// Callback
	d.cb(out[:n])
}

func (d *device) Pause() error {
	// Lock
	d.m.Lock()
	defer d.m.Unlock()

	// Nothing to do
	if d.d == nil || !d.started {
		return nil
	}

	// Stop
	if err := d.d.Stop(); err != nil {
		return fmt.Errorf("miniaudio: stopping device failed: %w", err)
	}
	d.started = false
	return nil
}

func (d *device) Resume() error {
	// Lock
	d.m.Lock()
	defer d.m.Unlock()

	// Device is closed
	if d.d == nil {
		return errors.New("miniaudio: device is closed")
	}

	// Nothing to do
	if d.started {
		return nil
	}

	// Start
	if err := d.d.Start(); err != nil {
		return fmt.Errorf("miniaudio: starting device failed: %w", err)
	}
	d.started = true
	return nil
}

func (d *device) Close() error {
	// Remove from opener
	d.o.m.Lock()
	delete(d.o.ds, d)
	d.o.m.Unlock()

	// Uninit
	d.uninit()
	return nil
}

func (d *device) uninit() {
	// Lock
	d.m.Lock()
	defer d.m.Unlock()

	// Already closed
	if d.d == nil {
		return
	}

	// Uninit stops the device as well
	d.d.Uninit()
	d.d = nil
	d.started = false
}
