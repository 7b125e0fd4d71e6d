package miniaudio

import (
	"github.com/asticode/go-astikit"
	"github.com/gen2brain/malgo"
)

type deviceContext interface {
	close() error
	initDevice(cfg malgo.DeviceConfig, cbs malgo.DeviceCallbacks) (malgoDevice, error)
}

type malgoDevice interface {
	PlaybackChannels() uint32
	SampleRate() uint32
	Start() error
	Stop() error
	Uninit()
}

var _ malgoDevice = (*malgo.Device)(nil)

var newDeviceContext = func(l astikit.CompleteLogger) (deviceContext, error) {
	c, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		l.Debugf("miniaudio: %s", msg)
	})
	if err != nil {
		return nil, err
	}
	return &allocatedContext{c: c}, nil
}

type allocatedContext struct {
	c *malgo.AllocatedContext
}

func (c *allocatedContext) close() error {
	defer c.c.Free()
	return c.c.Uninit()
}

func (c *allocatedContext) initDevice(cfg malgo.DeviceConfig, cbs malgo.DeviceCallbacks) (malgoDevice, error) {
	return malgo.InitDevice(c.c.Context, cfg, cbs)
}
