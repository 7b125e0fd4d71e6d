package oto

import (
	"io"

	"github.com/ebitengine/oto/v3"
)

type playerContext interface {
	newPlayer(r io.Reader) player
}

type player interface {
	Close() error
	Pause()
	Play()
}

var _ player = (*oto.Player)(nil)

var newPlayerContext = func(o *oto.NewContextOptions) (playerContext, error) {
	// Create context
	c, ready, err := oto.NewContext(o)
	if err != nil {
		return nil, err
	}

	// Wait for the device to be ready
	<-ready
	return &otoContext{c: c}, nil
}

type otoContext struct {
	c *oto.Context
}

func (c *otoContext) newPlayer(r io.Reader) player {
	return c.c.NewPlayer(r)
}
