package playback

import (
	"context"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
)

var classers = newClasserPool()

type classerPool struct {
	m sync.Mutex
	p map[astiav.Classer]*Session
}

func newClasserPool() *classerPool {
	return &classerPool{p: make(map[astiav.Classer]*Session)}
}

func (p *classerPool) set(c astiav.Classer, s *Session) {
	p.m.Lock()
	defer p.m.Unlock()
	p.p[c] = s
}

func (p *classerPool) del(c astiav.Classer) {
	p.m.Lock()
	defer p.m.Unlock()
	delete(p.p, c)
}

func (p *classerPool) get(c astiav.Classer) (*Session, bool) {
	p.m.Lock()
	defer p.m.Unlock()
	s, ok := p.p[c]
	return s, ok
}

// ClasserContext returns the context of the session owning the classer, if any.
// It's used to attach session fields to libav logs.
func ClasserContext(c astiav.Classer) (context.Context, bool) {
	s, ok := classers.get(c)
	if !ok {
		return nil, false
	}
	return s.Context(), true
}

func (s *Session) registerClasser(c *astikit.Closer, cl astiav.Classer) {
	classers.set(cl, s)
	c.Add(func() { classers.del(cl) })
}
