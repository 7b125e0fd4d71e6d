// Package replay records the player's monitoring deltas in a file so that a session can
// be analyzed once the player is gone. The first line describes the player, every
// following line is a delta.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/asticode/go-astikit"
	"github.com/asticode/go-astiplayer/pkg/player"
	"github.com/asticode/go-astiplayer/pkg/plugins/monitor/monitorer"
)

var _ player.Plugin = (*Plugin)(nil)

type Plugin struct {
	ctx context.Context
	m   *monitorer.Monitorer
	mw  sync.Mutex // Locks w
	o   PluginOptions
	pl  *player.Player
	w   io.Writer
}

type PluginOptions struct {
	DeltaPeriod time.Duration
	Path        string
}

func New(o PluginOptions) *Plugin {
	return &Plugin{o: o}
}

type Header struct {
	Player HeaderPlayer `json:"player"`
}

type HeaderPlayer struct {
	Description string `json:"description,omitempty"`
	ID          uint64 `json:"id"`
	Name        string `json:"name,omitempty"`
}

func (p *Plugin) Metadata() player.Metadata {
	return player.Metadata{Name: "monitor.replay"}
}

func (p *Plugin) Init(ctx context.Context, c *astikit.Closer, pl *player.Player) error {
	// Create file
	f, err := os.Create(p.o.Path)
	if err != nil {
		return fmt.Errorf("replay: creating %s failed: %w", p.o.Path, err)
	}

	// Closers are executed in reverse order, the file must be closed after the monitorer
	c.AddWithError(f.Close)

	// Update plugin
	p.ctx = ctx
	p.pl = pl
	p.w = f

	// Create monitorer
	p.m = monitorer.New(monitorer.MonitorerOptions{
		OnDelta: p.onDelta,
		Period:  p.o.DeltaPeriod,
		Player:  pl,
	})
	c.Add(p.m.Close)

	// Write header
	p.write("header", Header{Player: HeaderPlayer{
		Description: pl.Metadata().Description,
		ID:          pl.ID(),
		Name:        pl.Metadata().Name,
	}})
	return nil
}

func (p *Plugin) Start(ctx context.Context, tc astikit.TaskCreator) {
	tc().Do(func() { p.m.Start(ctx) })
}

func (p *Plugin) onDelta(d monitorer.Delta) {
	p.write("delta", d)
}

func (p *Plugin) write(name string, v interface{}) {
	// Marshal
	b, err := json.Marshal(v)
	if err != nil {
		p.pl.Logger().WarnC(p.ctx, fmt.Errorf("replay: marshaling %s failed: %w", name, err))
		return
	}

	// Lock
	p.mw.Lock()
	defer p.mw.Unlock()

	// Write
	if _, err = p.w.Write(append(b, '\n')); err != nil {
		p.pl.Logger().WarnC(p.ctx, fmt.Errorf("replay: writing %s failed: %w", name, err))
	}
}

type Recording struct {
	Deltas []monitorer.Delta
	Header Header
}

// Read parses a recording written by the plugin
func Read(r io.Reader) (rc Recording, err error) {
	// Create scanner
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	// Header
	if !s.Scan() {
		if err = s.Err(); err == nil {
			err = errors.New("replay: header is missing")
		}
		return
	}
	if err = json.Unmarshal(s.Bytes(), &rc.Header); err != nil {
		err = fmt.Errorf("replay: unmarshaling header failed: %w", err)
		return
	}

	// Deltas
	for line := 2; s.Scan(); line++ {
		var d monitorer.Delta
		if err = json.Unmarshal(s.Bytes(), &d); err != nil {
			err = fmt.Errorf("replay: unmarshaling delta on line %d failed: %w", line, err)
			return
		}
		rc.Deltas = append(rc.Deltas, d)
	}
	if err = s.Err(); err != nil {
		err = fmt.Errorf("replay: scanning failed: %w", err)
		return
	}
	return
}
