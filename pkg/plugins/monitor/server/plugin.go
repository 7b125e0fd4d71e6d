package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/asticode/go-astikit"
	"github.com/asticode/go-astiplayer/pkg/playback"
	"github.com/asticode/go-astiplayer/pkg/player"
	"github.com/asticode/go-astiplayer/pkg/plugins/monitor/monitorer"
)

var _ player.Plugin = (*Plugin)(nil)

// Plugin serves the player's monitoring data: a catch up API, a playback API, pushed
// deltas and a web page consuming them.
type Plugin struct {
	ctx context.Context
	m   *monitorer.Monitorer
	o   PluginOptions
	p   Pusher
	pl  *player.Player
	s   *http.Server
}

type PluginOptions struct {
	// When empty, no http server is started and handlers must be mounted manually
	Addr        string
	API         PluginAPIOptions
	DeltaPeriod time.Duration
	Push        PluginPushOptions
}

type PluginAPIOptions struct {
	Headers     map[string]string
	QueryParams map[string]string
	URL         string
}

type PluginPushOptions struct {
	// Defaults to a websocket pusher
	Pusher      Pusher
	QueryParams map[string]string
	URL         string
}

func New(o PluginOptions) *Plugin {
	return &Plugin{o: o}
}

func (p *Plugin) Metadata() player.Metadata {
	return player.Metadata{Name: "monitor.server"}
}

func (p *Plugin) Init(ctx context.Context, c *astikit.Closer, pl *player.Player) error {
	// Store player
	p.ctx = ctx
	p.pl = pl

	// Create monitorer
	p.m = monitorer.New(monitorer.MonitorerOptions{
		OnDelta: p.onDelta,
		Period:  p.o.DeltaPeriod,
		Player:  pl,
	})
	c.Add(p.m.Close)

	// Get pusher
	p.p = p.o.Push.Pusher
	if p.p == nil {
		p.p = p.newWebsocketPusher()
	}

	// Make sure pusher is closed
	if v, ok := p.p.(io.Closer); ok {
		c.AddWithError(v.Close)
	}

	// Create http server, which needs the pusher
	if p.o.Addr != "" {
		p.s = &http.Server{
			Addr:    p.o.Addr,
			Handler: p.handler(),
		}
		c.AddWithError(p.s.Close)
	}
	return nil
}

func (p *Plugin) Start(ctx context.Context, tc astikit.TaskCreator) {
	// Serve
	if p.s != nil {
		tc().Do(func() { p.serve(ctx) })
	}

	// Monitor
	tc().Do(func() { p.m.Start(ctx) })
}

func (p *Plugin) serve(ctx context.Context) {
	// Log
	p.pl.Logger().InfoCf(p.ctx, "server: serving on %s", p.o.Addr)

	// Listen and serve
	done := make(chan error, 1)
	go func() { done <- p.s.ListenAndServe() }()

	// Wait
	select {
	case <-ctx.Done():
	case err := <-done:
		if err != nil && err != http.ErrServerClosed {
			p.pl.Logger().WarnC(p.ctx, fmt.Errorf("server: serving on %s failed: %w", p.o.Addr, err))
		}
	}

	// Shutdown
	p.pl.Logger().InfoCf(p.ctx, "server: shutting down server on %s", p.o.Addr)
	if err := p.s.Shutdown(context.Background()); err != nil {
		p.pl.Logger().WarnC(p.ctx, fmt.Errorf("server: shutting down server on %s failed: %w", p.o.Addr, err))
	}
}

func (p *Plugin) handler() http.Handler {
	// Create mux
	m := http.NewServeMux()

	// Web
	m.Handle("/", p.ServeWeb())

	// API
	if strings.HasPrefix(p.o.API.URL, "/") {
		m.Handle(p.o.API.URL+"/catch-up", p.ServeAPICatchUp())
		m.Handle(p.o.API.URL+"/playback", p.ServeAPIPlayback())
	}

	// Push
	if strings.HasPrefix(p.o.Push.URL, "/") {
		m.Handle(p.o.Push.URL, p.ServePush())
	}
	return m
}

func (p *Plugin) writeJSON(w http.ResponseWriter, name string, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		p.pl.Logger().WarnC(p.ctx, fmt.Errorf("server: writing %s body failed: %w", name, err))
	}
}

type apiCatchUp struct {
	monitorer.Delta
	Player apiPlayer `json:"player"`
}

type apiPlayer struct {
	Description string `json:"description,omitempty"`
	ID          uint64 `json:"id"`
	Name        string `json:"name,omitempty"`
}

func (p *Plugin) catchUp() apiCatchUp {
	return apiCatchUp{
		Delta: p.m.CatchUp(),
		Player: apiPlayer{
			Description: p.pl.Metadata().Description,
			ID:          p.pl.ID(),
			Name:        p.pl.Metadata().Name,
		},
	}
}

func (p *Plugin) ServeAPICatchUp() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.writeJSON(w, "api catch up", p.catchUp())
	})
}

type apiPlayback struct {
	Path    string                          `json:"path,omitempty"`
	Player  player.PlayerCumulativeStats    `json:"player"`
	Playing bool                            `json:"playing"`
	Session *player.SessionInfo             `json:"session,omitempty"`
	Stats   playback.SessionCumulativeStats `json:"stats"`
}

func (p *Plugin) ServeAPIPlayback() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Create body
		var b apiPlayback
		b.Path, b.Playing = p.pl.Playing()
		b.Player = p.pl.CumulativeStats()
		if i, ok := p.pl.SessionInfo(); ok {
			b.Session = &i
		}
		b.Stats = p.pl.SessionStats()

		// Write
		p.writeJSON(w, "api playback", b)
	})
}

func (p *Plugin) ServePush() http.Handler {
	if h, ok := p.p.(http.Handler); ok {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
}

type webConfig struct {
	API  webAPIConfig  `json:"api"`
	Push webPushConfig `json:"push"`
}

type webAPIConfig struct {
	Headers     map[string]string `json:"headers,omitempty"`
	QueryParams map[string]string `json:"query_params,omitempty"`
	URL         string            `json:"url,omitempty"`
}

type webPushConfig struct {
	QueryParams map[string]string `json:"query_params,omitempty"`
	URL         string            `json:"url,omitempty"`
}

func (p *Plugin) ServeWeb() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Config
		if r.URL.Path == "/config.json" {
			p.writeJSON(w, "config", webConfig{
				API: webAPIConfig{
					Headers:     p.o.API.Headers,
					QueryParams: p.o.API.QueryParams,
					URL:         p.o.API.URL,
				},
				Push: webPushConfig{
					QueryParams: p.o.Push.QueryParams,
					URL:         p.o.Push.URL,
				},
			})
			return
		}

		// Get fs
		fs := http.FS(p.webFS())

		// Pages all serve /index.html
		if path.Ext(r.URL.Path) == "" {
			// Open
			f, err := fs.Open("/index.html")
			if err != nil {
				p.pl.Logger().WarnC(p.ctx, fmt.Errorf("server: opening /index.html failed: %w", err))
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			defer f.Close()

			// Stat
			fi, err := f.Stat()
			if err != nil {
				p.pl.Logger().WarnC(p.ctx, fmt.Errorf("server: stating /index.html failed: %w", err))
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			// Serve
			http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
			return
		}

		// Default
		http.FileServer(fs).ServeHTTP(w, r)
	})
}

func (p *Plugin) onDelta(d monitorer.Delta) {
	// Marshal
	b, err := p.marshalPushEvent(pushEventNameDelta, d)
	if err != nil {
		p.pl.Logger().WarnC(p.ctx, err)
		return
	}

	// Push
	if _, err := p.p.Write(b); err != nil {
		p.pl.Logger().WarnC(p.ctx, fmt.Errorf("server: pushing failed: %w", err))
	}
}
