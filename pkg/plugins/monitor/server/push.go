package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/asticode/go-astiplayer/pkg/player"
	"github.com/asticode/go-astiws"
)

// Pusher receives every marshaled push event. When it's also an http.Handler, it's mounted
// on the push URL, and when it's an io.Closer, it's closed with the player.
type Pusher interface {
	io.Writer
}

type pushEventName string

const (
	pushEventNameCatchUp      pushEventName = "catch_up"
	pushEventNameDelta        pushEventName = "delta"
	pushEventNamePing         pushEventName = "ping"
	pushEventNameStopPlayback pushEventName = "stop_playback"
)

type pushEvent struct {
	Name    pushEventName `json:"name"`
	Payload interface{}   `json:"payload,omitempty"`
	// Session being played when the event was created
	Playing *pushPlaying `json:"playing,omitempty"`
}

type pushPlaying struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

func newPushEvent(n pushEventName, payload interface{}, i player.SessionInfo, playing bool) pushEvent {
	e := pushEvent{
		Name:    n,
		Payload: payload,
	}
	if playing {
		e.Playing = &pushPlaying{
			ID:   i.ID,
			Path: i.Path,
		}
	}
	return e
}

func (p *Plugin) marshalPushEvent(n pushEventName, payload interface{}) ([]byte, error) {
	i, playing := p.pl.SessionInfo()
	b, err := json.Marshal(newPushEvent(n, payload, i, playing))
	if err != nil {
		return nil, fmt.Errorf("server: marshaling %s push event failed: %w", n, err)
	}
	return b, nil
}

type pushClient interface {
	ExtendConnection() error
}

var _ pushClient = (*astiws.Client)(nil)

// websocketPusher sends a catch up to every new client, then broadcasts push events.
// Clients keep their connection alive with pings and may ask for playback to stop.
type websocketPusher struct {
	p            *Plugin
	s            *astiws.Server
	stopPlayback func()
}

func (p *Plugin) newWebsocketPusher() *websocketPusher {
	w := &websocketPusher{
		p:            p,
		stopPlayback: p.pl.StopPlayback,
	}
	w.s = astiws.NewServer(astiws.ServerOptions{
		ClientAdapter:  w.adaptClient,
		Logger:         p.pl.Logger(),
		MaxMessageSize: 1e6,
	})
	return w
}

func (w *websocketPusher) Close() error {
	return w.s.Close()
}

func (w *websocketPusher) adaptClient(c *astiws.Client) error {
	// Attach plugin context
	*c = *c.WithContext(w.p.ctx)

	// Handle messages
	c.SetMessageHandler(func(m []byte) error { return w.handleMessage(c, m) })

	// Catch up
	b, err := w.p.marshalPushEvent(pushEventNameCatchUp, w.p.catchUp())
	if err != nil {
		return err
	}
	if err = c.WriteText(b); err != nil {
		return fmt.Errorf("server: writing catch up failed: %w", err)
	}
	return nil
}

func (w *websocketPusher) handleMessage(c pushClient, m []byte) error {
	// Unmarshal
	var e pushEvent
	if err := json.Unmarshal(m, &e); err != nil {
		return fmt.Errorf("server: unmarshaling message failed: %w", err)
	}

	// Switch on name
	switch e.Name {
	case pushEventNamePing:
		if err := c.ExtendConnection(); err != nil {
			return fmt.Errorf("server: extending connection failed: %w", err)
		}
	case pushEventNameStopPlayback:
		w.stopPlayback()
	}
	return nil
}

// Write sends b to every connected client, a failing client doesn't prevent others from
// receiving it
func (w *websocketPusher) Write(b []byte) (int, error) {
	var errs []error
	for _, c := range w.s.Clients() {
		if err := c.WriteText(b); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return 0, fmt.Errorf("server: writing to %d websocket client(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return len(b), nil
}

func (w *websocketPusher) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	w.s.ServeHTTP(rw, r)
}
