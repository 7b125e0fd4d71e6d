package player

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asticode/go-astikit"
	"github.com/asticode/go-astiplayer/pkg/playback"
)

const (
	EventNamePlaybackStarted astikit.EventName = "player.playback.started"
	EventNamePlaybackStopped astikit.EventName = "player.playback.stopped"
	EventNamePlayerClosed    astikit.EventName = "player.closed"
	EventNamePlayerDone      astikit.EventName = "player.done"
	EventNamePlayerRunning   astikit.EventName = "player.running"
	EventNamePlayerStarting  astikit.EventName = "player.starting"
	EventNamePlayerStopping  astikit.EventName = "player.stopping"
)

// Used when the video stream doesn't advertise its frame rate
const defaultFramePeriod = 40 * time.Millisecond

var playerCount uint64

// Player is a playback slot: it plays at most one file at a time, presenting video frames
// at the stream frame rate, and goes back to idle when the file ends or fails.
type Player struct {
	cancel context.CancelFunc
	cs     *playerCumulativeStats
	ctx    context.Context
	done   chan struct{}
	dss    []astikit.DeltaStat
	e      *astikit.EventManager
	id     uint64
	l      astikit.CompleteLogger
	mp     sync.Mutex // Locks playback transitions
	mr     sync.Mutex // Locks cancel, done, path and tc
	o      PlayerOptions
	path   string
	ps     []Plugin
	s      session
	t      *task
	tc     astikit.TaskCreator
}

type PlayerOptions struct {
	ContextAdapters PlayerContextAdaptersOptions
	DeltaStats      []astikit.DeltaStat
	Logger          astikit.StdLogger
	Metadata        Metadata
	Open            PlayerOpenOptions
	Plugins         []Plugin
	Session         playback.SessionOptions
	// When nil, frames are decoded and converted but not presented
	Surface playback.Surface
	Worker  *astikit.Worker
}

type PlayerContextAdaptersOptions struct {
	Player  func(ctx context.Context, p *Player) context.Context
	Plugin  func(ctx context.Context, p *Player, pl Plugin) context.Context
	Session func(ctx context.Context, p *Player, s *playback.Session) context.Context
}

type PlayerOpenOptions struct {
	AudioDecoder playback.DecoderOptions
	// When nil, files are played without audio
	Device       playback.AudioDeviceOpener
	Dictionary   playback.DictionaryOptions
	VideoDecoder playback.DecoderOptions
}

type SessionInfo struct {
	Audio       *playback.Stream    `json:"audio,omitempty"`
	AudioOutput *SessionAudioOutput `json:"audio_output,omitempty"`
	ID          string              `json:"id"`
	Path        string              `json:"path"`
	Video       *playback.Stream    `json:"video,omitempty"`
}

// SessionAudioOutput is the state of the audio path at the time it was retrieved.
// Enabled is false once the audio path has failed.
type SessionAudioOutput struct {
	Buffer   playback.AudioBufferState `json:"buffer"`
	Desired  playback.AudioFormat      `json:"desired"`
	Enabled  bool                      `json:"enabled"`
	Obtained playback.AudioFormat      `json:"obtained"`
}

func NewPlayer(o PlayerOptions) (p *Player, err error) {
	// Create player
	p = &Player{
		cs:  &playerCumulativeStats{},
		ctx: context.Background(),
		dss: make([]astikit.DeltaStat, len(o.DeltaStats)),
		e:   astikit.NewEventManager(),
		id:  atomic.AddUint64(&playerCount, 1),
		l:   astikit.AdaptStdLogger(o.Logger),
		o:   o,
		ps:  make([]Plugin, len(o.Plugins)),
	}

	// Adapt context
	if p.o.ContextAdapters.Player != nil {
		p.ctx = p.o.ContextAdapters.Player(p.ctx, p)
	}

	// Copy
	copy(p.dss, o.DeltaStats)
	copy(p.ps, o.Plugins)

	// Create session
	so := o.Session
	if so.Logger == nil {
		so.Logger = o.Logger
	}
	if ca := p.o.ContextAdapters.Session; ca != nil {
		so.ContextAdapter = func(ctx context.Context, s *playback.Session) context.Context { return ca(ctx, p, s) }
	}
	p.s = newSession(so)

	// Forward session events, opened and closed payloads are replaced with a SessionInfo
	p.s.On(playback.EventNameSessionClosed, func(payload interface{}) (delete bool) {
		path, _ := payload.(string)
		p.Emit(playback.EventNameSessionClosed, SessionInfo{
			ID:   p.s.ID(),
			Path: path,
		})
		return
	})
	p.s.On(playback.EventNameSessionEnded, func(payload interface{}) (delete bool) {
		p.Emit(playback.EventNameSessionEnded, payload)
		return
	})
	p.s.On(playback.EventNameSessionFailed, func(payload interface{}) (delete bool) {
		p.Emit(playback.EventNameSessionFailed, payload)
		return
	})
	p.s.On(playback.EventNameSessionOpened, func(payload interface{}) (delete bool) {
		i, _ := p.SessionInfo()
		p.Emit(playback.EventNameSessionOpened, i)
		return
	})

	// Create task
	p.t = newTask(astikit.NewCloser(), p.onTaskStart, p.onTaskStop)

	// Make sure session is closed
	p.t.c.AddWithError(p.s.Close)

	// Listen to task
	for _, v := range []struct {
		from astikit.EventName
		msg  string
		to   astikit.EventName
	}{
		{from: eventNameTaskClosed, msg: "player: player is closed", to: EventNamePlayerClosed},
		{from: eventNameTaskDone, msg: "player: player is done", to: EventNamePlayerDone},
		{from: eventNameTaskRunning, msg: "player: player is running", to: EventNamePlayerRunning},
		{from: eventNameTaskStarting, msg: "player: player is starting", to: EventNamePlayerStarting},
		{from: eventNameTaskStopping, msg: "player: player is stopping", to: EventNamePlayerStopping},
	} {
		msg, to := v.msg, v.to
		p.t.e.On(v.from, func(payload interface{}) (delete bool) {
			// Log
			p.l.InfoC(p.ctx, msg)

			// Emit
			p.Emit(to, nil)
			return
		})
	}

	// Loop through plugins
	for idx, pl := range p.ps {
		// Create context
		ctx := context.Background()
		if p.o.ContextAdapters.Plugin != nil {
			ctx = p.o.ContextAdapters.Plugin(ctx, p, pl)
		}

		// Initialize plugin
		if err = pl.Init(ctx, p.t.c.NewChild(), p); err != nil {
			err = fmt.Errorf("player: initializing plugin #%d failed: %w", idx, err)
			return
		}
	}
	return
}

func (p *Player) ID() uint64 {
	return p.id
}

func (p *Player) String() string {
	if p.o.Metadata.Name != "" {
		return fmt.Sprintf("%s (player_%d)", p.o.Metadata.Name, p.id)
	}
	return fmt.Sprintf("player_%d", p.id)
}

func (p *Player) Metadata() Metadata {
	return p.o.Metadata
}

func (p *Player) Context() context.Context {
	return p.ctx
}

func (p *Player) Logger() astikit.CompleteLogger {
	return p.l
}

func (p *Player) Status() Status {
	return p.t.status()
}

func (p *Player) Emit(n astikit.EventName, payload interface{}) {
	p.e.Emit(n, payload)
}

func (p *Player) On(n astikit.EventName, h astikit.EventHandler) astikit.EventRemover {
	return p.e.On(n, h)
}

func (p *Player) Close() error {
	return p.t.c.Close()
}

func (p *Player) Start(ctx context.Context) error {
	if err := p.t.start(ctx, p.o.Worker.NewTask); err != nil {
		return fmt.Errorf("player: starting task failed: %w", err)
	}
	return nil
}

func (p *Player) onTaskStart(ctx context.Context, tc astikit.TaskCreator) {
	// Store task creator
	p.mr.Lock()
	p.tc = tc
	p.mr.Unlock()

	// Start plugins
	for _, pl := range p.ps {
		pl.Start(ctx, tc)
	}
}

func (p *Player) onTaskStop() {
	// Lock
	p.mp.Lock()
	defer p.mp.Unlock()

	// Stop playback
	p.stopPlaybackUnlocked()
}

func (p *Player) Stop() error {
	if err := p.t.stop(); err != nil {
		return fmt.Errorf("player: stopping task failed: %w", err)
	}
	return nil
}

// Playing returns the path of the file being played, if any
func (p *Player) Playing() (path string, ok bool) {
	p.mr.Lock()
	defer p.mr.Unlock()
	return p.path, p.done != nil
}

func (p *Player) SessionInfo() (i SessionInfo, ok bool) {
	// Session is not open
	if p.s.Status() == playback.StatusClosed {
		return
	}

	// Create info
	i = SessionInfo{
		ID:   p.s.ID(),
		Path: p.s.Path(),
	}
	if s, ok := p.s.AudioStream(); ok {
		i.Audio = &s
	}
	if desired, obtained, ok := p.s.AudioFormats(); ok {
		o := &SessionAudioOutput{
			Desired:  desired,
			Enabled:  p.s.HasAudio(),
			Obtained: obtained,
		}
		o.Buffer, _ = p.s.AudioBufferState()
		i.AudioOutput = o
	}
	if s, ok := p.s.VideoStream(); ok {
		i.Video = &s
	}
	return i, true
}

func (p *Player) SessionStats() playback.SessionCumulativeStats {
	return p.s.CumulativeStats()
}

// Play stops what's being played, opens the file and starts presenting its frames
func (p *Player) Play(path string) (err error) {
	// Lock
	p.mp.Lock()
	defer p.mp.Unlock()

	// Invalid status
	if s := p.t.status(); s != StatusRunning {
		return fmt.Errorf("player: invalid status %s", s)
	}

	// Stop previous playback
	p.stopPlaybackUnlocked()

	// Open session
	ctx := p.t.context()
	if err = p.s.Open(ctx, playback.OpenOptions{
		AudioDecoder: p.o.Open.AudioDecoder,
		Device:       p.o.Open.Device,
		Dictionary:   p.o.Open.Dictionary,
		Path:         path,
		VideoDecoder: p.o.Open.VideoDecoder,
	}); err != nil {
		atomic.AddUint64(&p.cs.failedPlays, 1)
		return fmt.Errorf("player: opening session failed: %w", err)
	}
	atomic.AddUint64(&p.cs.plays, 1)

	// Get frame period
	period := defaultFramePeriod
	if vs, ok := p.s.VideoStream(); ok && vs.FramePeriod() > 0 {
		period = vs.FramePeriod()
	}

	// Update player
	renderCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.mr.Lock()
	p.cancel = cancel
	p.done = done
	p.path = path
	tc := p.tc
	p.mr.Unlock()

	// Log
	p.l.InfoCf(p.ctx, "player: playing %s with a frame period of %s", path, period)

	// Emit
	p.Emit(EventNamePlaybackStarted, path)

	// Render
	tc().Do(func() {
		defer close(done)
		p.render(renderCtx, cancel, done, path, period)
	})
	return
}

// StopPlayback stops what's being played and closes the session. It's a no-op when idle.
func (p *Player) StopPlayback() {
	// Lock
	p.mp.Lock()
	defer p.mp.Unlock()

	// Stop
	p.stopPlaybackUnlocked()
}

// Assumes mp is locked
func (p *Player) stopPlaybackUnlocked() {
	// Detach render loop
	p.mr.Lock()
	cancel, done, path := p.cancel, p.done, p.path
	p.cancel = nil
	p.done = nil
	p.path = ""
	p.mr.Unlock()

	// Nothing is being played
	if cancel == nil {
		return
	}

	// Wait for render loop
	cancel()
	<-done

	// Go idle
	p.idle(path)
}

func (p *Player) render(ctx context.Context, cancel context.CancelFunc, done chan struct{}, path string, period time.Duration) {
	// Tick
	var ended bool
	astikit.Tick(ctx, period, func(_ time.Time) {
		// Render loop is stopping
		if ended || ctx.Err() != nil {
			return
		}

		// Decode and present
		if ok, _ := p.s.DecodeVideoFrame(p.o.Surface); !ok {
			ended = true
			cancel()
		}
	})

	// Render loop has been detached by someone else who will go idle
	p.mr.Lock()
	if p.done != done {
		p.mr.Unlock()
		return
	}
	p.cancel = nil
	p.done = nil
	p.path = ""
	p.mr.Unlock()

	// Go idle
	p.idle(path)
}

func (p *Player) idle(path string) {
	// Close session
	if err := p.s.Close(); err != nil {
		p.l.WarnC(p.ctx, fmt.Errorf("player: closing session failed: %w", err))
	}

	// Log
	p.l.InfoCf(p.ctx, "player: stopped playing %s", path)

	// Emit
	p.Emit(EventNamePlaybackStopped, path)
}

type session interface {
	AudioBufferState() (playback.AudioBufferState, bool)
	AudioFormats() (desired, obtained playback.AudioFormat, ok bool)
	AudioStream() (playback.Stream, bool)
	Close() error
	CumulativeStats() playback.SessionCumulativeStats
	DecodeVideoFrame(sf playback.Surface) (bool, error)
	DeltaStats() []astikit.DeltaStat
	HasAudio() bool
	ID() string
	On(n astikit.EventName, h astikit.EventHandler) astikit.EventRemover
	Open(ctx context.Context, o playback.OpenOptions) error
	Path() string
	Status() playback.Status
	VideoStream() (playback.Stream, bool)
}

var _ session = (*playback.Session)(nil)

var newSession = func(o playback.SessionOptions) session {
	return playback.NewSession(o)
}
