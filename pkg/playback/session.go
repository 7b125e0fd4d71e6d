package playback

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/google/uuid"
)

// Session owns every resource needed to play one file. The video path is driven by the
// render loop and the audio path by the device callback, each of them having its own
// lock. A closed session can be opened again.
type Session struct {
	a      *audioState
	as     *Stream
	c      *astikit.Closer
	cs     *sessionCumulativeStats
	ctx    context.Context
	d      *demuxer
	e      *astikit.EventManager
	id     string
	l      astikit.CompleteLogger
	ma     sync.Mutex // Locks a
	mc     sync.Mutex // Locks c and d
	mi     sync.Mutex // Locks as, path and vs
	mv     sync.Mutex // Locks v
	o      SessionOptions
	path   string
	status uint32
	v      *videoState
	vs     *Stream
}

type SessionOptions struct {
	// Defaults to DefaultBackoff()
	Backoff        *Backoff
	ContextAdapter func(ctx context.Context, s *Session) context.Context
	Logger         astikit.StdLogger
	// Defaults to bicubic
	ScaleFlags astiav.SoftwareScaleContextFlags
}

type OpenOptions struct {
	AudioDecoder DecoderOptions
	// When nil, the session plays video only
	Device       AudioDeviceOpener
	Dictionary   DictionaryOptions
	Path         string
	VideoDecoder DecoderOptions
}

func NewSession(o SessionOptions) *Session {
	// Create session
	s := &Session{
		cs:  &sessionCumulativeStats{},
		ctx: context.Background(),
		e:   astikit.NewEventManager(),
		id:  uuid.NewString(),
		l:   astikit.AdaptStdLogger(o.Logger),
		o:   o,
	}

	// Adapt context
	if s.o.ContextAdapter != nil {
		s.ctx = s.o.ContextAdapter(s.ctx, s)
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) String() string {
	return "playback.session_" + s.id
}

func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) Logger() astikit.CompleteLogger {
	return s.l
}

func (s *Session) Emit(n astikit.EventName, payload interface{}) {
	s.e.Emit(n, payload)
}

func (s *Session) On(n astikit.EventName, h astikit.EventHandler) astikit.EventRemover {
	return s.e.On(n, h)
}

func (s *Session) Status() Status {
	return Status(atomic.LoadUint32(&s.status))
}

func (s *Session) Path() string {
	s.mi.Lock()
	defer s.mi.Unlock()
	return s.path
}

func (s *Session) VideoStream() (Stream, bool) {
	s.mi.Lock()
	defer s.mi.Unlock()
	if s.vs == nil {
		return Stream{}, false
	}
	return *s.vs, true
}

func (s *Session) AudioStream() (Stream, bool) {
	s.mi.Lock()
	defer s.mi.Unlock()
	if s.as == nil {
		return Stream{}, false
	}
	return *s.as, true
}

// HasAudio returns whether the audio path has been set up and hasn't failed
func (s *Session) HasAudio() bool {
	s.ma.Lock()
	defer s.ma.Unlock()
	return s.a != nil && s.a.err == nil
}

func (s *Session) AudioFormats() (desired, obtained AudioFormat, ok bool) {
	s.ma.Lock()
	defer s.ma.Unlock()
	if s.a == nil {
		return
	}
	return s.a.desired, s.a.obtained, true
}

func (s *Session) AudioBufferState() (AudioBufferState, bool) {
	s.ma.Lock()
	defer s.ma.Unlock()
	if s.a == nil || s.a.b == nil {
		return AudioBufferState{}, false
	}
	return s.a.b.state(), true
}

func (s *Session) backoff() Backoff {
	if s.o.Backoff != nil {
		return *s.o.Backoff
	}
	return DefaultBackoff()
}

func (s *Session) scaleFlags() astiav.SoftwareScaleContextFlags {
	if s.o.ScaleFlags != 0 {
		return s.o.ScaleFlags
	}
	return astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBicubic)
}

// Open closes whatever the session was playing and opens a new file. Audio failures
// don't fail the open, the session plays video only instead.
func (s *Session) Open(ctx context.Context, o OpenOptions) (err error) {
	// Lock
	s.mc.Lock()
	defer s.mc.Unlock()

	// Close previous file
	if errC := s.closeUnlocked(); errC != nil {
		s.l.WarnC(s.ctx, fmt.Errorf("playback: closing previous file failed: %w", errC))
	}

	// Log
	s.l.InfoCf(s.ctx, "playback: opening %s", o.Path)

	// Create closer
	c := astikit.NewCloser()

	// Make sure to release everything on error
	defer func() {
		if err != nil {
			if errC := c.Close(); errC != nil {
				s.l.WarnC(s.ctx, fmt.Errorf("playback: closing failed: %w", errC))
			}
		}
	}()

	// Open demuxer
	var d *demuxer
	if d, err = openDemuxer(ctx, c, s.cs, o.Path, o.Dictionary); err != nil {
		err = fmt.Errorf("playback: opening demuxer failed: %w", err)
		return
	}
	s.registerClasser(c, d.r)

	// Get video stream
	vs, _ := d.stream(d.videoStreamIndex)
	d.consume(vs.Index)

	// Open video decoder
	var vd decoderReader
	if vd, err = openDecoder(c, vs, o.VideoDecoder); err != nil {
		err = fmt.Errorf("playback: opening video decoder failed: %w", err)
		return
	}
	s.registerClasser(c, vd)

	// Create video state
	var v *videoState
	if v, err = newVideoState(c, vs.Index, vd, s.backoff(), s.scaleFlags()); err != nil {
		err = fmt.Errorf("playback: creating video state failed: %w", err)
		return
	}

	// Create scaler based on stream dimensions, it's refreshed later if frames differ
	if vs.Width > 0 && vs.Height > 0 && vs.PixelFormat != astiav.PixelFormatNone {
		if err = v.refreshScaler(vs.Width, vs.Height, vs.PixelFormat); err != nil {
			err = fmt.Errorf("playback: refreshing scaler failed: %w: %w", ErrAllocationFailure, err)
			return
		}
	}

	// Open audio
	var a *audioState
	var as *Stream
	if st, ok := d.stream(d.audioStreamIndex); ok && o.Device != nil {
		// Audio resources are released together
		ac := c.NewChild()

		// Open
		var errA error
		if a, errA = s.openAudio(ac, st, o); errA != nil {
			// Log
			s.l.WarnC(s.ctx, fmt.Errorf("playback: opening audio failed, playing video only: %w", errA))

			// Close
			if errC := ac.Close(); errC != nil {
				s.l.WarnC(s.ctx, fmt.Errorf("playback: closing audio failed: %w", errC))
			}
			a = nil
		} else {
			as = &st
			d.consume(st.Index)
		}
	} else if ok {
		s.l.InfoC(s.ctx, "playback: no audio device, playing video only")
	}

	// Update session
	s.mv.Lock()
	s.ma.Lock()
	s.a = a
	s.c = c
	s.d = d
	s.v = v
	s.ma.Unlock()
	s.mv.Unlock()
	s.mi.Lock()
	s.as = as
	s.path = o.Path
	s.vs = &vs
	s.mi.Unlock()

	// Update status
	atomic.StoreUint32(&s.status, uint32(StatusOpen))

	// Log
	s.l.InfoCf(s.ctx, "playback: video stream #%d: %s %dx%d %s", vs.Index, vs.CodecID, vs.Width, vs.Height, vs.PixelFormat)
	if a != nil {
		s.l.InfoCf(s.ctx, "playback: audio stream #%d: %s %dHz %dch, desired %s, obtained %s", as.Index, as.CodecID, as.SampleRate, as.Channels, a.desired, a.obtained)
	}

	// Start device
	if a != nil {
		if errR := a.dv.Resume(); errR != nil {
			s.l.WarnC(s.ctx, fmt.Errorf("playback: resuming audio device failed: %w", errR))
		}
	}

	// Emit
	s.Emit(EventNameSessionOpened, o.Path)
	return
}

// Close releases every resource. The device is paused before anything else so that
// its callback doesn't touch buffers being released. It can be called several times
// and after a failed open.
func (s *Session) Close() error {
	// Lock
	s.mc.Lock()
	defer s.mc.Unlock()

	// Close
	return s.closeUnlocked()
}

func (s *Session) closeUnlocked() (err error) {
	// Nothing to do
	if s.c == nil {
		return
	}

	// Pause device
	s.ma.Lock()
	a := s.a
	s.ma.Unlock()
	if a != nil {
		if errP := a.dv.Pause(); errP != nil {
			s.l.WarnC(s.ctx, fmt.Errorf("playback: pausing audio device failed: %w", errP))
		}
	}

	// Detach state so that both paths stop using it
	s.mv.Lock()
	s.ma.Lock()
	c := s.c
	s.a = nil
	s.c = nil
	s.d = nil
	s.v = nil
	s.ma.Unlock()
	s.mv.Unlock()
	s.mi.Lock()
	path := s.path
	s.as = nil
	s.path = ""
	s.vs = nil
	s.mi.Unlock()

	// Close
	if err = c.Close(); err != nil {
		err = fmt.Errorf("playback: closing failed: %w", err)
	}

	// Update status
	atomic.StoreUint32(&s.status, uint32(StatusClosed))

	// Log
	s.l.InfoCf(s.ctx, "playback: %s closed", path)

	// Emit
	s.Emit(EventNameSessionClosed, path)
	return
}

// Assumes mv is locked
func (s *Session) end() {
	// Update status
	if !atomic.CompareAndSwapUint32(&s.status, uint32(StatusOpen), uint32(StatusEnded)) {
		return
	}

	// Log
	s.l.InfoC(s.ctx, "playback: end of stream reached")

	// Emit
	s.Emit(EventNameSessionEnded, nil)
}

// Assumes mv is locked
func (s *Session) fail(err error) {
	// Update status
	if !atomic.CompareAndSwapUint32(&s.status, uint32(StatusOpen), uint32(StatusFailed)) {
		return
	}

	// Log
	s.l.ErrorC(s.ctx, err)

	// Emit
	s.Emit(EventNameSessionFailed, err)
}
