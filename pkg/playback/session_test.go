package playback

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/stretchr/testify/require"
)

type sessionTest struct {
	dv  *mockedAudioDevice
	l   *astikit.MockedLogger
	r   *mockedDemuxerReader
	rs  *mockedDecoderReaders
	rss *mockedAudioResamplers
	s   *Session
	sc  *mockedVideoScalers
	sf  *mockedSurface
	ss  *testStreams
}

func withSession(t *testing.T, o SessionOptions, fn func(st *sessionTest)) {
	st := &sessionTest{
		dv: &mockedAudioDevice{obtained: AudioFormat{
			Channels:     1,
			SampleFormat: astiav.SampleFormatS16,
			SampleRate:   44100,
			Samples:      defaultAudioSamples,
		}},
		l:   astikit.NewMockedLogger(),
		r:   newMockedDemuxerReader(),
		rs:  newMockedDecoderReaders(),
		rss: newMockedAudioResamplers(),
		sc:  newMockedVideoScalers(),
		sf:  &mockedSurface{},
		ss:  newTestStreams(),
	}
	defer st.r.close()
	defer st.rs.close()
	defer st.rss.close()
	defer st.sc.close()
	defer st.ss.close()

	st.r.streams = []*astiav.Stream{
		st.ss.video(0, 4, 2),
		st.ss.audio(1, 44100, astiav.ChannelLayoutMono),
	}
	st.rs.frameFuncs[astiav.CodecIDMjpeg] = videoFrameFunc(4, 2)
	st.rs.frameFuncs[astiav.CodecIDPcmS16Le] = audioFrameFunc(44100, 1024, astiav.ChannelLayoutMono, astiav.SampleFormatS16, 1)

	o.Logger = st.l
	st.s = NewSession(o)
	defer st.s.Close()

	fn(st)
}

func (st *sessionTest) openOptions() OpenOptions {
	return OpenOptions{
		Device: st.dv.opener(nil),
		Path:   "path",
	}
}

func (st *sessionTest) callback(n int) []byte {
	b := bytes.Repeat([]byte{0xff}, n)
	st.dv.cb(b)
	return b
}

func TestSessionPlayback(t *testing.T) {
	withSession(t, SessionOptions{}, func(st *sessionTest) {
		var events []astikit.EventName
		for _, n := range []astikit.EventName{EventNameSessionClosed, EventNameSessionEnded, EventNameSessionFailed, EventNameSessionOpened} {
			n := n
			st.s.On(n, func(payload interface{}) (delete bool) {
				events = append(events, n)
				return
			})
		}
		st.r.packets = []int{0, 1, 1, 1, 1, 0}

		require.Equal(t, StatusClosed, st.s.Status())
		require.NoError(t, st.s.Open(context.Background(), st.openOptions()))
		require.Equal(t, StatusOpen, st.s.Status())
		require.Equal(t, "path", st.s.Path())
		require.True(t, st.s.HasAudio())
		vs, ok := st.s.VideoStream()
		require.True(t, ok)
		require.Equal(t, 0, vs.Index)
		as, ok := st.s.AudioStream()
		require.True(t, ok)
		require.Equal(t, 1, as.Index)
		desired, obtained, ok := st.s.AudioFormats()
		require.True(t, ok)
		require.Equal(t, AudioFormat{
			Channels:     2,
			SampleFormat: astiav.SampleFormatS16,
			SampleRate:   44100,
			Samples:      8192,
		}, desired)
		require.Equal(t, st.dv.desired, desired)
		require.Equal(t, st.dv.obtained, obtained)
		bs, ok := st.s.AudioBufferState()
		require.True(t, ok)
		require.Equal(t, AudioBufferState{AllocatedCapacity: 8192 * 1 * 2}, bs)
		require.Equal(t, []string{"open", "resume"}, st.dv.events)
		require.Len(t, st.sc.keys, 1)

		ok, err := st.s.DecodeVideoFrame(st.sf)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, bytes.Repeat([]byte{1}, 4096), st.callback(4096))
		ok, err = st.s.DecodeVideoFrame(st.sf)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, bytes.Repeat([]byte{1}, 4096), st.callback(4096))
		require.Equal(t, make([]byte, 4096), st.callback(4096))
		ok, err = st.s.DecodeVideoFrame(st.sf)
		require.NoError(t, err)
		require.False(t, ok)
		require.Equal(t, StatusEnded, st.s.Status())
		ok, err = st.s.DecodeVideoFrame(st.sf)
		require.NoError(t, err)
		require.False(t, ok)

		require.Equal(t, [][2]int{{4, 2}}, st.sf.created)
		require.Equal(t, 0, st.sf.destroyed)
		require.Equal(t, 2, st.sf.updated)
		require.Equal(t, 16, st.sf.stride)
		require.Len(t, st.sc.keys, 1)
		require.Equal(t, SessionCumulativeStats{
			AudioBytes:       8192,
			TextureCreations: 1,
			Underruns:        1,
			VideoFrames:      2,
		}, st.s.CumulativeStats())

		ab := st.s.a.b
		st.dv.onClose = func() {
			require.Equal(t, []string{"open", "resume", "pause"}, st.dv.events)
			require.NotNil(t, ab.b)
		}
		require.NoError(t, st.s.Close())
		require.Equal(t, []string{"open", "resume", "pause", "close"}, st.dv.events)
		require.Nil(t, ab.b)
		require.True(t, st.r.inputClosed)
		require.True(t, st.r.freed)
		for _, r := range st.rs.rs {
			require.True(t, r.freed)
		}
		require.True(t, st.sc.ss[0].freed)
		require.Equal(t, StatusClosed, st.s.Status())
		require.Equal(t, "", st.s.Path())
		_, ok = st.s.VideoStream()
		require.False(t, ok)
		_, _, ok = st.s.AudioFormats()
		require.False(t, ok)
		require.Equal(t, make([]byte, 16), st.callback(16))

		require.NoError(t, st.s.Close())
		require.Equal(t, []string{"open", "resume", "pause", "close"}, st.dv.events)
		_, err = st.s.DecodeVideoFrame(st.sf)
		require.ErrorIs(t, err, ErrSessionNotOpen)
		_, err = st.s.DecodeNextAudioPacket()
		require.ErrorIs(t, err, ErrSessionNotOpen)
		require.Equal(t, []astikit.EventName{EventNameSessionOpened, EventNameSessionEnded, EventNameSessionClosed}, events)
	})
}

func TestSessionReopen(t *testing.T) {
	withSession(t, SessionOptions{}, func(st *sessionTest) {
		for range 2 {
			st.r.packets = []int{0, 1}
			require.NoError(t, st.s.Open(context.Background(), st.openOptions()))
			ok, err := st.s.DecodeVideoFrame(st.sf)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, bytes.Repeat([]byte{1}, 2048), st.callback(2048))
			require.NoError(t, st.s.Close())
		}
		require.Equal(t, [][2]int{{4, 2}, {4, 2}}, st.sf.created)
		require.Equal(t, []string{"open", "resume", "pause", "close", "open", "resume", "pause", "close"}, st.dv.events)

		// Opening closes the previous file
		require.NoError(t, st.s.Open(context.Background(), st.openOptions()))
		require.NoError(t, st.s.Open(context.Background(), st.openOptions()))
		require.Equal(t, []string{"pause", "close", "open", "resume"}, st.dv.events[len(st.dv.events)-4:])
	})
}

func TestSessionOpenFailures(t *testing.T) {
	withSession(t, SessionOptions{}, func(st *sessionTest) {
		// No video stream
		st.r.streams = []*astiav.Stream{st.ss.audio(0, 44100, astiav.ChannelLayoutMono)}
		err := st.s.Open(context.Background(), st.openOptions())
		require.ErrorIs(t, err, ErrNoVideoStream)
		require.Equal(t, StatusClosed, st.s.Status())
		require.True(t, st.r.inputClosed)
		require.True(t, st.r.freed)
		require.Empty(t, st.dv.events)

		// Unsupported video codec
		st.r.freed = false
		st.r.inputClosed = false
		s := st.ss.video(0, 4, 2)
		s.CodecParameters().SetCodecID(astiav.CodecIDNone)
		st.r.streams = []*astiav.Stream{s}
		err = st.s.Open(context.Background(), st.openOptions())
		require.ErrorIs(t, err, ErrCodecUnsupported)
		require.True(t, st.r.inputClosed)
		require.True(t, st.r.freed)

		// Open input error
		st.r.openInputFunc = func() error { return errMocked }
		err = st.s.Open(context.Background(), st.openOptions())
		require.ErrorIs(t, err, ErrOpenFailure)
		st.r.openInputFunc = nil

		// Session can still be used
		st.r.streams = []*astiav.Stream{st.ss.video(0, 4, 2)}
		st.r.packets = []int{0}
		require.NoError(t, st.s.Open(context.Background(), st.openOptions()))
		ok, err := st.s.DecodeVideoFrame(st.sf)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, st.s.Close())
		require.NoError(t, st.s.Close())
	})
}

func TestSessionVideoOnly(t *testing.T) {
	// Audio device can't be opened
	withSession(t, SessionOptions{}, func(st *sessionTest) {
		st.r.packets = []int{1, 0, 1}
		o := st.openOptions()
		o.Device = st.dv.opener(errMocked)
		require.NoError(t, st.s.Open(context.Background(), o))
		require.False(t, st.s.HasAudio())
		_, ok := st.s.AudioStream()
		require.False(t, ok)
		_, ok = st.s.AudioBufferState()
		require.False(t, ok)
		require.Len(t, st.rs.rs, 2)
		require.True(t, st.rs.reader(astiav.CodecIDPcmS16Le).freed)
		require.False(t, st.rs.reader(astiav.CodecIDMjpeg).freed)
		ok, err := st.s.DecodeVideoFrame(st.sf)
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = st.s.DecodeVideoFrame(st.sf)
		require.NoError(t, err)
		require.False(t, ok)
		require.Equal(t, uint64(2), st.s.CumulativeStats().DiscardedPackets)
		var warned bool
		for _, i := range st.l.Items {
			if i.LoggerLevel == astikit.LoggerLevelWarn && strings.Contains(i.Message, "playing video only") {
				warned = true
			}
		}
		require.True(t, warned)
	})

	// No audio device
	withSession(t, SessionOptions{}, func(st *sessionTest) {
		o := st.openOptions()
		o.Device = nil
		require.NoError(t, st.s.Open(context.Background(), o))
		require.False(t, st.s.HasAudio())
		require.Len(t, st.rs.rs, 1)
		_, err := st.s.DecodeNextAudioPacket()
		require.ErrorIs(t, err, ErrSessionNotOpen)
	})
}

func TestSessionTextureResize(t *testing.T) {
	withSession(t, SessionOptions{}, func(st *sessionTest) {
		var count int
		st.rs.frameFuncs[astiav.CodecIDMjpeg] = func(f *astiav.Frame) error {
			count++
			if count <= 2 {
				return videoFrameFunc(4, 2)(f)
			}
			return videoFrameFunc(8, 4)(f)
		}
		st.r.packets = []int{0, 0, 0, 0}
		require.NoError(t, st.s.Open(context.Background(), st.openOptions()))
		for range 4 {
			ok, err := st.s.DecodeVideoFrame(st.sf)
			require.NoError(t, err)
			require.True(t, ok)
		}
		require.Equal(t, [][2]int{{4, 2}, {8, 4}}, st.sf.created)
		require.Equal(t, 1, st.sf.destroyed)
		require.Equal(t, 4, st.sf.updated)
		require.Equal(t, 32, st.sf.stride)
		require.Equal(t, []videoScalerKey{
			{height: 2, pixelFormat: astiav.PixelFormatYuv420P, width: 4},
			{height: 4, pixelFormat: astiav.PixelFormatYuv420P, width: 8},
		}, st.sc.keys)
		require.True(t, st.sc.ss[0].freed)
		require.False(t, st.sc.ss[1].freed)
		require.Equal(t, uint64(2), st.s.CumulativeStats().TextureCreations)

		// Without surface, frames are only decoded
		st.r.packets = []int{0}
		ok, err := st.s.DecodeVideoFrame(nil)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, 4, st.sf.updated)
	})
}

func TestSessionVideoDecoderBusy(t *testing.T) {
	var sleeps []time.Duration
	b := NewConstantBackoff(3, 5*time.Millisecond)
	b.Sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	withSession(t, SessionOptions{Backoff: &b}, func(st *sessionTest) {
		var sent int
		st.rs.sendPacketFuncs[astiav.CodecIDMjpeg] = func(p *astiav.Packet) error {
			sent++
			if sent <= 3 {
				return astiav.ErrEagain
			}
			return nil
		}
		st.r.packets = []int{0, 0}
		require.NoError(t, st.s.Open(context.Background(), st.openOptions()))
		ok, err := st.s.DecodeVideoFrame(st.sf)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, 4, sent)
		require.Equal(t, []time.Duration{5 * time.Millisecond, 5 * time.Millisecond}, sleeps)
		require.Equal(t, uint64(1), st.s.CumulativeStats().DroppedPackets)
		require.Equal(t, 1, st.rs.reader(astiav.CodecIDMjpeg).sent)

		// Decoder is busy until the end
		sleeps = []time.Duration{}
		st.rs.sendPacketFuncs[astiav.CodecIDMjpeg] = func(p *astiav.Packet) error { return astiav.ErrEagain }
		st.r.packets = []int{0, 0}
		ok, err = st.s.DecodeVideoFrame(st.sf)
		require.NoError(t, err)
		require.False(t, ok)
		require.Len(t, sleeps, 4)
		require.Equal(t, uint64(3), st.s.CumulativeStats().DroppedPackets)
	})
}

func TestSessionVideoDecodeFatal(t *testing.T) {
	withSession(t, SessionOptions{}, func(st *sessionTest) {
		var failed error
		st.s.On(EventNameSessionFailed, func(payload interface{}) (delete bool) {
			failed, _ = payload.(error)
			return
		})
		st.rs.sendPacketFuncs[astiav.CodecIDMjpeg] = func(p *astiav.Packet) error { return errMocked }
		st.r.packets = []int{0}
		require.NoError(t, st.s.Open(context.Background(), st.openOptions()))
		ok, err := st.s.DecodeVideoFrame(st.sf)
		require.ErrorIs(t, err, ErrDecodeFatal)
		require.ErrorIs(t, err, errMocked)
		require.False(t, ok)
		require.Equal(t, StatusFailed, st.s.Status())
		require.ErrorIs(t, failed, errMocked)
	})

	withSession(t, SessionOptions{}, func(st *sessionTest) {
		st.r.readFrameFunc = func(p *astiav.Packet) error { return errMocked }
		require.NoError(t, st.s.Open(context.Background(), st.openOptions()))
		ok, err := st.s.DecodeVideoFrame(st.sf)
		require.ErrorIs(t, err, ErrDecodeFatal)
		require.False(t, ok)
	})
}

func TestSessionAudioCopy(t *testing.T) {
	withSession(t, SessionOptions{}, func(st *sessionTest) {
		var count int
		st.rs.frameFuncs[astiav.CodecIDPcmS16Le] = func(f *astiav.Frame) error {
			count++
			nb := 1024
			if count == 2 {
				nb = 10000
			}
			return audioFrameFunc(44100, nb, astiav.ChannelLayoutMono, astiav.SampleFormatS16, byte(count))(f)
		}
		st.r.packets = []int{1, 1, 1}
		require.NoError(t, st.s.Open(context.Background(), st.openOptions()))

		for _, v := range []struct {
			capacity int
			value    byte
			size     int
		}{
			{capacity: 16384, value: 1, size: 2048},
			{capacity: 20000, value: 2, size: 20000},
			{capacity: 20000, value: 3, size: 2048},
		} {
			ok, err := st.s.DecodeNextAudioPacket()
			require.NoError(t, err)
			require.True(t, ok)
			bs, _ := st.s.AudioBufferState()
			require.Equal(t, AudioBufferState{AllocatedCapacity: v.capacity, ValidSize: v.size}, bs)
			require.Equal(t, bytes.Repeat([]byte{v.value}, v.size), st.s.a.b.b[:v.size])
		}
		require.Empty(t, st.rss.rs)
		require.Equal(t, uint64(1), st.s.CumulativeStats().AudioBufferGrowths)

		ok, err := st.s.DecodeNextAudioPacket()
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestSessionAudioResample(t *testing.T) {
	withSession(t, SessionOptions{}, func(st *sessionTest) {
		st.dv.obtained = AudioFormat{
			Channels:     2,
			SampleFormat: astiav.SampleFormatS16,
			SampleRate:   48000,
		}
		var count int
		st.rs.frameFuncs[astiav.CodecIDPcmS16Le] = func(f *astiav.Frame) error {
			count++
			nb := 1024
			if count == 2 || count == 3 {
				nb = 20000
			}
			return audioFrameFunc(44100, nb, astiav.ChannelLayoutMono, astiav.SampleFormatS16, 1)(f)
		}
		st.rss.convertFrameFunc = func(src, dst *astiav.Frame) error {
			dst.SetNbSamples(1000)
			return dst.Data().SetBytes(bytes.Repeat([]byte{3}, 4000), 1)
		}
		st.r.packets = []int{1, 1, 1, 1}
		require.NoError(t, st.s.Open(context.Background(), st.openOptions()))
		bs, _ := st.s.AudioBufferState()
		require.Equal(t, 32768, bs.AllocatedCapacity)

		for _, capacity := range []int{32768, 87076, 87076, 87076} {
			ok, err := st.s.DecodeNextAudioPacket()
			require.NoError(t, err)
			require.True(t, ok)
			bs, _ := st.s.AudioBufferState()
			require.Equal(t, AudioBufferState{AllocatedCapacity: capacity, ValidSize: 4000}, bs)
		}
		require.Len(t, st.rss.rs, 1)
		require.Equal(t, []int{1115, 21769, 21769, 1115}, st.rss.rs[0].dstNbSamples)
		require.Equal(t, uint64(1), st.s.CumulativeStats().AudioBufferGrowths)
		require.Equal(t, bytes.Repeat([]byte{3}, 4000), st.callback(4000))

		// Resampling errors are fatal
		st.rss.convertFrameFunc = func(src, dst *astiav.Frame) error { return errMocked }
		st.r.packets = []int{1}
		ok, err := st.s.DecodeNextAudioPacket()
		require.ErrorIs(t, err, errMocked)
		require.False(t, ok)
		require.False(t, st.s.HasAudio())

		require.NoError(t, st.s.Close())
		require.True(t, st.rss.rs[0].freed)
	})
}

func TestSessionAudioResamplerFollowsFrameFormat(t *testing.T) {
	withSession(t, SessionOptions{}, func(st *sessionTest) {
		var count int
		st.rs.frameFuncs[astiav.CodecIDPcmS16Le] = func(f *astiav.Frame) error {
			count++
			sampleRate := 48000
			if count == 2 {
				sampleRate = 44100
			}
			return audioFrameFunc(sampleRate, 1024, astiav.ChannelLayoutMono, astiav.SampleFormatS16, 1)(f)
		}
		st.r.packets = []int{1, 1, 1}
		require.NoError(t, st.s.Open(context.Background(), st.openOptions()))

		for _, v := range []struct {
			resamplers int
			resampling bool
		}{
			{resamplers: 1, resampling: true},
			{resamplers: 1},
			{resamplers: 2, resampling: true},
		} {
			ok, err := st.s.DecodeNextAudioPacket()
			require.NoError(t, err)
			require.True(t, ok)
			require.Len(t, st.rss.rs, v.resamplers)
			require.Equal(t, v.resampling, st.s.a.rs != nil)
		}
		require.True(t, st.rss.rs[0].freed)
		require.False(t, st.rss.rs[1].freed)

		require.NoError(t, st.s.Close())
		require.True(t, st.rss.rs[1].freed)
	})
}

func TestSessionAudioFatal(t *testing.T) {
	withSession(t, SessionOptions{}, func(st *sessionTest) {
		st.l.SkipFunc = func(msg string) (skip bool) {
			return !strings.Contains(msg, "decoding next audio packet failed")
		}
		st.rs.receiveFrameErr[astiav.CodecIDPcmS16Le] = errMocked
		st.r.packets = []int{1, 0}
		require.NoError(t, st.s.Open(context.Background(), st.openOptions()))
		for range 3 {
			require.Equal(t, make([]byte, 64), st.callback(64))
		}
		require.Len(t, st.l.Items, 1)
		require.Equal(t, astikit.LoggerLevelWarn, st.l.Items[0].LoggerLevel)
		require.False(t, st.s.HasAudio())
		require.Equal(t, uint64(3), st.s.CumulativeStats().Underruns)
		_, err := st.s.DecodeNextAudioPacket()
		require.ErrorIs(t, err, ErrDecodeFatal)

		// Video keeps on playing
		ok, err := st.s.DecodeVideoFrame(st.sf)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, StatusOpen, st.s.Status())
	})
}

func TestSessionAudioUnderrun(t *testing.T) {
	withSession(t, SessionOptions{}, func(st *sessionTest) {
		require.NoError(t, st.s.Open(context.Background(), st.openOptions()))
		ok, err := st.s.DecodeNextAudioPacket()
		require.NoError(t, err)
		require.False(t, ok)
		for _, n := range []int{1, 100, 4096} {
			require.Equal(t, make([]byte, n), st.callback(n))
		}
		bs, _ := st.s.AudioBufferState()
		require.Equal(t, AudioBufferState{AllocatedCapacity: 16384}, bs)
	})

	// Partially filled destination is padded with silence
	withSession(t, SessionOptions{}, func(st *sessionTest) {
		st.r.packets = []int{1}
		require.NoError(t, st.s.Open(context.Background(), st.openOptions()))
		b := st.callback(3000)
		require.Equal(t, bytes.Repeat([]byte{1}, 2048), b[:2048])
		require.Equal(t, make([]byte, 952), b[2048:])
	})
}

func TestSessionAudioBufferInvariant(t *testing.T) {
	withSession(t, SessionOptions{}, func(st *sessionTest) {
		var count int
		st.rs.frameFuncs[astiav.CodecIDPcmS16Le] = func(f *astiav.Frame) error {
			count++
			return audioFrameFunc(44100, 100*count, astiav.ChannelLayoutMono, astiav.SampleFormatS16, 1)(f)
		}
		st.r.packets = make([]int, 50)
		for idx := range st.r.packets {
			st.r.packets[idx] = 1
		}
		require.NoError(t, st.s.Open(context.Background(), st.openOptions()))
		ab := st.s.a.b
		previous := ab.state().AllocatedCapacity
		for idx := 0; idx < 100; idx++ {
			if idx%3 == 0 {
				_, err := st.s.DecodeNextAudioPacket()
				require.NoError(t, err)
			} else {
				st.callback(idx * 97)
			}
			requireAudioBufferInvariant(t, ab)
			require.GreaterOrEqual(t, ab.state().AllocatedCapacity, previous)
			previous = ab.state().AllocatedCapacity
		}
	})
}

func TestSessionContext(t *testing.T) {
	type key struct{}
	withSession(t, SessionOptions{ContextAdapter: func(ctx context.Context, s *Session) context.Context {
		return context.WithValue(ctx, key{}, s.ID())
	}}, func(st *sessionTest) {
		require.NotEmpty(t, st.s.ID())
		require.Equal(t, st.s.ID(), st.s.Context().Value(key{}))
		require.NoError(t, st.s.Open(context.Background(), st.openOptions()))
		ctx, ok := ClasserContext(st.r)
		require.True(t, ok)
		require.Equal(t, st.s.Context(), ctx)
		_, ok = ClasserContext(st.rs.reader(astiav.CodecIDPcmS16Le))
		require.True(t, ok)
		require.NoError(t, st.s.Close())
		_, ok = ClasserContext(st.r)
		require.False(t, ok)
	})
}

func TestSessionDeltaStats(t *testing.T) {
	withSession(t, SessionOptions{}, func(st *sessionTest) {
		requireDeltaStats(t, map[string]interface{}{
			DeltaStatNameAudioBufferGrowths: uint64(0),
			DeltaStatNameAudioByteRate:      0.0,
			DeltaStatNameAudioUnderruns:     uint64(0),
			DeltaStatNameDiscardedPackets:   uint64(0),
			DeltaStatNameDroppedPackets:     uint64(0),
			DeltaStatNameTextureCreations:   uint64(0),
			DeltaStatNameVideoFrameRate:     0.0,
		}, st.s.DeltaStats())
	})
}

func TestMaxResampledSamples(t *testing.T) {
	for _, v := range []struct {
		expected int
		inRate   int
		nb       int
		outRate  int
	}{
		{expected: 1115, inRate: 44100, nb: 1024, outRate: 48000},
		{expected: 941, inRate: 48000, nb: 1024, outRate: 44100},
		{expected: 1024, inRate: 48000, nb: 1024, outRate: 48000},
		{expected: 1, inRate: 3, nb: 1, outRate: 2},
		{expected: 0, inRate: 44100, nb: 0, outRate: 48000},
		{expected: 3, inRate: 0, nb: 3, outRate: 48000},
	} {
		require.Equal(t, v.expected, maxResampledSamples(v.nb, v.inRate, v.outRate))
	}
}
