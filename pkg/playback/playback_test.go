package playback

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/stretchr/testify/require"
)

func requireDeltaStats(t *testing.T, expected map[string]interface{}, ss []astikit.DeltaStat) {
	require.Len(t, ss, len(expected))
	for _, s := range ss {
		v, ok := expected[s.Metadata.Name]
		if !ok {
			require.Fail(t, fmt.Sprintf("delta stat %s shouldn't be here", s.Metadata.Name))
		}
		require.Equal(t, v, s.Valuer.Value(time.Second))
	}
}

var _ demuxerReader = (*mockedDemuxerReader)(nil)

type mockedDemuxerReader struct {
	findStreamInfoFunc func() error
	freed              bool
	ii                 *astiav.IOInterrupter
	inputClosed        bool
	openInputFunc      func() error
	openInputUrl       string
	packets            []int // Stream indexes
	previous           func() demuxerReader
	readFrameFunc      func(p *astiav.Packet) error
	streamInfoFound    bool
	streams            []*astiav.Stream
}

func newMockedDemuxerReader() *mockedDemuxerReader {
	r := &mockedDemuxerReader{previous: newDemuxerReader}
	newDemuxerReader = func() demuxerReader { return r }
	return r
}

func (r *mockedDemuxerReader) close() {
	newDemuxerReader = r.previous
}

func (r *mockedDemuxerReader) Class() *astiav.Class {
	return nil
}

func (r *mockedDemuxerReader) CloseInput() {
	r.inputClosed = true
}

func (r *mockedDemuxerReader) FindStreamInfo(d *astiav.Dictionary) error {
	if r.findStreamInfoFunc != nil {
		if err := r.findStreamInfoFunc(); err != nil {
			return err
		}
	}
	r.streamInfoFound = true
	return nil
}

func (r *mockedDemuxerReader) Free() {
	r.freed = true
}

func (r *mockedDemuxerReader) OpenInput(url string, fmt *astiav.InputFormat, d *astiav.Dictionary) error {
	if r.openInputFunc != nil {
		if err := r.openInputFunc(); err != nil {
			return err
		}
	}
	r.openInputUrl = url
	return nil
}

func (r *mockedDemuxerReader) ReadFrame(p *astiav.Packet) error {
	if r.readFrameFunc != nil {
		return r.readFrameFunc(p)
	}
	if len(r.packets) == 0 {
		return astiav.ErrEof
	}
	p.SetStreamIndex(r.packets[0])
	r.packets = r.packets[1:]
	return nil
}

func (r *mockedDemuxerReader) SetIOInterrupter(i *astiav.IOInterrupter) {
	r.ii = i
}

func (r *mockedDemuxerReader) Streams() []*astiav.Stream {
	return r.streams
}

// Decoders behave like libav ones: a frame is output for each packet sent and EOF is
// returned once flushed and drained
type mockedDecoderReaders struct {
	frameFuncs      map[astiav.CodecID]func(f *astiav.Frame) error
	previous        func(c *astiav.Codec) decoderReader
	receiveFrameErr map[astiav.CodecID]error
	rs              []*mockedDecoderReader
	sendPacketFuncs map[astiav.CodecID]func(p *astiav.Packet) error
}

func newMockedDecoderReaders() *mockedDecoderReaders {
	rs := &mockedDecoderReaders{
		frameFuncs:      make(map[astiav.CodecID]func(f *astiav.Frame) error),
		previous:        newDecoderReader,
		receiveFrameErr: make(map[astiav.CodecID]error),
		sendPacketFuncs: make(map[astiav.CodecID]func(p *astiav.Packet) error),
	}
	newDecoderReader = func(c *astiav.Codec) decoderReader {
		r := newMockedDecoderReader(c, rs)
		rs.rs = append(rs.rs, r)
		return r
	}
	return rs
}

func (rs *mockedDecoderReaders) close() {
	newDecoderReader = rs.previous
}

func (rs *mockedDecoderReaders) reader(id astiav.CodecID) *mockedDecoderReader {
	for idx := len(rs.rs) - 1; idx >= 0; idx-- {
		if rs.rs[idx].c.ID() == id {
			return rs.rs[idx]
		}
	}
	return nil
}

var _ decoderReader = (*mockedDecoderReader)(nil)

type mockedDecoderReader struct {
	c         *astiav.Codec
	cpCodecID astiav.CodecID
	flushed   bool
	freed     bool
	opened    bool
	pending   int
	rs        *mockedDecoderReaders
	sent      int
	tc        int
	tt        astiav.ThreadType
}

func newMockedDecoderReader(c *astiav.Codec, rs *mockedDecoderReaders) *mockedDecoderReader {
	return &mockedDecoderReader{
		c:  c,
		rs: rs,
	}
}

func (r *mockedDecoderReader) Class() *astiav.Class {
	return nil
}

func (r *mockedDecoderReader) Free() {
	r.freed = true
}

func (r *mockedDecoderReader) FromCodecParameters(cp *astiav.CodecParameters) error {
	r.cpCodecID = cp.CodecID()
	return nil
}

func (r *mockedDecoderReader) Open(c *astiav.Codec, d *astiav.Dictionary) error {
	r.opened = true
	return nil
}

func (r *mockedDecoderReader) ReceiveFrame(f *astiav.Frame) error {
	if err, ok := r.rs.receiveFrameErr[r.c.ID()]; ok && err != nil {
		return err
	}
	if r.pending > 0 {
		r.pending--
		if fn, ok := r.rs.frameFuncs[r.c.ID()]; ok {
			return fn(f)
		}
		return nil
	}
	if r.flushed {
		return astiav.ErrEof
	}
	return astiav.ErrEagain
}

func (r *mockedDecoderReader) SendPacket(p *astiav.Packet) error {
	if p == nil {
		r.flushed = true
		return nil
	}
	if fn, ok := r.rs.sendPacketFuncs[r.c.ID()]; ok {
		if err := fn(p); err != nil {
			return err
		}
	}
	r.pending++
	r.sent++
	return nil
}

func (r *mockedDecoderReader) SetThreadCount(i int) {
	r.tc = i
}

func (r *mockedDecoderReader) SetThreadType(tt astiav.ThreadType) {
	r.tt = tt
}

type mockedVideoScalers struct {
	keys     []videoScalerKey
	previous func(srcW, srcH int, srcFormat astiav.PixelFormat, dstW, dstH int, dstFormat astiav.PixelFormat, flags astiav.SoftwareScaleContextFlags) (videoScaler, error)
	ss       []*mockedVideoScaler
}

func newMockedVideoScalers() *mockedVideoScalers {
	ss := &mockedVideoScalers{previous: newVideoScaler}
	newVideoScaler = func(srcW, srcH int, srcFormat astiav.PixelFormat, dstW, dstH int, dstFormat astiav.PixelFormat, flags astiav.SoftwareScaleContextFlags) (videoScaler, error) {
		ss.keys = append(ss.keys, videoScalerKey{
			height:      srcH,
			pixelFormat: srcFormat,
			width:       srcW,
		})
		s := &mockedVideoScaler{}
		ss.ss = append(ss.ss, s)
		return s, nil
	}
	return ss
}

func (ss *mockedVideoScalers) close() {
	newVideoScaler = ss.previous
}

var _ videoScaler = (*mockedVideoScaler)(nil)

type mockedVideoScaler struct {
	freed  bool
	scaled int
}

func (s *mockedVideoScaler) Free() {
	s.freed = true
}

func (s *mockedVideoScaler) ScaleFrame(src, dst *astiav.Frame) error {
	s.scaled++
	return nil
}

type mockedAudioResamplers struct {
	convertFrameFunc func(src, dst *astiav.Frame) error
	previous         func() audioResampler
	rs               []*mockedAudioResampler
}

func newMockedAudioResamplers() *mockedAudioResamplers {
	rs := &mockedAudioResamplers{previous: newAudioResampler}
	newAudioResampler = func() audioResampler {
		r := &mockedAudioResampler{rs: rs}
		rs.rs = append(rs.rs, r)
		return r
	}
	return rs
}

func (rs *mockedAudioResamplers) close() {
	newAudioResampler = rs.previous
}

var _ audioResampler = (*mockedAudioResampler)(nil)

type mockedAudioResampler struct {
	dstNbSamples []int
	freed        bool
	rs           *mockedAudioResamplers
}

func (r *mockedAudioResampler) ConvertFrame(src, dst *astiav.Frame) error {
	r.dstNbSamples = append(r.dstNbSamples, dst.NbSamples())
	if r.rs.convertFrameFunc != nil {
		return r.rs.convertFrameFunc(src, dst)
	}
	return nil
}

func (r *mockedAudioResampler) Free() {
	r.freed = true
}

var _ AudioDevice = (*mockedAudioDevice)(nil)

type mockedAudioDevice struct {
	cb       AudioDeviceCallback
	desired  AudioFormat
	events   []string
	obtained AudioFormat
	onClose  func()
}

func (d *mockedAudioDevice) opener(err error) AudioDeviceOpener {
	return AudioDeviceOpenerFunc(func(desired AudioFormat, cb AudioDeviceCallback) (AudioDevice, AudioFormat, error) {
		if err != nil {
			return nil, AudioFormat{}, err
		}
		d.cb = cb
		d.desired = desired
		d.events = append(d.events, "open")
		return d, d.obtained, nil
	})
}

func (d *mockedAudioDevice) Close() error {
	if d.onClose != nil {
		d.onClose()
	}
	d.events = append(d.events, "close")
	return nil
}

func (d *mockedAudioDevice) Pause() error {
	d.events = append(d.events, "pause")
	return nil
}

func (d *mockedAudioDevice) Resume() error {
	d.events = append(d.events, "resume")
	return nil
}

var _ Surface = (*mockedSurface)(nil)

type mockedSurface struct {
	created   [][2]int
	destroyed int
	stride    int
	updated   int
}

func (s *mockedSurface) CreateTexture(width, height int) error {
	s.created = append(s.created, [2]int{width, height})
	return nil
}

func (s *mockedSurface) DestroyTexture() {
	s.destroyed++
}

func (s *mockedSurface) UpdateTexture(b []byte, stride int) error {
	s.stride = stride
	s.updated++
	return nil
}

type testStreams struct {
	fc *astiav.FormatContext
}

func newTestStreams() *testStreams {
	return &testStreams{fc: astiav.AllocFormatContext()}
}

func (ss *testStreams) close() {
	ss.fc.Free()
}

func (ss *testStreams) video(index, width, height int) *astiav.Stream {
	s := ss.fc.NewStream(nil)
	s.SetIndex(index)
	s.SetAvgFrameRate(astiav.NewRational(25, 1))
	s.SetTimeBase(astiav.NewRational(1, 25))
	cp := s.CodecParameters()
	cp.SetCodecID(astiav.CodecIDMjpeg)
	cp.SetHeight(height)
	cp.SetMediaType(astiav.MediaTypeVideo)
	cp.SetPixelFormat(astiav.PixelFormatYuv420P)
	cp.SetWidth(width)
	return s
}

func (ss *testStreams) audio(index, sampleRate int, l astiav.ChannelLayout) *astiav.Stream {
	s := ss.fc.NewStream(nil)
	s.SetIndex(index)
	s.SetTimeBase(astiav.NewRational(1, sampleRate))
	cp := s.CodecParameters()
	cp.SetChannelLayout(l)
	cp.SetCodecID(astiav.CodecIDPcmS16Le)
	cp.SetMediaType(astiav.MediaTypeAudio)
	cp.SetSampleRate(sampleRate)
	return s
}

func videoFrameFunc(width, height int) func(f *astiav.Frame) error {
	return func(f *astiav.Frame) error {
		f.SetHeight(height)
		f.SetPixelFormat(astiav.PixelFormatYuv420P)
		f.SetWidth(width)
		return nil
	}
}

func audioFrameFunc(sampleRate, nbSamples int, l astiav.ChannelLayout, sf astiav.SampleFormat, value byte) func(f *astiav.Frame) error {
	return func(f *astiav.Frame) error {
		f.SetChannelLayout(l)
		f.SetNbSamples(nbSamples)
		f.SetSampleFormat(sf)
		f.SetSampleRate(sampleRate)
		if err := f.AllocBuffer(0); err != nil {
			return err
		}
		b, err := f.Data().Bytes(1)
		if err != nil {
			return err
		}
		for idx := range b {
			b[idx] = value
		}
		return f.Data().SetBytes(b, 1)
	}
}

var errMocked = errors.New("mocked")
