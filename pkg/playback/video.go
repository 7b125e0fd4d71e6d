package playback

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
)

type videoState struct {
	b           Backoff
	buf         []byte // RGBA bytes
	d           decoderReader
	f           *astiav.Frame // Decoded frame
	flushed     bool
	p           *astiav.Packet
	rgba        *astiav.Frame
	sc          videoScaler
	scFlags     astiav.SoftwareScaleContextFlags
	scKey       videoScalerKey
	streamIndex int
	th          int // Cached texture height
	tw          int // Cached texture width
}

type videoScalerKey struct {
	height      int
	pixelFormat astiav.PixelFormat
	width       int
}

func newVideoState(c *astikit.Closer, streamIndex int, d decoderReader, b Backoff, flags astiav.SoftwareScaleContextFlags) (v *videoState, err error) {
	// Create state
	v = &videoState{
		b:           b,
		d:           d,
		scFlags:     flags,
		streamIndex: streamIndex,
	}

	// Allocate frames and packet
	if v.f = astiav.AllocFrame(); v.f == nil {
		err = fmt.Errorf("playback: allocating video frame failed: %w", ErrAllocationFailure)
		return
	}
	c.Add(v.f.Free)
	if v.rgba = astiav.AllocFrame(); v.rgba == nil {
		err = fmt.Errorf("playback: allocating rgba frame failed: %w", ErrAllocationFailure)
		return
	}
	c.Add(v.rgba.Free)
	if v.p = astiav.AllocPacket(); v.p == nil {
		err = fmt.Errorf("playback: allocating video packet failed: %w", ErrAllocationFailure)
		return
	}
	c.Add(v.p.Free)

	// Make sure scaler is freed
	c.Add(v.freeScaler)
	return
}

func (v *videoState) freeScaler() {
	if v.sc != nil {
		v.sc.Free()
		v.sc = nil
	}
	v.buf = nil
	v.scKey = videoScalerKey{}
}

// Scaler and RGBA frame follow the decoded frame's dimensions and pixel format
func (v *videoState) refreshScaler(width, height int, pixelFormat astiav.PixelFormat) (err error) {
	// Nothing to do
	k := videoScalerKey{
		height:      height,
		pixelFormat: pixelFormat,
		width:       width,
	}
	if v.sc != nil && v.scKey == k {
		return
	}

	// Invalid dimensions
	if width <= 0 || height <= 0 {
		return fmt.Errorf("playback: invalid video dimensions %dx%d", width, height)
	}

	// Free previous scaler
	v.freeScaler()

	// Create scaler
	if v.sc, err = newVideoScaler(width, height, pixelFormat, width, height, astiav.PixelFormatRgba, v.scFlags); err != nil {
		err = fmt.Errorf("playback: creating video scaler failed: %w", err)
		return
	}

	// Allocate rgba frame
	v.rgba.Unref()
	v.rgba.SetHeight(height)
	v.rgba.SetPixelFormat(astiav.PixelFormatRgba)
	v.rgba.SetWidth(width)
	if err = v.rgba.AllocBuffer(1); err != nil {
		v.freeScaler()
		err = fmt.Errorf("playback: allocating rgba frame buffer failed: %w: %w", ErrAllocationFailure, err)
		return
	}

	// Allocate rgba buffer
	var n int
	if n, err = v.rgba.ImageBufferSize(1); err != nil {
		v.freeScaler()
		err = fmt.Errorf("playback: getting rgba image buffer size failed: %w", err)
		return
	}
	v.buf = make([]byte, n)

	// Store key
	v.scKey = k
	return
}

// DecodeVideoFrame decodes the next video frame, converts it to RGBA and uploads it to
// the surface. It returns false with no error at end of stream and false with an error
// when decoding failed. A nil surface only decodes.
func (s *Session) DecodeVideoFrame(sf Surface) (ok bool, err error) {
	// Lock
	s.mv.Lock()
	defer s.mv.Unlock()

	// Session is not open
	if s.v == nil {
		return false, ErrSessionNotOpen
	}

	// Update status
	defer func() {
		if err != nil {
			s.fail(err)
		} else if !ok {
			s.end()
		}
	}()

	// Loop
	v := s.v
	for {
		// Receive frame
		errReceive := v.d.ReceiveFrame(v.f)
		if errReceive == nil {
			// Present
			if err = s.presentVideoFrame(sf); err != nil {
				err = fmt.Errorf("playback: presenting video frame failed: %w", err)
				return
			}
			ok = true
			return
		}

		// Decoder is done
		if errors.Is(errReceive, astiav.ErrEof) {
			return
		}

		// Receiving failed
		if !errors.Is(errReceive, astiav.ErrEagain) {
			err = fmt.Errorf("%w: receiving video frame failed: %w", ErrDecodeFatal, errReceive)
			return
		}

		// Decoder has been flushed and won't output anything else
		if v.flushed {
			return
		}

		// Read packet
		if errRead := s.d.readPacket(v.p, v.streamIndex); errRead != nil {
			// Real read error
			if !errors.Is(errRead, astiav.ErrEof) {
				err = fmt.Errorf("%w: reading video packet failed: %w", ErrDecodeFatal, errRead)
				return
			}

			// Flush decoder so that buffered frames still come out
			if errSend := v.d.SendPacket(nil); errSend != nil && !errors.Is(errSend, astiav.ErrEof) {
				err = fmt.Errorf("%w: flushing video decoder failed: %w", ErrDecodeFatal, errSend)
				return
			}
			v.flushed = true
			continue
		}

		// Send packet
		exhausted, errSend := v.b.Retry(func(attempt int) (retry bool, err error) {
			if err = v.d.SendPacket(v.p); err != nil && errors.Is(err, astiav.ErrEagain) {
				s.l.DebugCf(s.ctx, "playback: video decoder busy, retrying (%d/%d)", attempt, v.b.maxAttempts())
				return true, nil
			}
			return false, err
		})
		v.p.Unref()

		// Sending failed
		if errSend != nil {
			err = fmt.Errorf("%w: sending video packet failed: %w", ErrDecodeFatal, errSend)
			return
		}

		// Decoder stayed busy
		if exhausted {
			atomic.AddUint64(&s.cs.droppedPackets, 1)
			s.l.WarnCf(s.ctx, "playback: video decoder busy after %d attempts, skipping packet", v.b.maxAttempts())
		}
	}
}

func (s *Session) presentVideoFrame(sf Surface) (err error) {
	// Make sure to release the decoded frame
	v := s.v
	defer v.f.Unref()

	// Refresh scaler
	w, h := v.f.Width(), v.f.Height()
	if err = v.refreshScaler(w, h, v.f.PixelFormat()); err != nil {
		err = fmt.Errorf("playback: refreshing scaler failed: %w", err)
		return
	}

	// Scale
	if err = v.sc.ScaleFrame(v.f, v.rgba); err != nil {
		err = fmt.Errorf("playback: scaling frame failed: %w", err)
		return
	}

	// Copy to buffer
	if _, err = v.rgba.ImageCopyToBuffer(v.buf, 1); err != nil {
		err = fmt.Errorf("playback: copying rgba image to buffer failed: %w", err)
		return
	}

	// Increment frames
	atomic.AddUint64(&s.cs.videoFrames, 1)

	// No surface
	if sf == nil {
		return
	}

	// Texture dimensions have changed
	if v.tw != w || v.th != h {
		// Destroy previous texture
		if v.tw > 0 || v.th > 0 {
			sf.DestroyTexture()
			v.tw, v.th = 0, 0
		}

		// Create texture
		if err = sf.CreateTexture(w, h); err != nil {
			err = fmt.Errorf("playback: creating %dx%d texture failed: %w", w, h, err)
			return
		}
		v.tw, v.th = w, h
		atomic.AddUint64(&s.cs.textureCreations, 1)
		s.l.DebugCf(s.ctx, "playback: %dx%d texture created", w, h)
	}

	// Update texture
	if err = sf.UpdateTexture(v.buf, w*4); err != nil {
		err = fmt.Errorf("playback: updating texture failed: %w", err)
		return
	}
	return
}

type videoScaler interface {
	Free()
	ScaleFrame(src, dst *astiav.Frame) error
}

var newVideoScaler = func(srcW, srcH int, srcFormat astiav.PixelFormat, dstW, dstH int, dstFormat astiav.PixelFormat, flags astiav.SoftwareScaleContextFlags) (videoScaler, error) {
	ssc, err := astiav.CreateSoftwareScaleContext(srcW, srcH, srcFormat, dstW, dstH, dstFormat, flags)
	if err != nil {
		return nil, err
	}
	return ssc, nil
}
