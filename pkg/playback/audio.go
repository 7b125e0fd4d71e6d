package playback

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
)

type audioState struct {
	b           *audioBuffer
	d           decoderReader
	desired     AudioFormat
	dv          AudioDevice
	err         error         // Set once the audio path has failed
	f           *astiav.Frame // Decoded frame
	flushed     bool
	obtained    AudioFormat
	p           *astiav.Packet
	rf          *astiav.Frame // Resampled frame
	rs          audioResampler
	streamIndex int
}

// Audio is optional: the caller is expected to fall back to video-only playback
// when this fails
func (s *Session) openAudio(c *astikit.Closer, st Stream, o OpenOptions) (a *audioState, err error) {
	// Create state
	a = &audioState{streamIndex: st.Index}

	// Open decoder
	if a.d, err = openDecoder(c, st, o.AudioDecoder); err != nil {
		err = fmt.Errorf("playback: opening audio decoder failed: %w", err)
		return
	}
	s.registerClasser(c, a.d)

	// Allocate frames and packet
	if a.f = astiav.AllocFrame(); a.f == nil {
		err = fmt.Errorf("playback: allocating audio frame failed: %w", ErrAllocationFailure)
		return
	}
	c.Add(a.f.Free)
	if a.rf = astiav.AllocFrame(); a.rf == nil {
		err = fmt.Errorf("playback: allocating resampled audio frame failed: %w", ErrAllocationFailure)
		return
	}
	c.Add(a.rf.Free)
	if a.p = astiav.AllocPacket(); a.p == nil {
		err = fmt.Errorf("playback: allocating audio packet failed: %w", ErrAllocationFailure)
		return
	}
	c.Add(a.p.Free)

	// Make sure resampler is freed
	c.Add(a.freeResampler)

	// Open device
	a.desired = AudioFormat{
		Channels:     defaultAudioChannels,
		SampleFormat: deviceSampleFormat,
		SampleRate:   st.SampleRate,
		Samples:      defaultAudioSamples,
	}
	if a.dv, a.obtained, err = o.Device.OpenAudioDevice(a.desired, s.AudioDeviceCallback); err != nil {
		err = fmt.Errorf("playback: opening audio device failed: %w", err)
		return
	}

	// Create buffer
	//
	// It must be freed after the device is closed which is why it's added to the closer
	// before the device
	a.b = newAudioBuffer(defaultAudioSamples * a.obtained.Channels * deviceBytesPerSample)
	c.Add(a.b.free)
	c.AddWithError(a.dv.Close)

	// Invalid obtained format
	if a.obtained.Channels <= 0 || a.obtained.SampleRate <= 0 {
		err = fmt.Errorf("playback: invalid obtained audio format %s", a.obtained)
		return
	}
	return
}

func (a *audioState) freeResampler() {
	if a.rs != nil {
		a.rs.Free()
		a.rs = nil
	}
}

// DecodeNextAudioPacket decodes audio until a frame is produced and stores it in the
// audio buffer. It returns false with no error at end of stream and false with an
// error when decoding failed, in which case the audio path stays disabled.
func (s *Session) DecodeNextAudioPacket() (bool, error) {
	// Lock
	s.ma.Lock()
	defer s.ma.Unlock()

	// Audio path is not initialized
	if s.a == nil {
		return false, ErrSessionNotOpen
	}
	return s.decodeNextAudioPacket()
}

// Assumes ma is locked
func (s *Session) decodeNextAudioPacket() (ok bool, err error) {
	// Audio path has failed
	a := s.a
	if a.err != nil {
		return false, a.err
	}

	// Make sure to disable the audio path on error
	defer func() {
		if err != nil {
			a.err = err
			s.d.release(a.streamIndex)
		}
	}()

	// Loop
	for {
		// Receive frame
		errReceive := a.d.ReceiveFrame(a.f)
		if errReceive == nil {
			// Process
			if err = s.processAudioFrame(); err != nil {
				err = fmt.Errorf("playback: processing audio frame failed: %w", err)
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
			err = fmt.Errorf("%w: receiving audio frame failed: %w", ErrDecodeFatal, errReceive)
			return
		}

		// Decoder has been flushed and won't output anything else
		if a.flushed {
			return
		}

		// Read packet
		if errRead := s.d.readPacket(a.p, a.streamIndex); errRead != nil {
			// Real read error
			if !errors.Is(errRead, astiav.ErrEof) {
				err = fmt.Errorf("%w: reading audio packet failed: %w", ErrDecodeFatal, errRead)
				return
			}

			// Flush decoder so that buffered frames still come out
			if errSend := a.d.SendPacket(nil); errSend != nil && !errors.Is(errSend, astiav.ErrEof) {
				err = fmt.Errorf("%w: flushing audio decoder failed: %w", ErrDecodeFatal, errSend)
				return
			}
			a.flushed = true
			continue
		}

		// Send packet
		errSend := a.d.SendPacket(a.p)
		a.p.Unref()
		if errSend != nil {
			// Decoder is busy, packet is lost but pending frames are received first
			if errors.Is(errSend, astiav.ErrEagain) {
				s.l.DebugC(s.ctx, "playback: audio decoder busy, skipping packet")
				continue
			}
			err = fmt.Errorf("%w: sending audio packet failed: %w", ErrDecodeFatal, errSend)
			return
		}
	}
}

// Assumes ma is locked
func (s *Session) processAudioFrame() (err error) {
	// Make sure to release the decoded frame
	a := s.a
	defer a.f.Unref()

	// Process
	var n int
	if a.obtained.matchesFrame(a.f) {
		a.freeResampler()
		n, err = s.copyAudioFrame()
	} else {
		n, err = s.resampleAudioFrame()
	}
	if err != nil {
		return
	}

	// Increment bytes
	atomic.AddUint64(&s.cs.audioBytes, uint64(n))
	return
}

func (s *Session) copyAudioFrame() (n int, err error) {
	// Get bytes
	a := s.a
	var b []byte
	if b, err = a.f.Data().Bytes(1); err != nil {
		err = fmt.Errorf("playback: getting audio frame bytes failed: %w", err)
		return
	}

	// Grow
	s.growAudioBuffer(len(b))

	// Write
	if err = a.b.write(b); err != nil {
		err = fmt.Errorf("playback: writing to audio buffer failed: %w", err)
		return
	}
	n = len(b)
	return
}

func (s *Session) resampleAudioFrame() (n int, err error) {
	// Create resampler
	a := s.a
	if a.rs == nil {
		if a.rs = newAudioResampler(); a.rs == nil {
			err = fmt.Errorf("playback: allocating audio resampler failed: %w", ErrAllocationFailure)
			return
		}
		s.l.DebugCf(s.ctx, "playback: resampling audio from %dHz %dch %s to %s", a.f.SampleRate(), a.f.ChannelLayout().Channels(), a.f.SampleFormat(), a.obtained)
	}

	// Grow
	maxOut := maxResampledSamples(a.f.NbSamples(), a.f.SampleRate(), a.obtained.SampleRate)
	s.growAudioBuffer(maxOut * a.obtained.Channels * deviceBytesPerSample)

	// Prepare resampled frame
	a.rf.Unref()
	a.rf.SetChannelLayout(defaultChannelLayout(a.obtained.Channels))
	a.rf.SetNbSamples(maxOut)
	a.rf.SetSampleFormat(a.obtained.SampleFormat)
	a.rf.SetSampleRate(a.obtained.SampleRate)
	if err = a.rf.AllocBuffer(0); err != nil {
		err = fmt.Errorf("playback: allocating resampled audio frame buffer failed: %w: %w", ErrAllocationFailure, err)
		return
	}

	// Resample
	if err = a.rs.ConvertFrame(a.f, a.rf); err != nil {
		err = fmt.Errorf("playback: resampling audio frame failed: %w", err)
		return
	}

	// Fill
	if err = a.b.fill(func(dst []byte) (int, error) {
		b, err := a.rf.Data().Bytes(1)
		if err != nil {
			return 0, fmt.Errorf("playback: getting resampled audio frame bytes failed: %w", err)
		}
		n = copy(dst, b)
		return n, nil
	}); err != nil {
		return
	}
	return
}

func (s *Session) growAudioBuffer(required int) {
	if s.a.b.grow(required) {
		atomic.AddUint64(&s.cs.audioBufferGrowths, 1)
		s.l.DebugCf(s.ctx, "playback: audio buffer grown to %d bytes", required)
	}
}

// Maximum number of samples the resampler may output for nb input samples, that is
// ceil(nb * outRate / inRate)
func maxResampledSamples(nb, inRate, outRate int) int {
	if nb <= 0 {
		return 0
	}
	if inRate <= 0 || outRate <= 0 {
		return nb
	}
	return int((int64(nb)*int64(outRate) + int64(inRate) - 1) / int64(inRate))
}

type audioResampler interface {
	ConvertFrame(src, dst *astiav.Frame) error
	Free()
}

var newAudioResampler = func() audioResampler {
	if src := astiav.AllocSoftwareResampleContext(); src != nil {
		return src
	}
	return nil
}
