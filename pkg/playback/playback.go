package playback

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
)

var (
	ErrAllocationFailure = errors.New("playback: allocation failure")
	ErrCodecUnsupported  = errors.New("playback: codec unsupported")
	ErrDecodeFatal       = errors.New("playback: fatal decode error")
	ErrOpenFailure       = errors.New("playback: open failure")
	ErrNoVideoStream     = fmt.Errorf("%w: no video stream", ErrOpenFailure)
	ErrSessionNotOpen    = errors.New("playback: session is not open")
)

const (
	DeltaStatNameAudioBufferGrowths = "playback.audio.buffer_growths"
	DeltaStatNameAudioByteRate      = "playback.audio.byte_rate"
	DeltaStatNameAudioUnderruns     = "playback.audio.underruns"
	DeltaStatNameDiscardedPackets   = "playback.demuxer.discarded_packets"
	DeltaStatNameDroppedPackets     = "playback.video.dropped_packets"
	DeltaStatNameTextureCreations   = "playback.video.texture_creations"
	DeltaStatNameVideoFrameRate     = "playback.video.frame_rate"
)

const (
	EventNameSessionClosed astikit.EventName = "playback.session.closed"
	EventNameSessionEnded  astikit.EventName = "playback.session.ended"
	EventNameSessionFailed astikit.EventName = "playback.session.failed"
	EventNameSessionOpened astikit.EventName = "playback.session.opened"
)

const (
	defaultAudioChannels = 2

	// Device buffer size in sample frames, also used to size the initial audio buffer
	defaultAudioSamples = 8192

	// Bytes per sample of the device format (S16)
	deviceBytesPerSample = 2
)

var deviceSampleFormat = astiav.SampleFormatS16

func defaultChannelLayout(channels int) astiav.ChannelLayout {
	switch channels {
	case 1:
		return astiav.ChannelLayoutMono
	case 3:
		return astiav.ChannelLayoutSurround
	case 4:
		return astiav.ChannelLayoutQuad
	case 5:
		return astiav.ChannelLayout5Point0
	case 6:
		return astiav.ChannelLayout5Point1
	case 7:
		return astiav.ChannelLayout6Point1
	case 8:
		return astiav.ChannelLayout7Point1
	default:
		return astiav.ChannelLayoutStereo
	}
}
