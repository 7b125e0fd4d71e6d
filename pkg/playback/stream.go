package playback

import (
	"time"

	"github.com/asticode/go-astiav"
)

type Stream struct {
	Channels    int                `json:"channels,omitempty"`
	CodecID     astiav.CodecID     `json:"codec_id"`
	FrameRate   astiav.Rational    `json:"-"`
	Height      int                `json:"height,omitempty"`
	ID          int                `json:"id"`
	Index       int                `json:"index"`
	MediaType   astiav.MediaType   `json:"media_type"`
	PixelFormat astiav.PixelFormat `json:"-"`
	SampleRate  int                `json:"sample_rate,omitempty"`
	TimeBase    astiav.Rational    `json:"-"`
	Width       int                `json:"width,omitempty"`

	cp *astiav.CodecParameters
}

func newStream(s *astiav.Stream) Stream {
	// Create stream
	cp := s.CodecParameters()
	st := Stream{
		CodecID:     cp.CodecID(),
		ID:          s.ID(),
		Index:       s.Index(),
		MediaType:   cp.MediaType(),
		PixelFormat: cp.PixelFormat(),
		TimeBase:    s.TimeBase(),
		cp:          cp,
	}

	// Frame rate
	if v := s.AvgFrameRate(); v.Num() > 0 {
		st.FrameRate = v
	} else {
		st.FrameRate = s.RFrameRate()
	}

	// Media type specifics
	switch st.MediaType {
	case astiav.MediaTypeAudio:
		st.Channels = cp.ChannelLayout().Channels()
		st.SampleRate = cp.SampleRate()
	case astiav.MediaTypeVideo:
		st.Height = cp.Height()
		st.Width = cp.Width()
	}
	return st
}

// FramePeriod is the duration between two frames, or 0 when the frame rate is unknown
func (s Stream) FramePeriod() time.Duration {
	if s.FrameRate.Num() <= 0 || s.FrameRate.Den() <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / s.FrameRate.Float64())
}
