package playback

import (
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
)

type DecoderOptions struct {
	// Returns the name of the decoder to use for the stream, or "" for the default one
	Name        func(s Stream) string
	ThreadCount int
	ThreadType  astiav.ThreadType
}

func openDecoder(c *astikit.Closer, s Stream, o DecoderOptions) (r decoderReader, err error) {
	// Get decoder name
	var name string
	if o.Name != nil {
		name = o.Name(s)
	}

	// Find codec
	var codec *astiav.Codec
	if name != "" {
		if codec = astiav.FindDecoderByName(name); codec == nil {
			err = fmt.Errorf("playback: no decoder found with name %s: %w", name, ErrCodecUnsupported)
			return
		}
	} else if codec = astiav.FindDecoder(s.CodecID); codec == nil {
		err = fmt.Errorf("playback: no decoder found for codec id %s: %w", s.CodecID, ErrCodecUnsupported)
		return
	}

	// Create reader
	if r = newDecoderReader(codec); r == nil {
		err = fmt.Errorf("playback: allocating decoder reader failed: %w", ErrAllocationFailure)
		return
	}

	// Make sure to free reader on error
	defer func() {
		if err != nil {
			r.Free()
			r = nil
		}
	}()

	// Set thread parameters
	if o.ThreadCount > 0 {
		r.SetThreadCount(o.ThreadCount)
	}
	if o.ThreadType != astiav.ThreadTypeUndefined {
		r.SetThreadType(o.ThreadType)
	}

	// Initialize reader with codec parameters
	if err = r.FromCodecParameters(s.cp); err != nil {
		err = fmt.Errorf("playback: initializing decoder reader with codec parameters failed: %w", err)
		return
	}

	// Open
	if err = r.Open(codec, nil); err != nil {
		err = fmt.Errorf("playback: opening decoder reader failed: %w: %w", ErrCodecUnsupported, err)
		return
	}

	// Make sure reader is freed
	c.Add(r.Free)
	return
}

type decoderReader interface {
	Class() *astiav.Class
	Free()
	FromCodecParameters(cp *astiav.CodecParameters) error
	Open(c *astiav.Codec, d *astiav.Dictionary) error
	ReceiveFrame(f *astiav.Frame) error
	SendPacket(p *astiav.Packet) error
	SetThreadCount(int)
	SetThreadType(astiav.ThreadType)
}

var newDecoderReader = func(c *astiav.Codec) decoderReader {
	if cc := astiav.AllocCodecContext(c); cc != nil {
		return cc
	}
	return nil
}
