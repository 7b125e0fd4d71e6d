package playback

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
)

type DictionaryOptions struct {
	Flags             astiav.DictionaryFlags
	KeyValueSeparator string
	PairsSeparator    string
	String            string
	Values            map[string]string
}

func NewCommaDictionaryOptions(format string, args ...interface{}) DictionaryOptions {
	return DictionaryOptions{
		KeyValueSeparator: "=",
		PairsSeparator:    ",",
		String:            fmt.Sprintf(format, args...),
	}
}

// Returns a nil dictionary when there are no options. Caller must free a non-nil dictionary.
func (o DictionaryOptions) dictionary() (d *astiav.Dictionary, err error) {
	// Nothing to do
	if o.String == "" && len(o.Values) == 0 {
		return
	}

	// Create dictionary
	d = astiav.NewDictionary()

	// Make sure to free dictionary on error
	defer func() {
		if err != nil {
			d.Free()
			d = nil
		}
	}()

	// Parse string
	if o.String != "" {
		if err = d.ParseString(o.String, o.KeyValueSeparator, o.PairsSeparator, o.Flags); err != nil {
			err = fmt.Errorf("playback: parsing dictionary string failed: %w", err)
			return
		}
	}

	// Set values in a deterministic order
	ks := make([]string, 0, len(o.Values))
	for k := range o.Values {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	for _, k := range ks {
		if err = d.Set(k, o.Values[k], o.Flags); err != nil {
			err = fmt.Errorf("playback: setting dictionary key %s failed: %w", k, err)
			return
		}
	}
	return
}

// Maximum number of packets kept for a consumed stream while another one is being read
const maxPendingPackets = 1024

type demuxer struct {
	audioStreamIndex int
	cs               *sessionCumulativeStats
	ii               *astiav.IOInterrupter
	m                sync.Mutex               // Locks pending and r
	pending          map[int][]*astiav.Packet // Indexed by consumed stream index
	r                demuxerReader
	ss               []Stream
	videoStreamIndex int
}

// Opening the input is interrupted when ctx is cancelled
func openDemuxer(ctx context.Context, c *astikit.Closer, cs *sessionCumulativeStats, path string, o DictionaryOptions) (d *demuxer, err error) {
	// Create demuxer
	d = &demuxer{
		audioStreamIndex: -1,
		cs:               cs,
		pending:          make(map[int][]*astiav.Packet),
		videoStreamIndex: -1,
	}

	// Make sure pending packets are freed
	c.Add(d.freePending)

	// Create dictionary
	dict, err := o.dictionary()
	if err != nil {
		err = fmt.Errorf("playback: creating dictionary failed: %w", err)
		return
	}
	if dict != nil {
		defer dict.Free()
	}

	// Create reader
	if d.r = newDemuxerReader(); d.r == nil {
		err = fmt.Errorf("playback: allocating demuxer reader failed: %w", ErrAllocationFailure)
		return
	}
	c.Add(d.r.Free)

	// Set io interrupter
	d.ii = astiav.NewIOInterrupter()
	d.r.SetIOInterrupter(d.ii)

	// Watch context
	if ctx != nil {
		// Create child context
		childCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		// Watch child context in a goroutine
		go func() {
			// Wait for child context to be done
			<-childCtx.Done()

			// Context error
			if ctx.Err() != nil {
				// Interrupt
				d.ii.Interrupt()
			}
		}()
	}

	// Open input
	if err = d.r.OpenInput(path, nil, dict); err != nil {
		err = fmt.Errorf("playback: opening input %s failed: %w: %w", path, ErrOpenFailure, err)
		return
	}
	c.Add(d.r.CloseInput)

	// Context error
	if ctx != nil && ctx.Err() != nil {
		err = fmt.Errorf("playback: context error: %w: %w", ErrOpenFailure, ctx.Err())
		return
	}

	// Find stream information
	if err = d.r.FindStreamInfo(nil); err != nil {
		err = fmt.Errorf("playback: finding stream info failed: %w: %w", ErrOpenFailure, err)
		return
	}

	// Loop through streams
	for _, s := range d.r.Streams() {
		// Create stream
		st := newStream(s)
		d.ss = append(d.ss, st)

		// Only the first stream of each media type is used
		switch st.MediaType {
		case astiav.MediaTypeAudio:
			if d.audioStreamIndex == -1 {
				d.audioStreamIndex = st.Index
			}
		case astiav.MediaTypeVideo:
			if d.videoStreamIndex == -1 {
				d.videoStreamIndex = st.Index
			}
		}
	}

	// Video is mandatory
	if d.videoStreamIndex == -1 {
		err = ErrNoVideoStream
		return
	}
	return
}

func (d *demuxer) stream(index int) (Stream, bool) {
	for _, s := range d.ss {
		if s.Index == index {
			return s, true
		}
	}
	return Stream{}, false
}

// Streams read by a decode path must be consumed so that their packets are kept
// while another stream is being read
func (d *demuxer) consume(streamIndex int) {
	// Lock
	d.m.Lock()
	defer d.m.Unlock()

	// Consume
	if _, ok := d.pending[streamIndex]; !ok {
		d.pending[streamIndex] = nil
	}
}

func (d *demuxer) release(streamIndex int) {
	// Lock
	d.m.Lock()
	defer d.m.Unlock()

	// Free packets
	for _, p := range d.pending[streamIndex] {
		p.Free()
	}
	delete(d.pending, streamIndex)
}

func (d *demuxer) freePending() {
	// Lock
	d.m.Lock()
	defer d.m.Unlock()

	// Free packets
	for idx, ps := range d.pending {
		for _, p := range ps {
			p.Free()
		}
		delete(d.pending, idx)
	}
}

// Reads packets until one belongs to the provided stream. Packets of other consumed
// streams are kept for later, packets of other streams are discarded.
func (d *demuxer) readPacket(p *astiav.Packet, streamIndex int) error {
	// Lock
	d.m.Lock()
	defer d.m.Unlock()

	// A packet has been kept for this stream
	if ps := d.pending[streamIndex]; len(ps) > 0 {
		p.MoveRef(ps[0])
		ps[0].Free()
		d.pending[streamIndex] = ps[1:]
		return nil
	}

	// Loop
	for {
		// Read frame
		if err := d.r.ReadFrame(p); err != nil {
			return err
		}

		// Packet belongs to the stream
		idx := p.StreamIndex()
		if idx == streamIndex {
			return nil
		}

		// Packet belongs to another consumed stream
		if ps, ok := d.pending[idx]; ok {
			// Queue is full, drop the oldest packet
			if len(ps) >= maxPendingPackets {
				ps[0].Free()
				ps = ps[1:]
				atomic.AddUint64(&d.cs.discardedPackets, 1)
			}

			// Keep
			if k := astiav.AllocPacket(); k != nil {
				k.MoveRef(p)
				d.pending[idx] = append(ps, k)
				continue
			}
			d.pending[idx] = ps
		}

		// Discard
		p.Unref()
		atomic.AddUint64(&d.cs.discardedPackets, 1)
	}
}

type demuxerReader interface {
	Class() *astiav.Class
	CloseInput()
	FindStreamInfo(d *astiav.Dictionary) error
	Free()
	OpenInput(url string, fmt *astiav.InputFormat, d *astiav.Dictionary) error
	ReadFrame(p *astiav.Packet) error
	SetIOInterrupter(i *astiav.IOInterrupter)
	Streams() []*astiav.Stream
}

var newDemuxerReader = func() demuxerReader {
	if fc := astiav.AllocFormatContext(); fc != nil {
		return fc
	}
	return nil
}
