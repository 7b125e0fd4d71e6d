package playback

import (
	"sync/atomic"

	"github.com/asticode/go-astikit"
)

type sessionCumulativeStats struct {
	audioBufferGrowths uint64
	audioBytes         uint64
	discardedPackets   uint64
	droppedPackets     uint64
	textureCreations   uint64
	underruns          uint64
	videoFrames        uint64
}

type SessionCumulativeStats struct {
	AudioBufferGrowths uint64 `json:"audio_buffer_growths"`
	AudioBytes         uint64 `json:"audio_bytes"`
	DiscardedPackets   uint64 `json:"discarded_packets"`
	DroppedPackets     uint64 `json:"dropped_packets"`
	TextureCreations   uint64 `json:"texture_creations"`
	Underruns          uint64 `json:"underruns"`
	VideoFrames        uint64 `json:"video_frames"`
}

func (s *Session) CumulativeStats() SessionCumulativeStats {
	return SessionCumulativeStats{
		AudioBufferGrowths: atomic.LoadUint64(&s.cs.audioBufferGrowths),
		AudioBytes:         atomic.LoadUint64(&s.cs.audioBytes),
		DiscardedPackets:   atomic.LoadUint64(&s.cs.discardedPackets),
		DroppedPackets:     atomic.LoadUint64(&s.cs.droppedPackets),
		TextureCreations:   atomic.LoadUint64(&s.cs.textureCreations),
		Underruns:          atomic.LoadUint64(&s.cs.underruns),
		VideoFrames:        atomic.LoadUint64(&s.cs.videoFrames),
	}
}

func (s *Session) DeltaStats() []astikit.DeltaStat {
	return []astikit.DeltaStat{
		{
			Metadata: astikit.DeltaStatMetadata{
				Description: "Number of times the audio buffer had to grow",
				Label:       "Audio buffer growths",
				Name:        DeltaStatNameAudioBufferGrowths,
				Unit:        "g",
			},
			Valuer: astikit.NewAtomicUint64CumulativeDeltaStat(&s.cs.audioBufferGrowths),
		},
		{
			Metadata: astikit.DeltaStatMetadata{
				Description: "Number of audio bytes produced per second",
				Label:       "Audio byte rate",
				Name:        DeltaStatNameAudioByteRate,
				Unit:        "Bps",
			},
			Valuer: astikit.NewAtomicUint64RateDeltaStat(&s.cs.audioBytes),
		},
		{
			Metadata: astikit.DeltaStatMetadata{
				Description: "Number of device callbacks that couldn't be filled entirely",
				Label:       "Audio underruns",
				Name:        DeltaStatNameAudioUnderruns,
				Unit:        "u",
			},
			Valuer: astikit.NewAtomicUint64CumulativeDeltaStat(&s.cs.underruns),
		},
		{
			Metadata: astikit.DeltaStatMetadata{
				Description: "Number of packets read for a stream but belonging to another one",
				Label:       "Discarded packets",
				Name:        DeltaStatNameDiscardedPackets,
				Unit:        "p",
			},
			Valuer: astikit.NewAtomicUint64CumulativeDeltaStat(&s.cs.discardedPackets),
		},
		{
			Metadata: astikit.DeltaStatMetadata{
				Description: "Number of video packets dropped because the decoder stayed busy",
				Label:       "Dropped packets",
				Name:        DeltaStatNameDroppedPackets,
				Unit:        "p",
			},
			Valuer: astikit.NewAtomicUint64CumulativeDeltaStat(&s.cs.droppedPackets),
		},
		{
			Metadata: astikit.DeltaStatMetadata{
				Description: "Number of times the presentation texture was created",
				Label:       "Texture creations",
				Name:        DeltaStatNameTextureCreations,
				Unit:        "t",
			},
			Valuer: astikit.NewAtomicUint64CumulativeDeltaStat(&s.cs.textureCreations),
		},
		{
			Metadata: astikit.DeltaStatMetadata{
				Description: "Number of video frames presented per second",
				Label:       "Video frame rate",
				Name:        DeltaStatNameVideoFrameRate,
				Unit:        "fps",
			},
			Valuer: astikit.NewAtomicUint64RateDeltaStat(&s.cs.videoFrames),
		},
	}
}
