package player

import (
	"sync/atomic"

	"github.com/asticode/go-astikit"
)

const (
	DeltaStatNameFailedPlays = "player.plays.failed"
	DeltaStatNameHostUsage   = "player.host.usage"
	DeltaStatNamePlays       = "player.plays.succeeded"
)

type DeltaStatHostUsageValue struct {
	CPU    DeltaStatHostCPUUsageValue    `json:"cpu"`
	Memory DeltaStatHostMemoryUsageValue `json:"memory"`
}

type DeltaStatHostCPUUsageValue struct {
	Individual []float64 `json:"individual"`
	Process    *float64  `json:"process,omitempty"`
	Total      float64   `json:"total"`
}

type DeltaStatHostMemoryUsageValue struct {
	Resident uint64 `json:"resident"`
	Total    uint64 `json:"total"`
	Used     uint64 `json:"used"`
	Virtual  uint64 `json:"virtual"`
}

type playerCumulativeStats struct {
	failedPlays uint64
	plays       uint64
}

type PlayerCumulativeStats struct {
	FailedPlays uint64 `json:"failed_plays"`
	Plays       uint64 `json:"plays"`
}

func (p *Player) CumulativeStats() PlayerCumulativeStats {
	return PlayerCumulativeStats{
		FailedPlays: atomic.LoadUint64(&p.cs.failedPlays),
		Plays:       atomic.LoadUint64(&p.cs.plays),
	}
}

// DeltaStats returns the stats provided in the options followed by the player's and the
// session's own stats. The session is reused from one file to the next, so are its stats.
func (p *Player) DeltaStats() []astikit.DeltaStat {
	dst := make([]astikit.DeltaStat, len(p.dss))
	copy(dst, p.dss)
	dst = append(dst,
		astikit.DeltaStat{
			Metadata: astikit.DeltaStatMetadata{
				Description: "Number of files that couldn't be opened",
				Label:       "Failed plays",
				Name:        DeltaStatNameFailedPlays,
				Unit:        "p",
			},
			Valuer: astikit.NewAtomicUint64CumulativeDeltaStat(&p.cs.failedPlays),
		},
		astikit.DeltaStat{
			Metadata: astikit.DeltaStatMetadata{
				Description: "Number of files opened successfully",
				Label:       "Plays",
				Name:        DeltaStatNamePlays,
				Unit:        "p",
			},
			Valuer: astikit.NewAtomicUint64CumulativeDeltaStat(&p.cs.plays),
		},
	)
	return append(dst, p.s.DeltaStats()...)
}
