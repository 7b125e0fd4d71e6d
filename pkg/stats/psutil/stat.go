package psutil

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/asticode/go-astikit"
	"github.com/asticode/go-astiplayer/pkg/player"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"
)

// New creates a delta stat measuring the host's and the player process' CPU and memory
// usage. It's meant to be provided in player.PlayerOptions.DeltaStats.
func New() (astikit.DeltaStat, error) {
	// Create valuer
	vr, err := newHostUsageValuer(int32(os.Getpid()))
	if err != nil {
		return astikit.DeltaStat{}, fmt.Errorf("psutil: creating host usage valuer failed: %w", err)
	}

	// Create delta stat
	return astikit.DeltaStat{
		Metadata: astikit.DeltaStatMetadata{
			Description: "CPU and memory usage of the host and of the player process",
			Label:       "Host usage",
			Name:        player.DeltaStatNameHostUsage,
		},
		Valuer: vr,
	}, nil
}

var _ astikit.DeltaStatValuer = (*hostUsageValuer)(nil)

type hostUsageValuer struct {
	lastTimes *cpu.TimesStat
	m         sync.Mutex // Locks lastTimes
	p         *process.Process
}

func newHostUsageValuer(pid int32) (vr *hostUsageValuer, err error) {
	// Create valuer
	vr = &hostUsageValuer{}

	// Create process
	if vr.p, err = process.NewProcess(pid); err != nil {
		err = fmt.Errorf("psutil: creating process %d failed: %w", pid, err)
		return
	}
	return
}

func (vr *hostUsageValuer) Value(delta time.Duration) interface{} {
	var v player.DeltaStatHostUsageValue
	vr.cpu(&v.CPU, delta)
	vr.memory(&v.Memory)
	return v
}

// Process usage is only available from the second call on since it's computed from the
// difference between two measurements
func (vr *hostUsageValuer) cpu(v *player.DeltaStatHostCPUUsageValue, delta time.Duration) {
	// Process
	if t, err := vr.p.Times(); err == nil {
		vr.m.Lock()
		if vr.lastTimes != nil && delta > 0 {
			v.Process = astikit.Float64Ptr(((t.Total() - t.Idle) - (vr.lastTimes.Total() - vr.lastTimes.Idle)) / delta.Seconds() * 100)
		}
		vr.lastTimes = t
		vr.m.Unlock()
	}

	// Host
	if ps, err := cpu.Percent(0, true); err == nil {
		v.Individual = ps
	}
	if ps, err := cpu.Percent(0, false); err == nil && len(ps) > 0 {
		v.Total = ps[0]
	}
}

func (vr *hostUsageValuer) memory(v *player.DeltaStatHostMemoryUsageValue) {
	// Process
	if i, err := vr.p.MemoryInfo(); err == nil {
		v.Resident = i.RSS
		v.Virtual = i.VMS
	}

	// Host
	if s, err := mem.VirtualMemory(); err == nil {
		v.Total = s.Total
		v.Used = s.Used
	}
}
