package monitorer

import (
	"context"
	"sync"
	"time"

	"github.com/asticode/go-astikit"
	"github.com/asticode/go-astiplayer/pkg/playback"
	"github.com/asticode/go-astiplayer/pkg/player"
)

type Delta struct {
	At             astikit.Timestamp      `json:"at"`
	ClosedSessions []player.SessionInfo   `json:"closed_sessions,omitempty"`
	EndedSessions  []string               `json:"ended_sessions,omitempty"`
	FailedSessions []DeltaSessionFailure  `json:"failed_sessions,omitempty"`
	NewStats       []DeltaStat            `json:"new_stats,omitempty"`
	OpenedSessions []player.SessionInfo   `json:"opened_sessions,omitempty"`
	StatValues     map[uint64]interface{} `json:"stat_values,omitempty"`
	Status         string                 `json:"status,omitempty"`
}

func newDelta() *Delta {
	return &Delta{StatValues: make(map[uint64]interface{})}
}

func (d Delta) empty() bool {
	return len(d.ClosedSessions) == 0 && len(d.EndedSessions) == 0 &&
		len(d.FailedSessions) == 0 && len(d.NewStats) == 0 &&
		len(d.OpenedSessions) == 0 && len(d.StatValues) == 0 &&
		d.Status == ""
}

func (d Delta) copy() *Delta {
	dst := newDelta()
	dst.At = d.At
	dst.ClosedSessions = copySlice(d.ClosedSessions)
	dst.EndedSessions = copySlice(d.EndedSessions)
	dst.FailedSessions = copySlice(d.FailedSessions)
	dst.NewStats = copySlice(d.NewStats)
	dst.OpenedSessions = copySlice(d.OpenedSessions)
	for k, v := range d.StatValues {
		dst.StatValues[k] = v
	}
	dst.Status = d.Status
	return dst
}

func copySlice[T any](src []T) []T {
	if len(src) == 0 {
		return nil
	}
	dst := make([]T, len(src))
	copy(dst, src)
	return dst
}

type DeltaSessionFailure struct {
	Error string `json:"error"`
	ID    string `json:"id"`
}

type DeltaStat struct {
	ID       uint64            `json:"id"`
	Metadata DeltaStatMetadata `json:"metadata"`
}

type DeltaStatMetadata struct {
	Description string `json:"description,omitempty"`
	Label       string `json:"label,omitempty"`
	Name        string `json:"name,omitempty"`
	Unit        string `json:"unit,omitempty"`
}

func newDeltaStatMetadata(i astikit.DeltaStatMetadata) DeltaStatMetadata {
	return DeltaStatMetadata{
		Description: i.Description,
		Label:       i.Label,
		Name:        i.Name,
		Unit:        i.Unit,
	}
}

// Player is what the monitorer needs from *player.Player
type Player interface {
	DeltaStats() []astikit.DeltaStat
	On(n astikit.EventName, h astikit.EventHandler) astikit.EventRemover
	SessionInfo() (player.SessionInfo, bool)
	Status() player.Status
}

var _ Player = (*player.Player)(nil)

// Monitorer gathers the player's stats and session lifecycle into deltas sent
// periodically. CatchUp returns the state a new listener needs before applying deltas.
type Monitorer struct {
	cd *Delta // Catch up delta
	d  *Delta
	ds *astikit.DeltaStater
	mc sync.Mutex // Locks cd
	md sync.Mutex // Locks d
	o  MonitorerOptions
}

type OnDelta func(d Delta)

type MonitorerOptions struct {
	OnDelta OnDelta
	Period  time.Duration
	Player  Player
}

func New(o MonitorerOptions) *Monitorer {
	// Create monitorer
	m := &Monitorer{
		cd: newDelta(),
		d:  newDelta(),
		o:  o,
	}

	// Create delta stater
	m.ds = astikit.NewDeltaStater(astikit.DeltaStaterOptions{
		OnStats: m.onStats,
		Period:  o.Period,
	})

	// Monitor player
	m.monitorPlayer()
	return m
}

func (m *Monitorer) monitorPlayer() {
	// Store status
	m.cd.Status = m.o.Player.Status().String()

	// Loop through delta stats
	for _, ds := range m.o.Player.DeltaStats() {
		// Add to stater
		s := DeltaStat{
			ID:       m.ds.Add(ds.Valuer),
			Metadata: newDeltaStatMetadata(ds.Metadata),
		}

		// Store stat
		m.update(func(d *Delta) { d.NewStats = append(d.NewStats, s) }, func(cd *Delta) { cd.NewStats = append(cd.NewStats, s) })
	}

	// Session is already open
	if i, ok := m.o.Player.SessionInfo(); ok {
		m.cd.OpenedSessions = append(m.cd.OpenedSessions, i)
	}

	// Listen to status
	for _, v := range []struct {
		n astikit.EventName
		s player.Status
	}{
		{n: player.EventNamePlayerDone, s: player.StatusDone},
		{n: player.EventNamePlayerRunning, s: player.StatusRunning},
		{n: player.EventNamePlayerStarting, s: player.StatusStarting},
		{n: player.EventNamePlayerStopping, s: player.StatusStopping},
	} {
		status := v.s.String()
		m.o.Player.On(v.n, func(payload interface{}) (delete bool) {
			m.update(func(d *Delta) { d.Status = status }, func(cd *Delta) { cd.Status = status })
			return
		})
	}

	// Listen to sessions
	m.o.Player.On(playback.EventNameSessionOpened, func(payload interface{}) (delete bool) {
		// Assert payload
		i, ok := payload.(player.SessionInfo)
		if !ok {
			return
		}

		// Store session
		m.update(func(d *Delta) { d.OpenedSessions = append(d.OpenedSessions, i) }, func(cd *Delta) { cd.OpenedSessions = append(cd.OpenedSessions, i) })
		return
	})
	m.o.Player.On(playback.EventNameSessionEnded, func(payload interface{}) (delete bool) {
		// Get session
		i, ok := m.o.Player.SessionInfo()
		if !ok {
			return
		}

		// Store session
		m.update(func(d *Delta) { d.EndedSessions = append(d.EndedSessions, i.ID) }, nil)
		return
	})
	m.o.Player.On(playback.EventNameSessionFailed, func(payload interface{}) (delete bool) {
		// Get session
		i, ok := m.o.Player.SessionInfo()
		if !ok {
			return
		}

		// Create failure
		f := DeltaSessionFailure{ID: i.ID}
		if err, ok := payload.(error); ok {
			f.Error = err.Error()
		}

		// Store failure
		m.update(func(d *Delta) { d.FailedSessions = append(d.FailedSessions, f) }, nil)
		return
	})
	m.o.Player.On(playback.EventNameSessionClosed, func(payload interface{}) (delete bool) {
		// Assert payload
		i, ok := payload.(player.SessionInfo)
		if !ok {
			return
		}

		// Store session
		m.update(func(d *Delta) { d.ClosedSessions = append(d.ClosedSessions, i) }, func(cd *Delta) {
			for idx := 0; idx < len(cd.OpenedSessions); idx++ {
				if cd.OpenedSessions[idx].ID == i.ID {
					cd.OpenedSessions = append(cd.OpenedSessions[:idx], cd.OpenedSessions[idx+1:]...)
					idx--
				}
			}
		})
		return
	})
}

// update applies fd to the next delta and fcd to the catch up delta
func (m *Monitorer) update(fd, fcd func(d *Delta)) {
	if fcd != nil {
		m.mc.Lock()
		fcd(m.cd)
		m.mc.Unlock()
	}
	if fd != nil {
		m.md.Lock()
		fd(m.d)
		m.md.Unlock()
	}
}

func (m *Monitorer) Start(ctx context.Context) {
	m.ds.Start(ctx)
}

func (m *Monitorer) Close() {
	m.ds.Stop()
}

func (m *Monitorer) onStats(stats []astikit.DeltaStatValue) {
	// Swap delta
	m.md.Lock()
	d := *m.d
	m.d = newDelta()
	m.md.Unlock()

	// Update at
	d.At = *astikit.NewTimestamp(astikit.Now())

	// Loop through stats
	m.mc.Lock()
	m.cd.StatValues = map[uint64]interface{}{}
	for _, s := range stats {
		d.StatValues[s.ID] = s.Value
		m.cd.StatValues[s.ID] = s.Value
	}
	m.mc.Unlock()

	// Callback
	if !d.empty() {
		m.o.OnDelta(d)
	}
}

func (m *Monitorer) CatchUp() Delta {
	// Lock
	m.mc.Lock()
	defer m.mc.Unlock()

	// Copy delta
	d := m.cd.copy()

	// Update at
	d.At = *astikit.NewTimestamp(astikit.Now())
	return *d
}
