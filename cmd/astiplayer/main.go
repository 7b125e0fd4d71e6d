package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/asticode/go-astilog"
	"github.com/asticode/go-astiplayer/internal/ui"
	"github.com/asticode/go-astiplayer/pkg/devices/miniaudio"
	"github.com/asticode/go-astiplayer/pkg/devices/oto"
	"github.com/asticode/go-astiplayer/pkg/playback"
	"github.com/asticode/go-astiplayer/pkg/player"
	"github.com/asticode/go-astiplayer/pkg/plugins/monitor/replay"
	"github.com/asticode/go-astiplayer/pkg/plugins/monitor/server"
	"github.com/asticode/go-astiplayer/pkg/stats/psutil"
	"github.com/asticode/go-astiplayer/pkg/surfaces/rgba"
)

var (
	audio       = flag.String("a", "miniaudio", "audio backend: miniaudio, oto or none")
	dir         = flag.String("d", ".", "directory browsed by the terminal ui")
	input       = flag.String("i", "", "input path, played right away")
	logPath     = flag.String("log", "", "log file path, defaults to a temporary file when the terminal ui is enabled")
	monitorAddr = flag.String("m", "", "monitor server address, disabled when empty")
	recordPath  = flag.String("r", "", "path of a file monitoring deltas are recorded in, disabled when empty")
	snapshot    = flag.String("s", "", "path of a png file the last presented frame is written to on exit")
	tui         = flag.Bool("tui", true, "enable the terminal ui")
	verbose     = flag.Bool("v", false, "verbose libav logs")
)

func main() {
	// Parse flags
	flag.Parse()

	// Usage
	if *input == "" && !*tui {
		log.Println("Usage: <binary path> [-i <input path>] [-tui=false] [-a miniaudio|oto|none] [-m <monitor addr>]")
		return
	}

	// Terminal ui needs the terminal for itself
	if *tui && *logPath == "" {
		*logPath = filepath.Join(os.TempDir(), "astiplayer.log")
	}

	// Create logger
	l := astilog.New(astilog.Configuration{
		AppName:  "astiplayer",
		Filename: *logPath,
	})
	defer l.Close()

	// Create psutil delta stat
	ds, err := psutil.New()
	if err != nil {
		l.Error(fmt.Errorf("main: creating psutil delta stat failed: %w", err))
		return
	}

	// Create worker
	w := astikit.NewWorker(astikit.WorkerOptions{Logger: l})
	w.HandleSignals(astikit.TermSignalHandler(w.Stop))

	// Create device opener
	do, err := newDeviceOpener(*audio, l)
	if err != nil {
		l.Error(fmt.Errorf("main: creating %s device opener failed: %w", *audio, err))
		return
	}
	if c, ok := do.(interface{ Close() error }); ok {
		defer c.Close()
	}

	// Create surface
	sf := rgba.New()

	// Create plugins
	ll := astiav.LogLevelInfo
	if *verbose {
		ll = astiav.LogLevelDebug
	}
	ps := []player.Plugin{
		player.NewLogInterceptor(player.LogInterceptorOptions{
			Level: ll,
			Merge: player.LogInterceptorMergeOptions{
				AllowedCount: 5,
				Buffer:       10 * time.Second,
			},
		}),
	}
	if *monitorAddr != "" {
		ps = append(ps, server.New(server.PluginOptions{
			Addr:        *monitorAddr,
			API:         server.PluginAPIOptions{URL: "/api"},
			DeltaPeriod: 2 * time.Second,
			Push:        server.PluginPushOptions{URL: "/push"},
		}))
	}
	if *recordPath != "" {
		ps = append(ps, replay.New(replay.PluginOptions{
			DeltaPeriod: 2 * time.Second,
			Path:        *recordPath,
		}))
	}

	// Create player
	p, err := player.NewPlayer(player.PlayerOptions{
		ContextAdapters: player.PlayerContextAdaptersOptions{
			Player: func(ctx context.Context, p *player.Player) context.Context {
				return astilog.ContextWithFields(ctx, map[string]interface{}{
					"player": p.String(),
				})
			},
			Plugin: func(ctx context.Context, p *player.Player, pl player.Plugin) context.Context {
				return astilog.ContextWithFields(ctx, map[string]interface{}{
					"player": p.String(),
					"plugin": pl.Metadata().Name,
				})
			},
			Session: func(ctx context.Context, p *player.Player, s *playback.Session) context.Context {
				return astilog.ContextWithFields(ctx, map[string]interface{}{
					"player":  p.String(),
					"session": s.ID(),
				})
			},
		},
		DeltaStats: []astikit.DeltaStat{ds},
		Logger:     l,
		Metadata:   player.Metadata{Name: "astiplayer"},
		Open:       player.PlayerOpenOptions{Device: do},
		Plugins:    ps,
		Surface:    sf,
		Worker:     w,
	})
	if err != nil {
		l.Error(fmt.Errorf("main: creating player failed: %w", err))
		return
	}
	defer p.Close()

	// Write snapshot on exit
	if *snapshot != "" {
		defer writeSnapshot(sf, *snapshot, l)
	}

	// Start player
	if err = p.Start(w.Context()); err != nil {
		l.Error(fmt.Errorf("main: starting player failed: %w", err))
		return
	}

	// Play input
	if *input != "" {
		// Without terminal ui, stop once input has been played
		if !*tui {
			p.On(player.EventNamePlaybackStopped, func(payload interface{}) (delete bool) {
				w.Stop()
				return true
			})
		}

		// Play
		if err = p.Play(*input); err != nil {
			l.Error(fmt.Errorf("main: playing %s failed: %w", *input, err))
			if !*tui {
				return
			}
		}
	}

	// Run terminal ui
	if *tui {
		w.NewTask().Do(func() {
			// Stop worker once the terminal ui is closed
			defer w.Stop()

			// Run
			if err := ui.Run(w.Context(), ui.Options{
				Dir:         *dir,
				Logger:      l,
				Player:      p,
				Snapshotter: sf,
			}); err != nil {
				l.Error(fmt.Errorf("main: running terminal ui failed: %w", err))
			}
		})
	}

	// Wait
	w.Wait()
}

func newDeviceOpener(name string, l astikit.StdLogger) (playback.AudioDeviceOpener, error) {
	switch name {
	case "miniaudio":
		return miniaudio.NewOpener(miniaudio.OpenerOptions{Logger: l})
	case "oto":
		return oto.NewOpener(oto.OpenerOptions{Logger: l}), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("main: unknown audio backend %s", name)
	}
}

func writeSnapshot(sf *rgba.Surface, path string, l astikit.SeverityLogger) {
	// Create file
	f, err := os.Create(path)
	if err != nil {
		l.Error(fmt.Errorf("main: creating %s failed: %w", path, err))
		return
	}
	defer f.Close()

	// Write
	if err = sf.WritePNG(f); err != nil {
		l.Error(fmt.Errorf("main: writing snapshot to %s failed: %w", path, err))
		return
	}
	l.Infof("main: snapshot written to %s", path)
}
