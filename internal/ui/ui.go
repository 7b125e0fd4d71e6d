// Package ui is a terminal media browser: it lists media files, plays the selected one
// while previewing its frames as ASCII art, and goes back to the browser on ESC or once
// the file has ended.
package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/asticode/go-astikit"
	"github.com/asticode/go-astiplayer/pkg/player"
	tea "github.com/charmbracelet/bubbletea"
)

type Options struct {
	Dir         string
	Logger      astikit.StdLogger
	Player      *player.Player
	Snapshotter Snapshotter
}

// Run blocks until the user quits or ctx is done
func Run(ctx context.Context, o Options) error {
	// Create program
	p := tea.NewProgram(NewModel(ModelOptions{
		Dir:         o.Dir,
		Logger:      o.Logger,
		Player:      o.Player,
		Snapshotter: o.Snapshotter,
	}), tea.WithAltScreen(), tea.WithContext(ctx))

	// Listen to player
	r := o.Player.On(player.EventNamePlaybackStopped, func(payload interface{}) (delete bool) {
		path, _ := payload.(string)
		p.Send(PlaybackStoppedMsg{Path: path})
		return
	})
	defer r()

	// Run
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("ui: running program failed: %w", err)
	}
	return nil
}
