package player

import (
	"context"

	"github.com/asticode/go-astikit"
)

// Plugin is initialized when the player is created and started when the player starts.
// Resources added to the closer are released when the player closes.
type Plugin interface {
	Init(ctx context.Context, c *astikit.Closer, p *Player) error
	Metadata() Metadata
	Start(ctx context.Context, tc astikit.TaskCreator)
}

type Metadata struct {
	Description string `json:"description,omitempty"`
	Name        string `json:"name,omitempty"`
}
