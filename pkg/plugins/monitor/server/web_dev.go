//go:build dev

package server

import (
	"io/fs"
	"os"
)

// Pages are read from disk so that they can be edited without rebuilding
func (p *Plugin) webFS() fs.FS {
	return os.DirFS("pkg/plugins/monitor/server/web")
}
