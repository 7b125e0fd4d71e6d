//go:build !dev

package server

import (
	"embed"
	"io/fs"
)

//go:embed web
var webEmbedFS embed.FS

func (p *Plugin) webFS() fs.FS {
	f, _ := fs.Sub(webEmbedFS, "web")
	return f
}
