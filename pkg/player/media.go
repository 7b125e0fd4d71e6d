package player

import (
	"path/filepath"
	"strings"
)

var mediaExtensions = map[string]bool{
	".aac":  true,
	".avi":  true,
	".flv":  true,
	".m4a":  true,
	".mkv":  true,
	".mov":  true,
	".mp4":  true,
	".mpg":  true,
	".ogv":  true,
	".opus": true,
	".spx":  true,
	".webm": true,
}

// IsMediaFile returns whether the file extension is one the player handles. Case is ignored.
func IsMediaFile(path string) bool {
	return mediaExtensions[strings.ToLower(filepath.Ext(path))]
}
