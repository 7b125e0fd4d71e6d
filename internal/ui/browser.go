package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/asticode/go-astiplayer/pkg/player"
)

type entry struct {
	dir  bool
	name string
}

func (e entry) String() string {
	if e.dir {
		return e.name + "/"
	}
	return e.name
}

var readDir = os.ReadDir

// listDir returns the sub directories then the media files of dir, both sorted by name.
// Hidden entries are skipped and a parent entry is added unless dir is the root.
func listDir(dir string) (es []entry, err error) {
	// Read
	des, err := readDir(dir)
	if err != nil {
		err = fmt.Errorf("ui: reading dir %s failed: %w", dir, err)
		return
	}

	// Loop through entries
	var dirs, files []entry
	for _, de := range des {
		// Hidden
		if strings.HasPrefix(de.Name(), ".") {
			continue
		}

		// Dir
		if de.IsDir() {
			dirs = append(dirs, entry{dir: true, name: de.Name()})
			continue
		}

		// Media file
		if player.IsMediaFile(de.Name()) {
			files = append(files, entry{name: de.Name()})
		}
	}

	// Sort
	sort.Slice(dirs, func(i, j int) bool { return strings.ToLower(dirs[i].name) < strings.ToLower(dirs[j].name) })
	sort.Slice(files, func(i, j int) bool { return strings.ToLower(files[i].name) < strings.ToLower(files[j].name) })

	// Parent
	if filepath.Dir(dir) != dir {
		es = append(es, entry{dir: true, name: ".."})
	}
	es = append(es, dirs...)
	es = append(es, files...)
	return
}
