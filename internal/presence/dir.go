package presence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/khrees2412/jobportal/internal/upload"
)

// DirSource replays still images from a directory as camera frames, in name
// order, wrapping at the end.
type DirSource struct {
	dir string

	mu     sync.Mutex
	frames []string
	next   int
	open   bool
}

// NewDirSource returns a source over the images in dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (d *DirSource) Open(_ context.Context) error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return err
	}
	var frames []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			frames = append(frames, filepath.Join(d.dir, e.Name()))
		}
	}
	if len(frames) == 0 {
		return fmt.Errorf("no jpg or png frames in %s", d.dir)
	}
	slices.Sort(frames)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames, d.next, d.open = frames, 0, true
	return nil
}

func (d *DirSource) Capture(_ context.Context) (string, error) {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return "", ErrNotInitialized
	}
	path := d.frames[d.next]
	d.next = (d.next + 1) % len(d.frames)
	d.mu.Unlock()

	f, err := upload.Load(path)
	if err != nil {
		return "", err
	}
	return f.DataURL(), nil
}

// IsOpen reports whether the source is currently acquired.
func (d *DirSource) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

func (d *DirSource) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	d.frames = nil
	return nil
}
