// Package files validates the media file a peer announces to the room.
package files

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Info describes a validated media file.
type Info struct {
	Path string
	Name string
	Size int64
	Type string
}

// Playable reports whether the MIME type is audio or video.
func (i Info) Playable() bool {
	return strings.HasPrefix(i.Type, "video/") || strings.HasPrefix(i.Type, "audio/")
}

// ValidateMedia checks that path is a readable, non-empty regular file.
func ValidateMedia(path string) (Info, error) {
	if strings.TrimSpace(path) == "" {
		return Info{}, errors.New("no file specified")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Info{}, fmt.Errorf("%s: failed to get absolute path: %w", path, err)
	}

	stat, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Info{}, fmt.Errorf("%s: file does not exist", path)
		}
		return Info{}, fmt.Errorf("%s: failed to stat file: %w", path, err)
	}
	if stat.IsDir() {
		return Info{}, fmt.Errorf("%s: is a directory", path)
	}
	if !stat.Mode().IsRegular() {
		return Info{}, fmt.Errorf("%s: not a regular file", path)
	}
	if stat.Size() == 0 {
		return Info{}, fmt.Errorf("%s: file is empty", path)
	}

	f, err := os.Open(abs)
	if err != nil {
		return Info{}, fmt.Errorf("%s: cannot open file (check permissions): %w", path, err)
	}
	f.Close()

	mimeType := mime.TypeByExtension(filepath.Ext(abs))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return Info{
		Path: abs,
		Name: filepath.Base(abs),
		Size: stat.Size(),
		Type: mimeType,
	}, nil
}
