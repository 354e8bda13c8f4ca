package files

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateMedia(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "movie.mp4")
	if err := os.WriteFile(path, []byte("not really a movie"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := ValidateMedia(path)
	if err != nil {
		t.Fatalf("Expected valid file, got %v", err)
	}
	if info.Name != "movie.mp4" {
		t.Errorf("Expected name movie.mp4, got %s", info.Name)
	}
	if info.Size != 18 {
		t.Errorf("Expected size 18, got %d", info.Size)
	}
	if info.Type != "video/mp4" || !info.Playable() {
		t.Errorf("Expected playable video/mp4, got %s", info.Type)
	}
}

func TestValidateMediaRejects(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.mkv")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	cases := map[string]string{
		"":                             "no file specified",
		filepath.Join(dir, "nope.mp4"): "does not exist",
		dir:                            "is a directory",
		empty:                          "file is empty",
	}
	for path, want := range cases {
		_, err := ValidateMedia(path)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("ValidateMedia(%q): expected error containing %q, got %v", path, want, err)
		}
	}
}

func TestUnknownExtensionIsOctetStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.zzzunknown")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := ValidateMedia(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Type != "application/octet-stream" || info.Playable() {
		t.Errorf("Expected non-playable octet-stream, got %s", info.Type)
	}
}
