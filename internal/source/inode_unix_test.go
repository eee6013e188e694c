//go:build unix

package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"
)

func TestIdentifySurvivesRename(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.ipynb")
	if err := os.WriteFile(a, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs := osfs.New("/")

	before, ok, err := Identify(fs, a)
	if err != nil || !ok {
		t.Fatalf("Identify() = %d, %v, %v", before, ok, err)
	}

	b := filepath.Join(dir, "b.ipynb")
	if err := os.Rename(a, b); err != nil {
		t.Fatal(err)
	}
	after, _, _ := Identify(fs, b)
	if before != after {
		t.Errorf("Expected identity to survive a rename, but got %d and %d", before, after)
	}
}
