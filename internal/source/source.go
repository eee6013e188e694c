// Package source finds notebook documents on a billy filesystem and reads
// them together with their identity and checksum.
package source

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/conorfennell/nbflash/internal/domain"
	"github.com/conorfennell/nbflash/internal/knol"
)

const notebookExt = ".ipynb"

// Document is a notebook read from disk.
type Document struct {
	ID       int64
	Path     string
	Data     []byte
	Checksum string
}

// IsNotebook reports whether name has the notebook extension.
func IsNotebook(name string) bool {
	return strings.EqualFold(filepath.Ext(name), notebookExt)
}

// Notebooks lists the notebooks under root in lexical order. Files and
// directories below root whose name starts with '.' or '_' are skipped.
func Notebooks(fs billy.Filesystem, root string) ([]string, error) {
	var paths []string
	err := util.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path != root && hidden(info.Name()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() && IsNotebook(info.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return paths, nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

// Identify returns the stable identity of the document at path. It is the
// inode where the filesystem exposes one, and a hash of the path otherwise.
// A nil error with ok == false means the document does not exist.
func Identify(fs billy.Filesystem, path string) (id int64, ok bool, err error) {
	info, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return identity(info, path), true, nil
}

func identity(info os.FileInfo, path string) int64 {
	if ino, ok := inode(info); ok {
		return int64(ino)
	}
	h := fnv.New64a()
	h.Write([]byte(path))
	return int64(h.Sum64() >> 1)
}

// Read loads a document, computing its identity and checksum.
func Read(fs billy.Filesystem, path string) (*Document, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return nil, err
	}
	data, err := util.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return &Document{
		ID:       identity(info, path),
		Path:     path,
		Data:     data,
		Checksum: knol.Checksum(data),
	}, nil
}

// DirTags returns the components of the directory holding path. New files
// start out tagged with them.
func DirTags(path string) domain.Tags {
	var tags domain.Tags
	dir := filepath.Dir(filepath.Clean(path))
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		tags = tags.Add(part)
	}
	return tags
}
