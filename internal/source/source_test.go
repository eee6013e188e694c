package source

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

func TestNotebooks(t *testing.T) {
	fs := memfs.New()
	for _, p := range []string{
		"/notes/a.ipynb",
		"/notes/B.IPYNB",
		"/notes/readme.md",
		"/notes/.ipynb_checkpoints/a-checkpoint.ipynb",
		"/notes/_drafts/c.ipynb",
		"/notes/_d.ipynb",
		"/notes/math/algebra.ipynb",
	} {
		if err := util.WriteFile(fs, p, []byte("{}"), 0o644); err != nil {
			t.Fatalf("WriteFile(%s) failed: %v", p, err)
		}
	}

	paths, err := Notebooks(fs, "/notes")
	if err != nil {
		t.Fatalf("Notebooks() returned an unexpected error: %v", err)
	}

	expected := []string{"/notes/B.IPYNB", "/notes/a.ipynb", "/notes/math/algebra.ipynb"}
	if len(paths) != len(expected) {
		t.Fatalf("Expected %v, but got %v", expected, paths)
	}
	for i := range expected {
		if paths[i] != expected[i] {
			t.Errorf("Expected path %d to be '%s', but got '%s'", i, expected[i], paths[i])
		}
	}
}

func TestNotebooksUnderHiddenRoot(t *testing.T) {
	fs := memfs.New()
	util.WriteFile(fs, "/.local/nb/a.ipynb", []byte("{}"), 0o644)

	paths, err := Notebooks(fs, "/.local/nb")
	if err != nil {
		t.Fatalf("Notebooks() returned an unexpected error: %v", err)
	}
	if len(paths) != 1 {
		t.Errorf("Expected hidden components above the root to be ignored, but got %v", paths)
	}
}

func TestIdentify(t *testing.T) {
	t.Run("memfs falls back to a stable path hash", func(t *testing.T) {
		fs := memfs.New()
		util.WriteFile(fs, "/a.ipynb", []byte("{}"), 0o644)

		id1, ok, err := Identify(fs, "/a.ipynb")
		if err != nil || !ok {
			t.Fatalf("Identify() = %d, %v, %v", id1, ok, err)
		}
		id2, _, _ := Identify(fs, "/a.ipynb")
		if id1 != id2 || id1 < 0 {
			t.Errorf("Expected a stable non-negative id, but got %d and %d", id1, id2)
		}
	})

	t.Run("missing document", func(t *testing.T) {
		_, ok, err := Identify(memfs.New(), "/nope.ipynb")
		if err != nil || ok {
			t.Errorf("Expected ok=false and no error, but got ok=%v err=%v", ok, err)
		}
	})
}

func TestRead(t *testing.T) {
	fs := memfs.New()
	util.WriteFile(fs, "/a.ipynb", []byte(`{"cells":[]}`), 0o644)

	doc, err := Read(fs, "/a.ipynb")
	if err != nil {
		t.Fatalf("Read() returned an unexpected error: %v", err)
	}
	if string(doc.Data) != `{"cells":[]}` || doc.Checksum == "" || doc.Path != "/a.ipynb" {
		t.Errorf("Unexpected document %+v", doc)
	}
}

func TestDirTags(t *testing.T) {
	tags := DirTags("/home/u/notes/math/a.ipynb")
	for _, expected := range []string{"home", "u", "notes", "math"} {
		if !tags.Has(expected) {
			t.Errorf("Expected tag '%s' in %v", expected, tags)
		}
	}
	if tags.Has("a.ipynb") {
		t.Errorf("Expected file name not to be a tag, but got %v", tags)
	}
}
