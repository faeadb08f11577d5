package source

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cognicore/topica/pkg/topica/internalerr"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.txt"), "--- Page 1 ---\nSecond document")
	writeFile(t, filepath.Join(root, "a.html"), "<html><body><p>First</p><script>var x = 1;</script></body></html>")
	writeFile(t, filepath.Join(root, "nested", "c.txt"), "Nested document")
	writeFile(t, filepath.Join(root, "notes.pdf"), "%PDF-1.4")

	docs, err := LoadDir(root, nil)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	want := []string{"a.html", "b.txt", "nested/c.txt"}
	if strings.Join(ids, ",") != strings.Join(want, ",") {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	if strings.Contains(docs[0].Text, "var x") || !strings.Contains(docs[0].Text, "First") {
		t.Errorf("html text = %q", docs[0].Text)
	}
	if !strings.Contains(docs[1].Text, "Page 1") {
		t.Errorf("txt text should be raw, got %q", docs[1].Text)
	}
}

func TestLoadDirEmpty(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "image.png"), "x")
	if _, err := LoadDir(root, nil); !errors.Is(err, internalerr.ErrEmptyCorpus) {
		t.Errorf("LoadDir err = %v, want ErrEmptyCorpus", err)
	}
}

func TestLoadJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	content := `{"id": "one", "text": "first text"}
not json

{"text": "no id here"}
`
	writeFile(t, path, content)

	docs, err := LoadJSONL(path, nil)
	if err != nil {
		t.Fatalf("LoadJSONL: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	if docs[0].ID != "one" || docs[0].Text != "first text" {
		t.Errorf("docs[0] = %+v", docs[0])
	}
	if docs[1].ID != "line-4" {
		t.Errorf("docs[1].ID = %q, want line-4", docs[1].ID)
	}
}

func TestLoadJSONLNoRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	writeFile(t, path, "garbage\n{broken\n")
	if _, err := LoadJSONL(path, nil); !errors.Is(err, internalerr.ErrEmptyCorpus) {
		t.Errorf("LoadJSONL err = %v, want ErrEmptyCorpus", err)
	}
}

func TestLoadDispatch(t *testing.T) {
	dir := t.TempDir()
	single := filepath.Join(dir, "single.txt")
	writeFile(t, single, "only document")

	docs, err := Load(single, nil)
	if err != nil {
		t.Fatalf("Load file: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "single.txt" {
		t.Errorf("Load file = %+v", docs)
	}

	if _, err := Load(filepath.Join(dir, "missing"), nil); !errors.Is(err, internalerr.ErrIO) {
		t.Errorf("Load missing err = %v, want ErrIO", err)
	}
}
