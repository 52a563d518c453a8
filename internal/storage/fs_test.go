package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempStore(t)
	content := []byte(`{"id":"groceries","title":"Groceries","groups":[]}`)
	if err := s.Write(DocPath("groceries"), content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("groceries.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempStore(t)
	if err := s.Write("archive/2025/old.json", []byte(`{}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("archive/2025/old.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "{}" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("del.json", []byte(`{}`))
	if err := s.Delete("del.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.json"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestMove(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("old.json", []byte(`{"id":"old"}`))
	if err := s.Move("old.json", "archive/new.json"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read("archive/new.json")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != `{"id":"old"}` {
		t.Errorf("content = %q", got)
	}
	if _, err := s.Read("old.json"); err == nil {
		t.Error("old path should not exist")
	}
}

func TestListReadsDocumentHeaders(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("a.json", []byte(`{"id":"a","title":"Alpha","groups":[]}`))
	_ = s.Write("b.json", []byte(`{"title":"No ID"}`))
	_ = s.Write("readme.txt", []byte("not a document"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	byID := map[string]string{}
	for _, m := range items {
		byID[m.ID] = m.Title
		if m.Checksum == "" {
			t.Errorf("missing checksum for %s", m.ID)
		}
	}
	if byID["a"] != "Alpha" {
		t.Errorf("title for a = %q", byID["a"])
	}
	// The id always comes from the path stem.
	if got := byID["b"]; got != "No ID" {
		t.Errorf("title for b = %q (ids: %v)", got, byID)
	}
}

func TestDocPathRoundTrip(t *testing.T) {
	if got := DocPath("groceries"); got != "groceries.json" {
		t.Errorf("DocPath = %q", got)
	}
	if got := DocID("groceries.json"); got != "groceries" {
		t.Errorf("DocID = %q", got)
	}
	if got := DocID("notes.txt"); got != "" {
		t.Errorf("DocID for non-document = %q", got)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempStore(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.json",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	// Verify that if we read during a write the old content is intact
	// (the rename is atomic on POSIX).
	s := tempStore(t)
	original := []byte(`{"id":"x","title":"one"}`)
	_ = s.Write("atomic.json", original)

	updated := []byte(`{"id":"x","title":"two"}`)
	if err := s.Write("atomic.json", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.json")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	// Confirm no leftover temp files.
	matches, _ := filepath.Glob(filepath.Join(s.root, ".tavle-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/tavle-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "tavle-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
