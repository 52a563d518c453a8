package authority

import (
	"errors"
	"testing"
)

func TestDefaultIsCanonical(t *testing.T) {
	m := NewManager()
	if got := m.Get("p1", "v1"); got != Canonical {
		t.Errorf("default mode = %q, want %q", got, Canonical)
	}
	if !m.IsAuthoritative("p1", "v1", Canonical) {
		t.Error("every view is canonical by default")
	}
}

func TestSingleMarkdownSourcePerPage(t *testing.T) {
	m := NewManager()
	m.Set("p1", "viewA", MarkdownSource)
	m.Set("p1", "viewB", MarkdownSource)

	if m.IsAuthoritative("p1", "viewA", MarkdownSource) {
		t.Error("granting viewB should revoke viewA")
	}
	if !m.IsAuthoritative("p1", "viewB", MarkdownSource) {
		t.Error("viewB should hold markdown authority")
	}
	if v, ok := m.MarkdownSourceView("p1"); !ok || v != "viewB" {
		t.Errorf("MarkdownSourceView = %q,%v, want viewB,true", v, ok)
	}

	// A different page is unaffected.
	m.Set("p2", "viewC", MarkdownSource)
	if !m.IsAuthoritative("p1", "viewB", MarkdownSource) {
		t.Error("authority on p2 must not revoke p1")
	}
}

func TestSetCanonicalRevokes(t *testing.T) {
	m := NewManager()
	m.Set("p1", "viewA", MarkdownSource)
	m.Set("p1", "viewA", Canonical)
	if _, ok := m.MarkdownSourceView("p1"); ok {
		t.Error("page should have no markdown source after revoke")
	}
}

func TestGuardSuppressesReentry(t *testing.T) {
	m := NewManager()

	release, ok := m.Guard("p1", "v1")
	if !ok {
		t.Fatal("first acquisition should succeed")
	}
	if _, ok := m.Guard("p1", "v1"); ok {
		t.Error("re-entrant acquisition should be suppressed")
	}
	if !m.Guarded("p1", "v1") {
		t.Error("guard should be held")
	}

	// A different view is independent.
	release2, ok := m.Guard("p1", "v2")
	if !ok {
		t.Fatal("other view's guard should be free")
	}
	release2()

	release()
	if m.Guarded("p1", "v1") {
		t.Error("guard should be released")
	}
	if _, ok := m.Guard("p1", "v1"); !ok {
		t.Error("guard should be reacquirable after release")
	}
}

func TestGuardReleasesOnErrorPath(t *testing.T) {
	m := NewManager()

	failing := func() error {
		release, ok := m.Guard("p1", "v1")
		if !ok {
			return nil
		}
		defer release()
		return errors.New("write-back failed")
	}
	if err := failing(); err == nil {
		t.Fatal("expected error")
	}
	if m.Guarded("p1", "v1") {
		t.Error("guard leaked across an error exit")
	}
}

func TestGuardReleaseIdempotent(t *testing.T) {
	m := NewManager()
	release, _ := m.Guard("p1", "v1")
	release()
	release() // second call is a no-op, not a panic or double delete

	if _, ok := m.Guard("p1", "v1"); !ok {
		t.Error("guard should be acquirable")
	}
}

func TestDrop(t *testing.T) {
	m := NewManager()
	m.Set("p1", "v1", MarkdownSource)
	m.Guard("p1", "v1")
	m.Drop("p1")

	if _, ok := m.MarkdownSourceView("p1"); ok {
		t.Error("drop should clear authority records")
	}
	if m.Guarded("p1", "v1") {
		t.Error("drop should clear guards")
	}
}
