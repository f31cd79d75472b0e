package storage_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(storage.Options{
		Driver: storage.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleSections() []domain.Section {
	return []domain.Section{
		{Type: "hero", Content: json.RawMessage(`{"headline":"Hi"}`), IsVisible: true},
		{Type: "cta", Content: json.RawMessage(`{"buttonText":"Go"}`), IsVisible: true},
	}
}

// ─────────────────────────────────────────────────────────────
// SQL page store
// ─────────────────────────────────────────────────────────────

func TestPageStore_CreateGetSave(t *testing.T) {
	ctx := context.Background()
	s := storage.NewPageStore(openTestDB(t))

	page := &domain.Page{ID: "home", Title: "Home", Slug: "/", IsPublished: true}
	if err := s.CreatePage(ctx, page); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetPage(ctx, "home")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Home" || !got.IsPublished || len(got.Sections) != 0 {
		t.Errorf("page = %+v", got)
	}

	if err := s.SaveSections(ctx, "home", sampleSections()); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ = s.GetPage(ctx, "home")
	if len(got.Sections) != 2 || got.Sections[0].Type != "hero" || got.Sections[1].Type != "cta" {
		t.Fatalf("sections = %+v", got.Sections)
	}
	if string(got.Sections[0].Content) != `{"headline":"Hi"}` {
		t.Errorf("content = %s", got.Sections[0].Content)
	}

	// Full replacement: a shorter list drops the rest.
	if err := s.SaveSections(ctx, "home", sampleSections()[1:]); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ = s.GetPage(ctx, "home")
	if len(got.Sections) != 1 || got.Sections[0].Type != "cta" {
		t.Errorf("sections after replace = %+v", got.Sections)
	}
}

func TestPageStore_Missing(t *testing.T) {
	ctx := context.Background()
	s := storage.NewPageStore(openTestDB(t))

	if _, err := s.GetPage(ctx, "nope"); !errors.Is(err, domain.ErrPageNotFound) {
		t.Errorf("get err = %v", err)
	}
	if err := s.SaveSections(ctx, "nope", sampleSections()); !errors.Is(err, domain.ErrPageNotFound) {
		t.Errorf("save err = %v", err)
	}
}

func TestPageStore_ListPages(t *testing.T) {
	ctx := context.Background()
	s := storage.NewPageStore(openTestDB(t))
	_ = s.CreatePage(ctx, &domain.Page{ID: "b", Title: "B"})
	_ = s.CreatePage(ctx, &domain.Page{ID: "a", Title: "A"})

	pages, err := s.ListPages(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pages) != 2 || pages[0].ID != "a" {
		t.Errorf("pages = %+v", pages)
	}
}

func TestOpen_MigrationsAreRerunnable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	for i := 0; i < 2; i++ {
		db, err := storage.Open(storage.Options{Path: path})
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		db.Close()
	}
}

// ─────────────────────────────────────────────────────────────
// Draft store
// ─────────────────────────────────────────────────────────────

func TestDraftStore_PushListGet(t *testing.T) {
	ctx := context.Background()
	s := storage.NewDraftStore(openTestDB(t), 0)

	first, err := s.Push(ctx, "home", "autosave", sampleSections())
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	second, _ := s.Push(ctx, "home", "autosave", sampleSections()[:1])

	drafts, err := s.List(ctx, "home")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(drafts) != 2 || drafts[0].ID != second.ID || drafts[1].ID != first.ID {
		t.Fatalf("drafts = %+v", drafts)
	}

	got, err := s.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Sections) != 2 || got.Sections[1].Type != "cta" {
		t.Errorf("sections = %+v", got.Sections)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, storage.ErrDraftNotFound) {
		t.Errorf("missing err = %v", err)
	}
}

func TestDraftStore_PrunesOldest(t *testing.T) {
	ctx := context.Background()
	s := storage.NewDraftStore(openTestDB(t), 3)

	var ids []string
	for i := 0; i < 5; i++ {
		d, err := s.Push(ctx, "home", fmt.Sprintf("rev %d", i), sampleSections())
		if err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
		ids = append(ids, d.ID)
	}
	_, _ = s.Push(ctx, "other", "x", nil)

	drafts, _ := s.List(ctx, "home")
	if len(drafts) != 3 {
		t.Fatalf("kept %d drafts, want 3", len(drafts))
	}
	if drafts[2].ID != ids[2] {
		t.Errorf("oldest kept = %s, want %s", drafts[2].ID, ids[2])
	}

	if err := s.Clear(ctx, "home"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	drafts, _ = s.List(ctx, "home")
	other, _ := s.List(ctx, "other")
	if len(drafts) != 0 || len(other) != 1 {
		t.Errorf("after clear: home=%d other=%d", len(drafts), len(other))
	}
}

// ─────────────────────────────────────────────────────────────
// File page store
// ─────────────────────────────────────────────────────────────

func TestFilePageStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewFilePageStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CreatePage(ctx, &domain.Page{ID: "home", Title: "Home"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreatePage(ctx, &domain.Page{ID: "home"}); err == nil {
		t.Error("duplicate create succeeded")
	}
	if err := s.SaveSections(ctx, "home", sampleSections()); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.GetPage(ctx, "home")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Sections) != 2 {
		t.Errorf("sections = %+v", got.Sections)
	}
	if _, err := s.GetPage(ctx, "../etc"); err == nil {
		t.Error("path traversal id accepted")
	}
	if _, err := s.GetPage(ctx, "nope"); !errors.Is(err, domain.ErrPageNotFound) {
		t.Errorf("missing err = %v", err)
	}
}

func TestFilePageStore_WatchReportsExternalWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	s, _ := storage.NewFilePageStore(dir)
	_ = s.CreatePage(ctx, &domain.Page{ID: "home", Title: "Home"})

	changed := make(chan string, 8)
	if err := s.Watch(ctx, func(id string) { changed <- id }); err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer s.Close()

	external := []byte(`{"id":"home","title":"Edited elsewhere","sections":[]}`)
	if err := os.WriteFile(filepath.Join(dir, "home.json"), external, 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case id := <-changed:
		if id != "home" {
			t.Errorf("changed id = %q", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification for an external write")
	}
}
