package service_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/pagestore"
	"pagebuilder/internal/service"
	"pagebuilder/internal/storage"
)

func newDraftStore(t *testing.T) *storage.DraftStore {
	t.Helper()
	db, err := storage.Open(storage.Options{Path: filepath.Join(t.TempDir(), "drafts.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return storage.NewDraftStore(db, 5)
}

func TestAutosave_DraftsOnlyChangedSessions(t *testing.T) {
	ctx := context.Background()
	svc, emitter := newService(t, newFileStore(t))
	drafts := newDraftStore(t)
	auto := service.NewAutosaveService(svc, drafts, emitter, "")

	clean, _ := svc.Open(ctx, "home")
	dirty, _ := svc.Open(ctx, "home")
	dirty.AddBlock(domain.BlockTypeStats)

	n, err := auto.RunOnce(ctx)
	if err != nil || n != 1 {
		t.Fatalf("first run = %d, %v", n, err)
	}
	n, _ = auto.RunOnce(ctx)
	if n != 0 {
		t.Errorf("unchanged session drafted again (%d)", n)
	}

	dirty.MoveUp(dirty.Document().IDs()[2])
	n, _ = auto.RunOnce(ctx)
	if n != 1 {
		t.Errorf("changed session not drafted (%d)", n)
	}

	list, _ := auto.ListDrafts(ctx, "home")
	if len(list) != 2 {
		t.Errorf("drafts = %d, want 2", len(list))
	}
	if len(emitter.Named(service.EventDraftSaved)) != 2 {
		t.Error("draft:saved events missing")
	}
	_ = clean
}

func TestAutosave_RestoreIsUndoable(t *testing.T) {
	ctx := context.Background()
	svc, emitter := newService(t, newFileStore(t))
	auto := service.NewAutosaveService(svc, newDraftStore(t), emitter, "")

	sess, _ := svc.Open(ctx, "home")
	sess.AddBlock(domain.BlockTypeGallery)
	d, err := auto.SaveDraft(ctx, sess.ID(), "")
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if d.Label != "manual" {
		t.Errorf("label = %q", d.Label)
	}

	sess.RemoveBlock(sess.Document().IDs()[0])
	sess.RemoveBlock(sess.Document().IDs()[0])
	if sess.Document().Len() != 1 {
		t.Fatalf("len = %d", sess.Document().Len())
	}

	if err := auto.Restore(ctx, sess.ID(), d.ID); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if sess.Document().Len() != 3 {
		t.Errorf("restored %d blocks, want 3", sess.Document().Len())
	}
	sess.Undo()
	if sess.Document().Len() != 1 {
		t.Errorf("undo after restore left %d blocks, want 1", sess.Document().Len())
	}
}

func TestAutosave_RestoreOtherPageRejected(t *testing.T) {
	ctx := context.Background()
	svc, emitter := newService(t, newFileStore(t))
	drafts := newDraftStore(t)
	auto := service.NewAutosaveService(svc, drafts, emitter, "")

	d, _ := drafts.Push(ctx, "other", "x", nil)
	sess, _ := svc.Open(ctx, "home")
	if err := auto.Restore(ctx, sess.ID(), d.ID); !errors.Is(err, service.ErrDraftPageMismatch) {
		t.Errorf("err = %v, want ErrDraftPageMismatch", err)
	}
}

func TestAutosave_InvalidSchedule(t *testing.T) {
	svc, emitter := newService(t, newFileStore(t))
	auto := service.NewAutosaveService(svc, newDraftStore(t), emitter, "not a schedule")
	if err := auto.Start(context.Background()); err == nil {
		auto.Stop()
		t.Fatal("expected an error for an invalid schedule")
	}
}

func TestWatchService_NotifiesOpenSessions(t *testing.T) {
	ctx := context.Background()
	svc, emitter := newService(t, newFileStore(t))
	w := service.NewWatchService(svc, emitter)

	w.PageChanged(ctx, "home")
	if len(emitter.Named(service.EventPageChangedExternally)) != 0 {
		t.Error("event emitted with no open session")
	}

	sess, _ := svc.Open(ctx, "home")
	w.PageChanged(ctx, "home")
	events := emitter.Named(service.EventPageChangedExternally)
	if len(events) != 1 {
		t.Fatalf("got %d events", len(events))
	}
	ids := events[0].Data.(map[string]any)["sessionIds"].([]string)
	if len(ids) != 1 || ids[0] != sess.ID() {
		t.Errorf("sessionIds = %v", ids)
	}
}

func TestAutosave_ForgetsClosedSessions(t *testing.T) {
	ctx := context.Background()
	svc, emitter := newService(t, newFileStore(t))
	auto := service.NewAutosaveService(svc, newDraftStore(t), emitter, "")

	sess, _ := svc.Open(ctx, "home")
	sess.AddBlock(domain.BlockTypeCTA)
	if n, err := auto.RunOnce(ctx); err != nil || n != 1 {
		t.Fatalf("run = %d, %v", n, err)
	}
	if got := auto.TrackedSessions(); got != 1 {
		t.Fatalf("tracked = %d, want 1", got)
	}

	if err := svc.Close(ctx, sess.ID()); err != nil {
		t.Fatal(err)
	}
	if _, err := auto.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if got := auto.TrackedSessions(); got != 0 {
		t.Errorf("tracked = %d after close, want 0", got)
	}
}

func TestAutosave_RestoreUsesSessionIDs(t *testing.T) {
	ctx := context.Background()
	n := 0
	svc := service.NewSessionService(
		pagestore.NewAdapter(newFileStore(t), nil),
		&service.MockEmitter{},
		service.SessionOptions{NewID: func() string {
			n++
			return fmt.Sprintf("blk-%d", n)
		}},
	)
	auto := service.NewAutosaveService(svc, newDraftStore(t), &service.MockEmitter{}, "")

	sess, _ := svc.Open(ctx, "home")
	d, err := auto.SaveDraft(ctx, sess.ID(), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := auto.Restore(ctx, sess.ID(), d.ID); err != nil {
		t.Fatalf("restore: %v", err)
	}
	ids := sess.Document().IDs()
	if len(ids) != 2 {
		t.Fatalf("ids = %v", ids)
	}
	for _, id := range ids {
		if !strings.HasPrefix(id, "blk-") {
			t.Errorf("restored block id %q not from the session generator", id)
		}
	}
}
