package editor_test

import (
	"testing"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
)

func TestHistory_UndoRedoRoundTrip(t *testing.T) {
	h := editor.NewHistory(0)
	d0 := heroTextStats()
	d1 := d0.MoveBlock("b", editor.DirectionUp)

	h.Snapshot(d0)
	got, ok := h.Undo(d1)
	if !ok {
		t.Fatal("undo reported nothing to undo")
	}
	assertIDs(t, got, "a", "b", "c")

	got, ok = h.Redo(got)
	if !ok {
		t.Fatal("redo reported nothing to redo")
	}
	assertIDs(t, got, "b", "a", "c")
}

func TestHistory_EmptyStacks(t *testing.T) {
	h := editor.NewHistory(0)
	d := heroTextStats()

	if got, ok := h.Undo(d); ok || !got.SameOrder(d) {
		t.Error("undo on empty history changed the document")
	}
	if got, ok := h.Redo(d); ok || !got.SameOrder(d) {
		t.Error("redo on empty history changed the document")
	}
	if h.CanUndo() || h.CanRedo() {
		t.Error("empty history reports available steps")
	}
}

func TestHistory_SnapshotClearsRedo(t *testing.T) {
	h := editor.NewHistory(0)
	d0 := heroTextStats()
	d1 := d0.RemoveBlock("c")

	h.Snapshot(d0)
	cur, _ := h.Undo(d1)
	if !h.CanRedo() {
		t.Fatal("expected redo after undo")
	}

	h.Snapshot(cur)
	if h.CanRedo() {
		t.Fatal("snapshot did not clear redo")
	}
	after := cur.MoveBlock("a", editor.DirectionDown)
	if got, ok := h.Redo(after); ok || !got.SameOrder(after) {
		t.Error("redo after new snapshot should be a no-op")
	}
}

func TestHistory_CapEvictsOldest(t *testing.T) {
	h := editor.NewHistory(0)
	d := editor.NewDocument()
	ids := seqIDs()

	// 51 snapshots; only the 50 most recent survive.
	var docs []editor.Document
	for i := 0; i <= editor.MaxHistory; i++ {
		docs = append(docs, d)
		h.Snapshot(d)
		d, _ = d.AddBlock(domain.BlockTypeText, ids)
	}
	past, future := h.Depth()
	if past != editor.MaxHistory || future != 0 {
		t.Fatalf("depth = (%d, %d), want (%d, 0)", past, future, editor.MaxHistory)
	}

	cur := d
	for i := 0; i < editor.MaxHistory; i++ {
		var ok bool
		cur, ok = h.Undo(cur)
		if !ok {
			t.Fatalf("undo %d failed", i+1)
		}
	}
	if h.CanUndo() {
		t.Fatal("more than MaxHistory undo steps available")
	}
	if cur.Len() != 1 || !cur.SameOrder(docs[1]) {
		t.Errorf("oldest reachable state has %d blocks, want 1", cur.Len())
	}
}

func TestHistory_UndoNTimesRestoresInitial(t *testing.T) {
	h := editor.NewHistory(0)
	initial := heroTextStats()
	cur := initial

	ops := []func(editor.Document) editor.Document{
		func(d editor.Document) editor.Document { return d.MoveBlock("c", editor.DirectionUp) },
		func(d editor.Document) editor.Document { return d.RemoveBlock("a") },
		func(d editor.Document) editor.Document { return d.ReorderBlock("c", "b", editor.PositionAfter) },
	}
	for _, op := range ops {
		h.Snapshot(cur)
		cur = op(cur)
	}
	for range ops {
		cur, _ = h.Undo(cur)
	}
	assertIDs(t, cur, "a", "b", "c")
}

func TestHistory_Reset(t *testing.T) {
	h := editor.NewHistory(3)
	h.Snapshot(heroTextStats())
	h.Reset()
	if h.CanUndo() || h.CanRedo() {
		t.Error("reset left entries behind")
	}
}
