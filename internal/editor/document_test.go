package editor_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
)

// ─────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────

// seqIDs returns an IDFunc yielding new-1, new-2, ...
func seqIDs() editor.IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("new-%d", n)
	}
}

func block(id string, t domain.BlockType) domain.Block {
	return domain.Block{ID: id, Type: t, Data: domain.DefaultPayload(t)}
}

// heroTextStats builds [a:hero, b:text, c:stats].
func heroTextStats() editor.Document {
	return editor.NewDocument(
		block("a", domain.BlockTypeHero),
		block("b", domain.BlockTypeText),
		block("c", domain.BlockTypeStats),
	)
}

func assertIDs(t *testing.T, d editor.Document, want ...string) {
	t.Helper()
	got := d.IDs()
	if len(want) == 0 {
		want = []string{}
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
}

// ─────────────────────────────────────────────────────────────
// AddBlock / InsertBlock
// ─────────────────────────────────────────────────────────────

func TestAddBlock_AppendsDefaultPayload(t *testing.T) {
	d := editor.NewDocument(block("a", domain.BlockTypeHero))

	next, id := d.AddBlock(domain.BlockTypeCTA, seqIDs())
	if id != "new-1" {
		t.Fatalf("id = %q, want new-1", id)
	}
	assertIDs(t, next, "a", "new-1")
	assertIDs(t, d, "a")

	b, ok := next.Find(id)
	if !ok {
		t.Fatal("new block not found")
	}
	cta, ok := b.Data.(domain.CTAData)
	if !ok {
		t.Fatalf("payload = %T, want CTAData", b.Data)
	}
	if cta.Headline != "Ready to Join Us?" {
		t.Errorf("headline = %q", cta.Headline)
	}
}

func TestAddBlock_DefaultsAreIndependent(t *testing.T) {
	d := editor.NewDocument()
	d, first := d.AddBlock(domain.BlockTypeStats, seqIDs())
	d, second := d.AddBlock(domain.BlockTypeStats, func() string { return "other" })

	d, err := d.UpdateBlockData(first, map[string]any{
		"items": []map[string]any{{"value": "1", "label": "one"}},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	b, _ := d.Find(second)
	if got := len(b.Data.(domain.StatsData).Items); got != 4 {
		t.Errorf("second block stats items = %d, want 4", got)
	}
}

func TestAddBlock_UnknownTypeIsNoop(t *testing.T) {
	d := heroTextStats()
	next, id := d.AddBlock(domain.BlockType("video"), seqIDs())
	if id != "" {
		t.Errorf("id = %q, want empty", id)
	}
	assertIDs(t, next, "a", "b", "c")
}

func TestInsertBlock_BeforeAndAfter(t *testing.T) {
	d := heroTextStats()

	before, id := d.InsertBlock(domain.BlockTypeGallery, "b", editor.PositionBefore, seqIDs())
	assertIDs(t, before, "a", id, "b", "c")

	after, id := d.InsertBlock(domain.BlockTypeGallery, "c", editor.PositionAfter, seqIDs())
	assertIDs(t, after, "a", "b", "c", id)

	missing, id := d.InsertBlock(domain.BlockTypeGallery, "zzz", editor.PositionAfter, seqIDs())
	if id != "" {
		t.Errorf("insert next to missing target returned id %q", id)
	}
	assertIDs(t, missing, "a", "b", "c")
}

// ─────────────────────────────────────────────────────────────
// RemoveBlock / MoveBlock
// ─────────────────────────────────────────────────────────────

func TestRemoveBlock(t *testing.T) {
	d := heroTextStats()
	assertIDs(t, d.RemoveBlock("b"), "a", "c")
	assertIDs(t, d.RemoveBlock("nope"), "a", "b", "c")
	assertIDs(t, d, "a", "b", "c")
}

func TestMoveBlock(t *testing.T) {
	d := heroTextStats()

	assertIDs(t, d.MoveBlock("b", editor.DirectionUp), "b", "a", "c")
	assertIDs(t, d.MoveBlock("b", editor.DirectionDown), "a", "c", "b")
	assertIDs(t, d.MoveBlock("a", editor.DirectionUp), "a", "b", "c")
	assertIDs(t, d.MoveBlock("c", editor.DirectionDown), "a", "b", "c")
	assertIDs(t, d.MoveBlock("zzz", editor.DirectionUp), "a", "b", "c")
}

func TestMoveBlock_UpThenDownRestores(t *testing.T) {
	d := heroTextStats()
	for _, id := range []string{"b", "c"} {
		round := d.MoveBlock(id, editor.DirectionUp).MoveBlock(id, editor.DirectionDown)
		if !round.SameOrder(d) {
			t.Errorf("move %s up then down = %v", id, round.IDs())
		}
	}
}

// ─────────────────────────────────────────────────────────────
// ReorderBlock
// ─────────────────────────────────────────────────────────────

func TestReorderBlock(t *testing.T) {
	d := heroTextStats()

	cases := []struct {
		name     string
		from, to string
		pos      editor.Position
		want     []string
	}{
		{"first after last", "a", "c", editor.PositionAfter, []string{"b", "c", "a"}},
		{"first before last", "a", "c", editor.PositionBefore, []string{"b", "a", "c"}},
		{"last before first", "c", "a", editor.PositionBefore, []string{"c", "a", "b"}},
		{"last after first", "c", "a", editor.PositionAfter, []string{"a", "c", "b"}},
		{"middle after last", "b", "c", editor.PositionAfter, []string{"a", "c", "b"}},
		{"already in place", "a", "b", editor.PositionBefore, []string{"a", "b", "c"}},
		{"onto itself", "b", "b", editor.PositionAfter, []string{"a", "b", "c"}},
		{"unknown source", "x", "b", editor.PositionAfter, []string{"a", "b", "c"}},
		{"unknown target", "a", "x", editor.PositionAfter, []string{"a", "b", "c"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assertIDs(t, d.ReorderBlock(tc.from, tc.to, tc.pos), tc.want...)
		})
	}
}

func TestReorderBlock_PreservesIDSet(t *testing.T) {
	d := heroTextStats()
	next := d.ReorderBlock("c", "a", editor.PositionBefore)
	if next.Len() != d.Len() {
		t.Fatalf("len = %d, want %d", next.Len(), d.Len())
	}
	for _, id := range d.IDs() {
		if next.Index(id) < 0 {
			t.Errorf("block %s lost after reorder", id)
		}
	}
}

// ─────────────────────────────────────────────────────────────
// UpdateBlockData
// ─────────────────────────────────────────────────────────────

func TestUpdateBlockData_ShallowMerge(t *testing.T) {
	d := heroTextStats()
	next, err := d.UpdateBlockData("a", map[string]any{"headline": "Hi"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	b, _ := next.Find("a")
	hero := b.Data.(domain.HeroData)
	if hero.Headline != "Hi" {
		t.Errorf("headline = %q, want Hi", hero.Headline)
	}
	if hero.CTAText != "Enroll Now" {
		t.Errorf("ctaText = %q, untouched field changed", hero.CTAText)
	}
	assertIDs(t, next, "a", "b", "c")

	orig, _ := d.Find("a")
	if orig.Data.(domain.HeroData).Headline == "Hi" {
		t.Error("original document was mutated")
	}
}

func TestUpdateBlockData_UnknownIDIsNoop(t *testing.T) {
	d := heroTextStats()
	next, err := d.UpdateBlockData("zzz", map[string]any{"headline": "Hi"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !reflect.DeepEqual(next.Blocks(), d.Blocks()) {
		t.Error("document changed for unknown id")
	}
}

func TestUpdateBlockData_InvalidPatch(t *testing.T) {
	d := heroTextStats()

	next, err := d.UpdateBlockData("b", map[string]any{"heading": 42})
	if !errors.Is(err, domain.ErrInvalidPatch) {
		t.Errorf("wrong type err = %v, want ErrInvalidPatch", err)
	}
	if b, _ := next.Find("b"); b.Data.(domain.TextData).Heading != "About Us" {
		t.Error("rejected patch changed the block")
	}
}

func TestUpdateBlockData_KeepsUnmodelledKeys(t *testing.T) {
	d := heroTextStats()

	next, err := d.UpdateBlockData("a", map[string]any{"backgroundColor": "#123456"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	next, err = next.UpdateBlockData("a", map[string]any{"headline": "Hi"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	b, _ := next.Find("a")
	raw, err := domain.EncodePayload(b.Data)
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatal(err)
	}
	if fields["backgroundColor"] != "#123456" || fields["headline"] != "Hi" || fields["ctaText"] != "Enroll Now" {
		t.Errorf("payload = %s", raw)
	}
	if b.Data.(domain.HeroData).Headline != "Hi" {
		t.Errorf("view headline = %q", b.Data.(domain.HeroData).Headline)
	}
}
