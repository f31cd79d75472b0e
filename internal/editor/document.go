package editor

import (
	"github.com/google/uuid"

	"pagebuilder/internal/domain"
)

// Direction is the neighbour a block is swapped with by MoveBlock.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Position places an inserted block relative to a target block.
type Position string

const (
	PositionBefore Position = "before"
	PositionAfter  Position = "after"
)

// IDFunc generates block IDs.
type IDFunc func() string

// NewBlockID is the default IDFunc.
func NewBlockID() string {
	return uuid.New().String()
}

// Document is an ordered, immutable list of blocks. Every operation
// returns a new Document and leaves the receiver untouched, so a Document
// value can be kept as a history snapshot without copying.
type Document struct {
	blocks []domain.Block
}

// NewDocument builds a document from blocks in render order.
func NewDocument(blocks ...domain.Block) Document {
	if len(blocks) == 0 {
		return Document{}
	}
	out := make([]domain.Block, len(blocks))
	copy(out, blocks)
	return Document{blocks: out}
}

// Blocks returns a copy of the block list.
func (d Document) Blocks() []domain.Block {
	out := make([]domain.Block, len(d.blocks))
	copy(out, d.blocks)
	return out
}

func (d Document) Len() int { return len(d.blocks) }

// IDs returns the block IDs in render order.
func (d Document) IDs() []string {
	ids := make([]string, len(d.blocks))
	for i, b := range d.blocks {
		ids[i] = b.ID
	}
	return ids
}

// Index returns the position of id, or -1.
func (d Document) Index(id string) int {
	for i, b := range d.blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (d Document) Find(id string) (domain.Block, bool) {
	if i := d.Index(id); i >= 0 {
		return d.blocks[i], true
	}
	return domain.Block{}, false
}

// SameOrder reports whether both documents hold the same IDs in the same order.
func (d Document) SameOrder(other Document) bool {
	if len(d.blocks) != len(other.blocks) {
		return false
	}
	for i := range d.blocks {
		if d.blocks[i].ID != other.blocks[i].ID {
			return false
		}
	}
	return true
}

// AddBlock appends a block of type t carrying its default payload and
// returns the new document with the new block's ID. An unknown type
// leaves the document unchanged and returns an empty ID.
func (d Document) AddBlock(t domain.BlockType, newID IDFunc) (Document, string) {
	b, ok := newBlock(t, newID)
	if !ok {
		return d, ""
	}
	out := make([]domain.Block, 0, len(d.blocks)+1)
	out = append(out, d.blocks...)
	out = append(out, b)
	return Document{blocks: out}, b.ID
}

// InsertBlock creates a block of type t next to targetID. A missing target
// or unknown type leaves the document unchanged.
func (d Document) InsertBlock(t domain.BlockType, targetID string, pos Position, newID IDFunc) (Document, string) {
	idx := d.Index(targetID)
	if idx < 0 {
		return d, ""
	}
	b, ok := newBlock(t, newID)
	if !ok {
		return d, ""
	}
	if pos == PositionAfter {
		idx++
	}
	return Document{blocks: insertAt(d.blocks, idx, b)}, b.ID
}

// RemoveBlock drops the block with id. Removing an unknown id is a no-op.
func (d Document) RemoveBlock(id string) Document {
	idx := d.Index(id)
	if idx < 0 {
		return d
	}
	return Document{blocks: removeAt(d.blocks, idx)}
}

// MoveBlock swaps the block with its neighbour in dir. The first block
// cannot move up and the last cannot move down.
func (d Document) MoveBlock(id string, dir Direction) Document {
	idx := d.Index(id)
	if idx < 0 {
		return d
	}
	var other int
	switch dir {
	case DirectionUp:
		other = idx - 1
	case DirectionDown:
		other = idx + 1
	default:
		return d
	}
	if other < 0 || other >= len(d.blocks) {
		return d
	}
	out := d.Blocks()
	out[idx], out[other] = out[other], out[idx]
	return Document{blocks: out}
}

// ReorderBlock moves fromID so it sits immediately before or after toID.
func (d Document) ReorderBlock(fromID, toID string, pos Position) Document {
	if fromID == toID {
		return d
	}
	from := d.Index(fromID)
	if from < 0 || d.Index(toID) < 0 {
		return d
	}
	moving := d.blocks[from]
	rest := removeAt(d.blocks, from)

	// Locate the target after removal so the index shift is already applied.
	to := -1
	for i, b := range rest {
		if b.ID == toID {
			to = i
			break
		}
	}
	if pos == PositionAfter {
		to++
	}
	return Document{blocks: insertAt(rest, to, moving)}
}

// UpdateBlockData shallow-merges patch into the block's payload. Order is
// untouched. An unknown id returns the document unchanged with a nil error.
func (d Document) UpdateBlockData(id string, patch map[string]any) (Document, error) {
	idx := d.Index(id)
	if idx < 0 || len(patch) == 0 {
		return d, nil
	}
	merged, err := domain.MergePayload(d.blocks[idx].Data, patch)
	if err != nil {
		return d, err
	}
	out := d.Blocks()
	out[idx].Data = merged
	return Document{blocks: out}, nil
}

func newBlock(t domain.BlockType, newID IDFunc) (domain.Block, bool) {
	payload := domain.DefaultPayload(t)
	if payload == nil {
		return domain.Block{}, false
	}
	if newID == nil {
		newID = NewBlockID
	}
	return domain.Block{ID: newID(), Type: t, Data: payload}, true
}

func insertAt(blocks []domain.Block, idx int, b domain.Block) []domain.Block {
	out := make([]domain.Block, 0, len(blocks)+1)
	out = append(out, blocks[:idx]...)
	out = append(out, b)
	out = append(out, blocks[idx:]...)
	return out
}

func removeAt(blocks []domain.Block, idx int) []domain.Block {
	out := make([]domain.Block, 0, len(blocks)-1)
	out = append(out, blocks[:idx]...)
	out = append(out, blocks[idx+1:]...)
	return out
}
