package editor

import "pagebuilder/internal/domain"

// SourceKind tells whether a drag moves an existing block or inserts a
// new one from the palette.
type SourceKind string

const (
	SourceBlock   SourceKind = "block"
	SourcePalette SourceKind = "palette"
)

// DragSource describes what is being dragged. BlockID is set for
// SourceBlock, Type for SourcePalette.
type DragSource struct {
	Kind    SourceKind       `json:"kind"`
	BlockID string           `json:"id,omitempty"`
	Type    domain.BlockType `json:"type,omitempty"`
}

func (s DragSource) valid() bool {
	switch s.Kind {
	case SourceBlock:
		return s.BlockID != ""
	case SourcePalette:
		return s.Type.Valid()
	}
	return false
}

// DropTarget is the block a dragged item will land next to.
type DropTarget struct {
	ID  string   `json:"id"`
	Pos Position `json:"pos"`
}

// Bounds is the vertical extent of a candidate block on screen.
type Bounds struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

func (b Bounds) midpoint() float64 { return b.Top + b.Height/2 }

// DragState is the observable drag state. Both fields are nil when idle.
type DragState struct {
	Source *DragSource `json:"source"`
	Target *DropTarget `json:"target"`
}

// Dragging reports whether a drag is in progress.
func (s DragState) Dragging() bool { return s.Source != nil }

// DropCommit is what a successful drop asks the session to apply.
type DropCommit struct {
	Source DragSource
	Target DropTarget
}

// DragEngine turns a stream of pointer events into a single insert
// decision. It holds no document; committing is the session's job.
type DragEngine struct {
	source *DragSource
	target *DropTarget
}

// Start enters the dragging state. Invalid sources are ignored.
func (e *DragEngine) Start(src DragSource) bool {
	if !src.valid() {
		return false
	}
	e.source = &src
	e.target = nil
	return true
}

// Over recomputes the drop target for a pointer at pointerY over the
// candidate block. It returns true only when the target changed.
func (e *DragEngine) Over(candidateID string, bounds Bounds, pointerY float64) bool {
	if e.source == nil || candidateID == "" {
		return false
	}
	pos := PositionAfter
	if pointerY < bounds.midpoint() {
		pos = PositionBefore
	}
	if e.target != nil && e.target.ID == candidateID && e.target.Pos == pos {
		return false
	}
	e.target = &DropTarget{ID: candidateID, Pos: pos}
	return true
}

// Leave handles the pointer leaving candidateID. Moving into one of the
// candidate's own children keeps the target.
func (e *DragEngine) Leave(candidateID string, intoChild bool) bool {
	if intoChild || e.target == nil || e.target.ID != candidateID {
		return false
	}
	e.target = nil
	return true
}

// Drop ends the drag and returns the commit to apply, if any. Dropping
// with no target, or a block onto itself, yields no commit.
func (e *DragEngine) Drop() (DropCommit, bool) {
	src, tgt := e.source, e.target
	e.End()
	if src == nil || tgt == nil {
		return DropCommit{}, false
	}
	if src.Kind == SourceBlock && src.BlockID == tgt.ID {
		return DropCommit{}, false
	}
	return DropCommit{Source: *src, Target: *tgt}, true
}

// End returns to idle unconditionally.
func (e *DragEngine) End() {
	e.source = nil
	e.target = nil
}

// State returns a copy of the current drag state.
func (e *DragEngine) State() DragState {
	var st DragState
	if e.source != nil {
		src := *e.source
		st.Source = &src
	}
	if e.target != nil {
		tgt := *e.target
		st.Target = &tgt
	}
	return st
}
