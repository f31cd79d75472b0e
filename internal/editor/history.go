package editor

// MaxHistory is the number of undo steps kept per session.
const MaxHistory = 50

// History is a linear undo/redo stack of document snapshots. It only
// records structural changes; field edits never call Snapshot.
type History struct {
	past   []Document
	future []Document
	limit  int
}

// NewHistory returns a history capped at limit entries. A non-positive
// limit means MaxHistory.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = MaxHistory
	}
	return &History{limit: limit}
}

// Snapshot records doc as the state before a structural mutation. The
// oldest entry is evicted at the cap and any redo entries are discarded.
func (h *History) Snapshot(doc Document) {
	h.past = append(h.past, doc)
	if over := len(h.past) - h.limit; over > 0 {
		h.past = append([]Document(nil), h.past[over:]...)
	}
	h.future = nil
}

// Undo returns the most recent snapshot and parks current for redo.
// ok is false when there is nothing to undo.
func (h *History) Undo(current Document) (doc Document, ok bool) {
	if len(h.past) == 0 {
		return current, false
	}
	last := len(h.past) - 1
	doc = h.past[last]
	h.past = h.past[:last]
	h.future = append(h.future, current)
	return doc, true
}

// Redo is the inverse of Undo.
func (h *History) Redo(current Document) (doc Document, ok bool) {
	if len(h.future) == 0 {
		return current, false
	}
	last := len(h.future) - 1
	doc = h.future[last]
	h.future = h.future[:last]
	h.past = append(h.past, current)
	return doc, true
}

func (h *History) CanUndo() bool { return len(h.past) > 0 }
func (h *History) CanRedo() bool { return len(h.future) > 0 }

// Depth returns the number of undo and redo entries held.
func (h *History) Depth() (past, future int) {
	return len(h.past), len(h.future)
}

// Reset drops all entries, e.g. after loading a different page.
func (h *History) Reset() {
	h.past = nil
	h.future = nil
}
