package editor

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"pagebuilder/internal/domain"
)

// SessionOptions configures a new Session.
type SessionOptions struct {
	ID           string
	PageID       string
	Document     Document
	HistoryLimit int
	NewID        IDFunc
	Emitter      Broadcaster
	Context      context.Context
}

// Session owns one page document for the duration of an edit. It is the
// single writer of that document; the mutex only serialises the HTTP,
// websocket, MCP and autosave goroutines that reach it.
type Session struct {
	mu       sync.Mutex
	emitMu   sync.Mutex // held from view capture to Emit so views go out in order
	id       string
	pageID   string
	doc      Document
	history  *History
	drag     DragEngine
	selected string
	dirty    bool
	saving   bool
	revision uint64

	newID   IDFunc
	emitter Broadcaster
	ctx     context.Context
	log     *logrus.Entry
}

// NewSession creates an editing session over opts.Document.
func NewSession(opts SessionOptions) *Session {
	if opts.NewID == nil {
		opts.NewID = NewBlockID
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	return &Session{
		id:      opts.ID,
		pageID:  opts.PageID,
		doc:     opts.Document,
		history: NewHistory(opts.HistoryLimit),
		newID:   opts.NewID,
		emitter: opts.Emitter,
		ctx:     opts.Context,
		log: logrus.WithFields(logrus.Fields{
			"session_id": opts.ID,
			"page_id":    opts.PageID,
		}),
	}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) PageID() string { return s.pageID }

// Document returns the current document.
func (s *Session) Document() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// View returns the broadcast context value for renderers.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	return View{
		SessionID:  s.id,
		PageID:     s.pageID,
		Mode:       ModeEdit,
		Blocks:     s.doc.Blocks(),
		SelectedID: s.selected,
		Drag:       s.drag.State(),
		CanUndo:    s.history.CanUndo(),
		CanRedo:    s.history.CanRedo(),
		Dirty:      s.dirty,
		Saving:     s.saving,
		Revision:   s.revision,
	}
}

// update runs fn under the lock and broadcasts the new view when fn
// reports a change. emitMu is taken before mu is released, so views reach
// the emitter in the order they were captured while the emitter itself
// may still read the session.
func (s *Session) update(fn func() bool) bool {
	s.mu.Lock()
	changed := fn()
	if !changed || s.emitter == nil {
		s.mu.Unlock()
		return changed
	}
	view := s.viewLocked()
	s.emitMu.Lock()
	s.mu.Unlock()

	defer s.emitMu.Unlock()
	s.emitter.Emit(s.ctx, EventChanged, view)
	return changed
}

// commitLocked installs next as the document after snapshotting the
// current one. Structural operations that leave the order as it was are
// not recorded.
func (s *Session) commitLocked(op string, next Document) bool {
	if next.SameOrder(s.doc) {
		return false
	}
	s.history.Snapshot(s.doc)
	s.doc = next
	s.touchLocked()
	s.log.WithField("op", op).Debug("structural change")
	return true
}

func (s *Session) touchLocked() {
	s.dirty = true
	s.revision++
}

// AddBlock appends a block of type t, selects it and returns its ID.
func (s *Session) AddBlock(t domain.BlockType) string {
	var id string
	s.update(func() bool {
		next, newID := s.doc.AddBlock(t, s.newID)
		if newID == "" {
			return false
		}
		id = newID
		s.commitLocked("add", next)
		s.selected = newID
		return true
	})
	return id
}

// ReorderBlock moves fromID next to toID.
func (s *Session) ReorderBlock(fromID, toID string, pos Position) bool {
	return s.update(func() bool {
		return s.commitLocked("reorder", s.doc.ReorderBlock(fromID, toID, pos))
	})
}

// UpdateBlockData merges patch into a block's payload without creating
// an undo step.
func (s *Session) UpdateBlockData(id string, patch map[string]any) error {
	var err error
	s.update(func() bool {
		var next Document
		next, err = s.doc.UpdateBlockData(id, patch)
		if err != nil || s.doc.Index(id) < 0 || len(patch) == 0 {
			return false
		}
		s.doc = next
		s.touchLocked()
		return true
	})
	return err
}

// Undo restores the state before the last structural change.
func (s *Session) Undo() bool {
	return s.update(func() bool {
		doc, ok := s.history.Undo(s.doc)
		if !ok {
			return false
		}
		s.doc = doc
		s.dropStaleSelectionLocked()
		s.touchLocked()
		return true
	})
}

// Redo re-applies the last undone change.
func (s *Session) Redo() bool {
	return s.update(func() bool {
		doc, ok := s.history.Redo(s.doc)
		if !ok {
			return false
		}
		s.doc = doc
		s.dropStaleSelectionLocked()
		s.touchLocked()
		return true
	})
}

// Replace swaps in doc wholesale, e.g. when restoring a draft. It is a
// structural change and can be undone.
func (s *Session) Replace(doc Document) {
	s.update(func() bool {
		s.history.Snapshot(s.doc)
		s.doc = doc
		s.dropStaleSelectionLocked()
		s.drag.End()
		s.touchLocked()
		return true
	})
}

func (s *Session) dropStaleSelectionLocked() {
	if s.selected != "" && s.doc.Index(s.selected) < 0 {
		s.selected = ""
	}
}

// BeginSave flags the session as saving and returns the document and
// revision being saved.
func (s *Session) BeginSave() (Document, uint64) {
	var doc Document
	var rev uint64
	s.update(func() bool {
		doc, rev = s.doc, s.revision
		s.saving = true
		return true
	})
	return doc, rev
}

// EndSave clears the saving flag. On success the session is marked clean
// unless it changed while the save was in flight.
func (s *Session) EndSave(rev uint64, ok bool) {
	s.update(func() bool {
		s.saving = false
		if ok && rev == s.revision {
			s.dirty = false
		}
		return true
	})
}

// Revision returns a counter bumped on every document change.
func (s *Session) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Dirty reports unsaved changes.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// ── Actions ────────────────────────────────────────────────

func (s *Session) Select(id string) {
	s.update(func() bool {
		if id != "" && s.doc.Index(id) < 0 {
			return false
		}
		if s.selected == id {
			return false
		}
		s.selected = id
		return true
	})
}

func (s *Session) MoveUp(id string) {
	s.update(func() bool {
		return s.commitLocked("move_up", s.doc.MoveBlock(id, DirectionUp))
	})
}

func (s *Session) MoveDown(id string) {
	s.update(func() bool {
		return s.commitLocked("move_down", s.doc.MoveBlock(id, DirectionDown))
	})
}

// MoveBlock is MoveUp/MoveDown keyed by direction.
func (s *Session) MoveBlock(id string, dir Direction) bool {
	return s.update(func() bool {
		return s.commitLocked("move_"+string(dir), s.doc.MoveBlock(id, dir))
	})
}

// Delete removes a block, clearing the selection if it pointed at it.
func (s *Session) Delete(id string) {
	s.RemoveBlock(id)
}

// RemoveBlock is Delete with a changed flag.
func (s *Session) RemoveBlock(id string) bool {
	return s.update(func() bool {
		if !s.commitLocked("remove", s.doc.RemoveBlock(id)) {
			return false
		}
		if s.selected == id {
			s.selected = ""
		}
		return true
	})
}

func (s *Session) DragStart(src DragSource) {
	s.update(func() bool {
		if src.Kind == SourceBlock && s.doc.Index(src.BlockID) < 0 {
			return false
		}
		return s.drag.Start(src)
	})
}

func (s *Session) DragOver(id string, bounds Bounds, pointerY float64) {
	s.update(func() bool {
		if s.doc.Index(id) < 0 {
			return false
		}
		return s.drag.Over(id, bounds, pointerY)
	})
}

func (s *Session) DragLeave(id string, intoChild bool) {
	s.update(func() bool {
		return s.drag.Leave(id, intoChild)
	})
}

// Drop commits the pending drag. Palette drops select the new block.
func (s *Session) Drop() {
	s.update(func() bool {
		wasDragging := s.drag.State().Dragging()
		commit, ok := s.drag.Drop()
		if !ok {
			return wasDragging
		}
		switch commit.Source.Kind {
		case SourceBlock:
			s.commitLocked("drop", s.doc.ReorderBlock(commit.Source.BlockID, commit.Target.ID, commit.Target.Pos))
		case SourcePalette:
			next, id := s.doc.InsertBlock(commit.Source.Type, commit.Target.ID, commit.Target.Pos, s.newID)
			if id != "" {
				s.commitLocked("insert", next)
				s.selected = id
			}
		}
		return true
	})
}

func (s *Session) DragEnd() {
	s.update(func() bool {
		if !s.drag.State().Dragging() {
			return false
		}
		s.drag.End()
		return true
	})
}
