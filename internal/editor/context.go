package editor

import (
	"context"

	"pagebuilder/internal/domain"
)

// Mode selects how a rendering tree treats user gestures.
type Mode string

const (
	ModeEdit    Mode = "edit"
	ModePreview Mode = "preview"
)

// EventChanged is emitted with a View every time a session changes.
const EventChanged = "editor:changed"

// Broadcaster receives session change notifications. service.EventEmitter
// satisfies it.
type Broadcaster interface {
	Emit(ctx context.Context, event string, data any)
}

// View is the read-only state handed to block renderers.
type View struct {
	SessionID  string         `json:"sessionId"`
	PageID     string         `json:"pageId"`
	Mode       Mode           `json:"mode"`
	Blocks     []domain.Block `json:"blocks"`
	SelectedID string         `json:"selectedId,omitempty"`
	Drag       DragState      `json:"drag"`
	CanUndo    bool           `json:"canUndo"`
	CanRedo    bool           `json:"canRedo"`
	Dirty      bool           `json:"dirty"`
	Saving     bool           `json:"saving"`
	Revision   uint64         `json:"revision"`
}

// Actions is the callback bundle renderers invoke in response to user
// gestures. Renderers never touch the document directly.
type Actions interface {
	Select(id string)
	MoveUp(id string)
	MoveDown(id string)
	Delete(id string)
	DragStart(src DragSource)
	DragOver(id string, bounds Bounds, pointerY float64)
	DragLeave(id string, intoChild bool)
	Drop()
	DragEnd()
}

// PreviewActions ignores every gesture. Pairing it with a View turns the
// interactive rendering tree into a static preview.
type PreviewActions struct{}

func (PreviewActions) Select(string)                    {}
func (PreviewActions) MoveUp(string)                    {}
func (PreviewActions) MoveDown(string)                  {}
func (PreviewActions) Delete(string)                    {}
func (PreviewActions) DragStart(DragSource)             {}
func (PreviewActions) DragOver(string, Bounds, float64) {}
func (PreviewActions) DragLeave(string, bool)           {}
func (PreviewActions) Drop()                            {}
func (PreviewActions) DragEnd()                         {}

var (
	_ Actions = PreviewActions{}
	_ Actions = (*Session)(nil)
)

// PreviewView builds a static view of doc.
func PreviewView(pageID string, doc Document) View {
	return View{
		PageID: pageID,
		Mode:   ModePreview,
		Blocks: doc.Blocks(),
	}
}
