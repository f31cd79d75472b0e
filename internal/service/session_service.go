package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
	"pagebuilder/internal/pagestore"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSaveInFlight    = errors.New("a save is already in progress")
)

// ─────────────────────────────────────────────────────────────
// Session Service: open, save and close editing sessions
// ─────────────────────────────────────────────────────────────

// SessionInfo summarises an open session.
type SessionInfo struct {
	ID       string    `json:"id"`
	PageID   string    `json:"pageId"`
	Title    string    `json:"title"`
	Blocks   int       `json:"blocks"`
	Dirty    bool      `json:"dirty"`
	OpenedAt time.Time `json:"openedAt"`
}

type openSession struct {
	*editor.Session
	title    string
	openedAt time.Time
}

// SessionService owns every open editor session.
type SessionService struct {
	adapter      *pagestore.Adapter
	emitter      EventEmitter
	historyLimit int
	newID        editor.IDFunc
	saves        inflightGuard

	mu       sync.RWMutex
	sessions map[string]*openSession
}

// SessionOptions tunes NewSessionService. Zero values mean defaults.
type SessionOptions struct {
	HistoryLimit int
	NewID        editor.IDFunc
}

func NewSessionService(adapter *pagestore.Adapter, emitter EventEmitter, opts SessionOptions) *SessionService {
	return &SessionService{
		adapter:      adapter,
		emitter:      emitter,
		historyLimit: opts.HistoryLimit,
		newID:        opts.NewID,
		sessions:     map[string]*openSession{},
	}
}

// DocumentFromSections builds a document from persisted sections with the
// block ID generator sessions use.
func (s *SessionService) DocumentFromSections(sections []domain.Section) (editor.Document, error) {
	return pagestore.FromSections(sections, s.newID)
}

// Open loads pageID and starts a new session over it.
func (s *SessionService) Open(ctx context.Context, pageID string) (*editor.Session, error) {
	page, doc, err := s.adapter.Load(ctx, pageID)
	if err != nil {
		return nil, err
	}
	id := strings.ToLower(ulid.Make().String())
	sess := editor.NewSession(editor.SessionOptions{
		ID:           id,
		PageID:       page.ID,
		Document:     doc,
		HistoryLimit: s.historyLimit,
		NewID:        s.newID,
		Emitter:      s.emitter,
	})

	s.mu.Lock()
	s.sessions[id] = &openSession{Session: sess, title: page.Title, openedAt: time.Now()}
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"session_id": id,
		"page_id":    page.ID,
		"blocks":     doc.Len(),
	}).Info("session opened")
	return sess, nil
}

func (s *SessionService) Get(id string) (*editor.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return o.Session, nil
}

// List returns the open sessions, oldest first.
func (s *SessionService) List() []SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for _, o := range s.sessions {
		out = append(out, SessionInfo{
			ID:       o.ID(),
			PageID:   o.PageID(),
			Title:    o.title,
			Blocks:   o.Document().Len(),
			Dirty:    o.Dirty(),
			OpenedAt: o.openedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Sessions returns the open sessions.
func (s *SessionService) Sessions() []*editor.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*editor.Session, 0, len(s.sessions))
	for _, o := range s.sessions {
		out = append(out, o.Session)
	}
	return out
}

// ForPage returns the sessions editing pageID.
func (s *SessionService) ForPage(pageID string) []*editor.Session {
	var out []*editor.Session
	for _, sess := range s.Sessions() {
		if sess.PageID() == pageID {
			out = append(out, sess)
		}
	}
	return out
}

// Close discards a session. Unsaved changes are lost.
func (s *SessionService) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	o, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if o.Dirty() {
		logrus.WithField("session_id", id).Warn("closing session with unsaved changes")
	}
	s.emitter.Emit(ctx, EventSessionClosed, map[string]string{"sessionId": id, "pageId": o.PageID()})
	return nil
}

// Save persists the session's document. A second Save while one is
// outstanding fails with ErrSaveInFlight. On failure the document is left
// as it was and a notification is emitted so the user can retry.
func (s *SessionService) Save(ctx context.Context, id string) error {
	sess, err := s.Get(id)
	if err != nil {
		return err
	}
	if !s.saves.TryLock(id) {
		return ErrSaveInFlight
	}
	defer s.saves.Unlock(id)

	doc, rev := sess.BeginSave()
	err = s.adapter.Save(ctx, sess.PageID(), doc)
	sess.EndSave(rev, err == nil)

	log := logrus.WithFields(logrus.Fields{
		"session_id": id,
		"page_id":    sess.PageID(),
		"revision":   rev,
	})
	if err != nil {
		log.WithError(err).Error("save failed")
		s.emitter.Emit(ctx, EventNotifyError, Notification{
			SessionID: id,
			PageID:    sess.PageID(),
			Message:   fmt.Sprintf("Could not save page: %v", err),
		})
		return err
	}
	log.Info("page saved")
	s.emitter.Emit(ctx, EventPageSaved, map[string]any{
		"sessionId": id,
		"pageId":    sess.PageID(),
		"revision":  rev,
		"blocks":    doc.Len(),
	})
	return nil
}

// Saving reports whether a save is outstanding for the session.
func (s *SessionService) Saving(id string) bool {
	return s.saves.Busy(id)
}

// Preview returns a static view of the session's current document.
func (s *SessionService) Preview(id string) (editor.View, error) {
	sess, err := s.Get(id)
	if err != nil {
		return editor.View{}, err
	}
	return editor.PreviewView(sess.PageID(), sess.Document()), nil
}

// PreviewPage renders a stored page without opening a session.
func (s *SessionService) PreviewPage(ctx context.Context, pageID string) (editor.View, error) {
	_, doc, err := s.adapter.Load(ctx, pageID)
	if err != nil {
		return editor.View{}, err
	}
	return editor.PreviewView(pageID, doc), nil
}

func (s *SessionService) ListPages(ctx context.Context) ([]domain.Page, error) {
	return s.adapter.Store().ListPages(ctx)
}

// CreatePage creates an empty page.
func (s *SessionService) CreatePage(ctx context.Context, title, slug string) (*domain.Page, error) {
	if strings.TrimSpace(title) == "" {
		return nil, errors.New("create page: title is required")
	}
	p := &domain.Page{
		ID:        strings.ToLower(ulid.Make().String()),
		Title:     title,
		Slug:      slug,
		Sections:  []domain.Section{},
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.adapter.Store().CreatePage(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Shutdown waits for outstanding saves.
func (s *SessionService) Shutdown(ctx context.Context) {
	s.saves.WaitAll(ctx)
}
