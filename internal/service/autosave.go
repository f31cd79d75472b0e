package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"pagebuilder/internal/editor"
	"pagebuilder/internal/pagestore"
	"pagebuilder/internal/storage"
)

// ErrDraftPageMismatch is returned when restoring a draft of another page.
var ErrDraftPageMismatch = errors.New("draft belongs to a different page")

// ─────────────────────────────────────────────────────────────
// Autosave Service: periodic local drafts of dirty sessions
// ─────────────────────────────────────────────────────────────

// AutosaveService writes dirty session documents to the draft store on a
// cron schedule. Drafts never touch the page store.
type AutosaveService struct {
	sessions *SessionService
	drafts   *storage.DraftStore
	emitter  EventEmitter
	schedule string
	running  inflightGuard

	mu      sync.Mutex
	lastRev map[string]uint64 // session ID -> revision last drafted
	cron    *cron.Cron
}

func NewAutosaveService(sessions *SessionService, drafts *storage.DraftStore, emitter EventEmitter, schedule string) *AutosaveService {
	if schedule == "" {
		schedule = "@every 30s"
	}
	return &AutosaveService{
		sessions: sessions,
		drafts:   drafts,
		emitter:  emitter,
		schedule: schedule,
		lastRev:  map[string]uint64{},
	}
}

// Start schedules RunOnce.
func (a *AutosaveService) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(a.schedule, func() {
		if !a.running.TryLock("autosave") {
			logrus.Debug("autosave: previous run still in progress")
			return
		}
		defer a.running.Unlock("autosave")
		if n, err := a.RunOnce(ctx); err != nil {
			logrus.WithError(err).Warn("autosave failed")
		} else if n > 0 {
			logrus.WithField("drafts", n).Debug("autosave complete")
		}
	})
	if err != nil {
		return fmt.Errorf("autosave: invalid schedule %q: %w", a.schedule, err)
	}
	c.Start()

	a.mu.Lock()
	a.cron = c
	a.mu.Unlock()
	logrus.WithField("schedule", a.schedule).Info("autosave scheduled")
	return nil
}

// Stop halts the schedule and waits for a running pass.
func (a *AutosaveService) Stop() {
	a.mu.Lock()
	c := a.cron
	a.cron = nil
	a.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// RunOnce drafts every dirty session whose document changed since its last
// draft. It returns the number of drafts written.
func (a *AutosaveService) RunOnce(ctx context.Context) (int, error) {
	sessions := a.sessions.Sessions()
	a.forgetClosed(sessions)

	var errs []error
	written := 0
	for _, sess := range sessions {
		rev := sess.Revision()
		a.mu.Lock()
		last, seen := a.lastRev[sess.ID()]
		a.mu.Unlock()
		if !sess.Dirty() || (seen && last == rev) {
			continue
		}

		sections, err := pagestore.ToSections(sess.Document())
		if err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", sess.ID(), err))
			continue
		}
		d, err := a.drafts.Push(ctx, sess.PageID(), "autosave", sections)
		if err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", sess.ID(), err))
			continue
		}

		a.mu.Lock()
		a.lastRev[sess.ID()] = rev
		a.mu.Unlock()
		written++
		a.emitter.Emit(ctx, EventDraftSaved, map[string]string{
			"sessionId": sess.ID(),
			"pageId":    sess.PageID(),
			"draftId":   d.ID,
		})
	}
	return written, errors.Join(errs...)
}

// forgetClosed drops revision marks of sessions that are no longer open.
func (a *AutosaveService) forgetClosed(open []*editor.Session) {
	ids := make(map[string]struct{}, len(open))
	for _, sess := range open {
		ids[sess.ID()] = struct{}{}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for id := range a.lastRev {
		if _, ok := ids[id]; !ok {
			delete(a.lastRev, id)
		}
	}
}

// SaveDraft drafts one session immediately, dirty or not.
func (a *AutosaveService) SaveDraft(ctx context.Context, sessionID, label string) (*storage.Draft, error) {
	sess, err := a.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sections, err := pagestore.ToSections(sess.Document())
	if err != nil {
		return nil, err
	}
	if label == "" {
		label = "manual"
	}
	return a.drafts.Push(ctx, sess.PageID(), label, sections)
}

func (a *AutosaveService) ListDrafts(ctx context.Context, pageID string) ([]storage.Draft, error) {
	return a.drafts.List(ctx, pageID)
}

// Restore replaces the session's document with a draft. The replacement
// is undoable.
func (a *AutosaveService) Restore(ctx context.Context, sessionID, draftID string) error {
	sess, err := a.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	d, err := a.drafts.Get(ctx, draftID)
	if err != nil {
		return err
	}
	if d.PageID != sess.PageID() {
		return fmt.Errorf("%w: draft %s is for page %s", ErrDraftPageMismatch, draftID, d.PageID)
	}
	doc, err := a.sessions.DocumentFromSections(d.Sections)
	if err != nil {
		return fmt.Errorf("restore draft %s: %w", draftID, err)
	}
	sess.Replace(doc)
	logrus.WithFields(logrus.Fields{
		"session_id": sessionID,
		"draft_id":   draftID,
	}).Info("draft restored")
	return nil
}
