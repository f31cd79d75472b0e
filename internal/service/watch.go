package service

import (
	"context"

	"github.com/sirupsen/logrus"
)

// PageWatcher is a page store that can report external edits.
// storage.FilePageStore implements it.
type PageWatcher interface {
	Watch(ctx context.Context, onChange func(pageID string)) error
}

// WatchService tells open sessions when their page changed on disk behind
// their back. The session is left alone; the user decides whether to
// reload or overwrite on the next save.
type WatchService struct {
	sessions *SessionService
	emitter  EventEmitter
}

func NewWatchService(sessions *SessionService, emitter EventEmitter) *WatchService {
	return &WatchService{sessions: sessions, emitter: emitter}
}

// Attach starts watching w until ctx is done.
func (s *WatchService) Attach(ctx context.Context, w PageWatcher) error {
	return w.Watch(ctx, func(pageID string) { s.PageChanged(ctx, pageID) })
}

// PageChanged emits EventPageChangedExternally if any session edits pageID.
func (s *WatchService) PageChanged(ctx context.Context, pageID string) {
	var ids []string
	for _, sess := range s.sessions.ForPage(pageID) {
		ids = append(ids, sess.ID())
	}
	if len(ids) == 0 {
		return
	}
	logrus.WithFields(logrus.Fields{
		"page_id":  pageID,
		"sessions": len(ids),
	}).Info("page changed externally")
	s.emitter.Emit(ctx, EventPageChangedExternally, map[string]any{
		"pageId":     pageID,
		"sessionIds": ids,
	})
}
