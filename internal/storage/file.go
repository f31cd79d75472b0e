package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"pagebuilder/internal/domain"
)

// FilePageStore keeps one indented JSON file per page in a directory, so
// pages can be edited by hand or synced with other tools.
type FilePageStore struct {
	dir string

	mu      sync.Mutex
	written map[string][]byte // last bytes this store wrote, per page

	watcher *fsnotify.Watcher
}

func NewFilePageStore(dir string) (*FilePageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create pages directory: %w", err)
	}
	return &FilePageStore{dir: dir, written: map[string][]byte{}}, nil
}

func (s *FilePageStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid page id %q", id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

func (s *FilePageStore) GetPage(_ context.Context, id string) (*domain.Page, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrPageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read page %s: %w", id, err)
	}
	var page domain.Page
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("decode page %s: %w", id, err)
	}
	if page.ID == "" {
		page.ID = id
	}
	return &page, nil
}

func (s *FilePageStore) ListPages(ctx context.Context) ([]domain.Page, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	pages := make([]domain.Page, 0, len(matches))
	for _, m := range matches {
		id := strings.TrimSuffix(filepath.Base(m), ".json")
		p, err := s.GetPage(ctx, id)
		if err != nil {
			logrus.WithError(err).WithField("file", m).Warn("skipping unreadable page file")
			continue
		}
		p.Sections = nil
		pages = append(pages, *p)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Title < pages[j].Title })
	return pages, nil
}

func (s *FilePageStore) CreatePage(_ context.Context, p *domain.Page) error {
	path, err := s.path(p.ID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("create page: %s already exists", p.ID)
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	return s.write(p)
}

func (s *FilePageStore) SaveSections(ctx context.Context, pageID string, sections []domain.Section) error {
	p, err := s.GetPage(ctx, pageID)
	if err != nil {
		return err
	}
	p.Sections = sections
	p.UpdatedAt = time.Now().UTC()
	return s.write(p)
}

func (s *FilePageStore) write(p *domain.Page) error {
	path, err := s.path(p.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode page: %w", err)
	}

	s.mu.Lock()
	s.written[p.ID] = data
	s.mu.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write page %s: %w", p.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write page %s: %w", p.ID, err)
	}
	return nil
}

// Watch calls onChange with the ID of every page file changed by another
// process, until ctx is done or Close is called.
func (s *FilePageStore) Watch(ctx context.Context, onChange func(pageID string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}
	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()

	go s.watchLoop(ctx, watcher, onChange)
	return nil
}

func (s *FilePageStore) Close() error {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Close()
}

func (s *FilePageStore) watchLoop(ctx context.Context, w *fsnotify.Watcher, onChange func(pageID string)) {
	for {
		select {
		case <-ctx.Done():
			w.Close()
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, ".json") {
				continue
			}
			id := strings.TrimSuffix(name, ".json")
			if s.isOwnWrite(id, event.Name) {
				continue
			}
			if onChange != nil {
				onChange(id)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logrus.WithError(err).Warn("page watcher error")
		}
	}
}

func (s *FilePageStore) isOwnWrite(id, path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Equal(data, s.written[id])
}
