package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"pagebuilder/internal/domain"
)

// ErrDraftNotFound is returned when a draft ID is unknown.
var ErrDraftNotFound = errors.New("draft not found")

// DefaultMaxDrafts is the number of revisions kept per page.
const DefaultMaxDrafts = 20

// Draft is a locally autosaved revision of a page's sections.
type Draft struct {
	ID        string           `json:"id"`
	PageID    string           `json:"pageId"`
	Label     string           `json:"label"`
	Sections  []domain.Section `json:"sections"`
	CreatedAt time.Time        `json:"createdAt"`
}

// DraftStore keeps capped draft revisions per page. IDs are ULIDs, so ID
// order is creation order.
type DraftStore struct {
	db  *DB
	max int
}

func NewDraftStore(db *DB, max int) *DraftStore {
	if max <= 0 {
		max = DefaultMaxDrafts
	}
	return &DraftStore{db: db, max: max}
}

// Push stores a new revision and prunes the oldest beyond the cap.
func (s *DraftStore) Push(ctx context.Context, pageID, label string, sections []domain.Section) (*Draft, error) {
	raw, err := json.Marshal(sections)
	if err != nil {
		return nil, fmt.Errorf("encode draft: %w", err)
	}
	d := &Draft{
		ID:        ulid.Make().String(),
		PageID:    pageID,
		Label:     label,
		Sections:  sections,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.exec(ctx, s.db.Conn(),
		`INSERT INTO page_drafts (id, page_id, label, sections_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.PageID, d.Label, string(raw), d.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert draft: %w", err)
	}

	if err := s.prune(ctx, pageID); err != nil {
		logrus.WithError(err).WithField("page_id", pageID).Warn("prune drafts")
	}
	return d, nil
}

// List returns the page's drafts, newest first, without their sections.
func (s *DraftStore) List(ctx context.Context, pageID string) ([]Draft, error) {
	rows, err := s.db.Conn().QueryContext(ctx, s.db.rebind(
		`SELECT id, page_id, label, created_at FROM page_drafts WHERE page_id = ? ORDER BY id DESC`), pageID,
	)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	drafts := []Draft{}
	for rows.Next() {
		var d Draft
		if err := rows.Scan(&d.ID, &d.PageID, &d.Label, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

func (s *DraftStore) Get(ctx context.Context, id string) (*Draft, error) {
	var d Draft
	var raw string
	err := s.db.Conn().QueryRowContext(ctx, s.db.rebind(
		`SELECT id, page_id, label, sections_json, created_at FROM page_drafts WHERE id = ?`), id,
	).Scan(&d.ID, &d.PageID, &d.Label, &raw, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &d.Sections); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", id, err)
	}
	return &d, nil
}

// Clear removes every draft of a page.
func (s *DraftStore) Clear(ctx context.Context, pageID string) error {
	_, err := s.db.exec(ctx, s.db.Conn(), `DELETE FROM page_drafts WHERE page_id = ?`, pageID)
	if err != nil {
		return fmt.Errorf("clear drafts: %w", err)
	}
	return nil
}

func (s *DraftStore) prune(ctx context.Context, pageID string) error {
	// Collect IDs first; sqlite runs on a single connection.
	rows, err := s.db.Conn().QueryContext(ctx, s.db.rebind(
		`SELECT id FROM page_drafts WHERE page_id = ? ORDER BY id DESC`), pageID,
	)
	if err != nil {
		return err
	}
	var stale []string
	i := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if i >= s.max {
			stale = append(stale, id)
		}
		i++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range stale {
		if _, err := s.db.exec(ctx, s.db.Conn(), `DELETE FROM page_drafts WHERE id = ?`, id); err != nil {
			return err
		}
	}
	return nil
}
