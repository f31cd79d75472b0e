package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pagebuilder/internal/domain"
)

// PageStore implements pagestore.Store on the SQL database.
type PageStore struct {
	db *DB
}

func NewPageStore(db *DB) *PageStore {
	return &PageStore{db: db}
}

func (s *PageStore) CreatePage(ctx context.Context, p *domain.Page) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	defer tx.Rollback()

	_, err = s.db.exec(ctx, tx,
		`INSERT INTO pages (id, title, slug, is_published, updated_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Slug, boolInt(p.IsPublished), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	if err := s.writeSections(ctx, tx, p.ID, p.Sections); err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	return tx.Commit()
}

func (s *PageStore) GetPage(ctx context.Context, id string) (*domain.Page, error) {
	p := &domain.Page{}
	err := s.db.Conn().QueryRowContext(ctx, s.db.rebind(
		`SELECT id, title, slug, is_published, updated_at FROM pages WHERE id = ?`), id,
	).Scan(&p.ID, &p.Title, &p.Slug, &p.IsPublished, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}

	sections, err := s.sections(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Sections = sections
	return p, nil
}

func (s *PageStore) ListPages(ctx context.Context) ([]domain.Page, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT id, title, slug, is_published, updated_at FROM pages ORDER BY title ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []domain.Page
	for rows.Next() {
		var p domain.Page
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.IsPublished, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// SaveSections replaces every section of the page in one transaction.
func (s *PageStore) SaveSections(ctx context.Context, pageID string, sections []domain.Section) error {
	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save sections: %w", err)
	}
	defer tx.Rollback()

	res, err := s.db.exec(ctx, tx, `UPDATE pages SET updated_at = ? WHERE id = ?`, time.Now().UTC(), pageID)
	if err != nil {
		return fmt.Errorf("save sections: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrPageNotFound
	}
	if _, err := s.db.exec(ctx, tx, `DELETE FROM page_sections WHERE page_id = ?`, pageID); err != nil {
		return fmt.Errorf("clear sections: %w", err)
	}
	if err := s.writeSections(ctx, tx, pageID, sections); err != nil {
		return fmt.Errorf("save sections: %w", err)
	}
	return tx.Commit()
}

func (s *PageStore) writeSections(ctx context.Context, tx *sql.Tx, pageID string, sections []domain.Section) error {
	for i, sec := range sections {
		content := string(sec.Content)
		if content == "" {
			content = "{}"
		}
		_, err := s.db.exec(ctx, tx,
			`INSERT INTO page_sections (page_id, position, type, content, is_visible) VALUES (?, ?, ?, ?, ?)`,
			pageID, i, sec.Type, content, boolInt(sec.IsVisible),
		)
		if err != nil {
			return fmt.Errorf("insert section %d: %w", i, err)
		}
	}
	return nil
}

func (s *PageStore) sections(ctx context.Context, pageID string) ([]domain.Section, error) {
	rows, err := s.db.Conn().QueryContext(ctx, s.db.rebind(
		`SELECT type, content, is_visible FROM page_sections WHERE page_id = ? ORDER BY position ASC`), pageID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	sections := []domain.Section{}
	for rows.Next() {
		var sec domain.Section
		var content string
		if err := rows.Scan(&sec.Type, &content, &sec.IsVisible); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		sec.Content = []byte(content)
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
