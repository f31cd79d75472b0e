// Package pagestore maps editor documents to the persisted section list
// and back.
package pagestore

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
)

// Store is the page-storage collaborator. SaveSections always replaces
// every section of the page.
type Store interface {
	GetPage(ctx context.Context, id string) (*domain.Page, error)
	ListPages(ctx context.Context) ([]domain.Page, error)
	CreatePage(ctx context.Context, p *domain.Page) error
	SaveSections(ctx context.Context, pageID string, sections []domain.Section) error
}

// ToSections converts doc into the persisted section list. Every section
// is saved visible. Content loaded from storage is written back as it was,
// apart from keys changed by edits.
func ToSections(doc editor.Document) ([]domain.Section, error) {
	blocks := doc.Blocks()
	sections := make([]domain.Section, 0, len(blocks))
	for _, b := range blocks {
		content, err := domain.EncodePayload(b.Data)
		if err != nil {
			return nil, fmt.Errorf("encode block %s: %w", b.ID, err)
		}
		sections = append(sections, domain.Section{
			Type:      string(b.Type),
			Content:   content,
			IsVisible: true,
		})
	}
	return sections, nil
}

// FromSections builds a document from persisted sections, assigning fresh
// block IDs. Sections of unknown type are skipped. Content must be a JSON
// object; its keys are kept even when the block type does not model them.
func FromSections(sections []domain.Section, newID editor.IDFunc) (editor.Document, error) {
	if newID == nil {
		newID = editor.NewBlockID
	}
	blocks := make([]domain.Block, 0, len(sections))
	for i, s := range sections {
		t := domain.BlockType(s.Type)
		if !t.Valid() {
			logrus.WithFields(logrus.Fields{
				"index": i,
				"type":  s.Type,
			}).Warn("skipping section of unknown type")
			continue
		}
		payload, err := domain.DecodePayload(t, s.Content)
		if err != nil {
			return editor.Document{}, fmt.Errorf("section %d: %w", i, err)
		}
		blocks = append(blocks, domain.Block{ID: newID(), Type: t, Data: payload})
	}
	return editor.NewDocument(blocks...), nil
}

// Adapter loads and saves whole documents through a Store.
type Adapter struct {
	store Store
	newID editor.IDFunc
}

func NewAdapter(store Store, newID editor.IDFunc) *Adapter {
	if newID == nil {
		newID = editor.NewBlockID
	}
	return &Adapter{store: store, newID: newID}
}

// Store returns the underlying page store.
func (a *Adapter) Store() Store { return a.store }

// Load fetches the page and converts its sections to a document.
func (a *Adapter) Load(ctx context.Context, pageID string) (*domain.Page, editor.Document, error) {
	page, err := a.store.GetPage(ctx, pageID)
	if err != nil {
		return nil, editor.Document{}, fmt.Errorf("load page %s: %w", pageID, err)
	}
	doc, err := FromSections(page.Sections, a.newID)
	if err != nil {
		return nil, editor.Document{}, fmt.Errorf("load page %s: %w", pageID, err)
	}
	return page, doc, nil
}

// Save replaces the page's sections with doc. doc itself is never altered.
func (a *Adapter) Save(ctx context.Context, pageID string, doc editor.Document) error {
	sections, err := ToSections(doc)
	if err != nil {
		return fmt.Errorf("save page %s: %w", pageID, err)
	}
	if err := a.store.SaveSections(ctx, pageID, sections); err != nil {
		return fmt.Errorf("save page %s: %w", pageID, err)
	}
	return nil
}
