package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrPageNotFound is returned by page stores when no page has the given ID.
var ErrPageNotFound = errors.New("page not found")

// Section is the persisted form of a block as the site API stores it.
type Section struct {
	Type      string          `json:"type"`
	Content   json.RawMessage `json:"content"`
	IsVisible bool            `json:"isVisible"`
}

// Page is a tenant's site page. Only Sections matter to the editor; the
// metadata is carried through untouched.
type Page struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	IsPublished bool      `json:"isPublished"`
	Sections    []Section `json:"sections"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PageUpdate is the body submitted on save: always the full section list.
type PageUpdate struct {
	Sections []Section `json:"sections"`
}
