package domain

import (
	"encoding/json"
	"fmt"
)

type BlockType string

const (
	BlockTypeHero         BlockType = "hero"
	BlockTypeText         BlockType = "text"
	BlockTypeFeatures     BlockType = "features"
	BlockTypeStats        BlockType = "stats"
	BlockTypeGallery      BlockType = "gallery"
	BlockTypeCTA          BlockType = "cta"
	BlockTypeTestimonials BlockType = "testimonials"
)

// BlockTypes lists the closed set of block types in palette order.
var BlockTypes = []BlockType{
	BlockTypeHero,
	BlockTypeText,
	BlockTypeFeatures,
	BlockTypeStats,
	BlockTypeGallery,
	BlockTypeCTA,
	BlockTypeTestimonials,
}

// Valid reports whether t belongs to the closed block type set.
func (t BlockType) Valid() bool {
	for _, bt := range BlockTypes {
		if bt == t {
			return true
		}
	}
	return false
}

// ParseBlockType converts a raw string into a BlockType.
func ParseBlockType(s string) (BlockType, error) {
	t := BlockType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown block type %q", s)
	}
	return t, nil
}

// Block is a single content unit on a page. Its position in the
// document slice is its render position.
type Block struct {
	ID   string    `json:"id"`
	Type BlockType `json:"type"`
	Data Payload   `json:"data"`
}

// blockJSON is the wire form of Block with an undecoded payload.
type blockJSON struct {
	ID   string          `json:"id"`
	Type BlockType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// UnmarshalJSON decodes the payload into the variant selected by "type".
func (b *Block) UnmarshalJSON(data []byte) error {
	var raw blockJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	payload, err := DecodePayload(raw.Type, raw.Data)
	if err != nil {
		return fmt.Errorf("block %s: %w", raw.ID, err)
	}
	b.ID = raw.ID
	b.Type = raw.Type
	b.Data = payload
	return nil
}
