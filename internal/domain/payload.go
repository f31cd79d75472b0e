package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidPatch is returned when a data patch cannot be applied to a
// block's payload variant.
var ErrInvalidPatch = errors.New("invalid block data patch")

// Payload is the typed content of a block. Each BlockType has exactly one
// concrete payload struct.
type Payload interface {
	BlockType() BlockType
}

// source holds the JSON object a payload was decoded from. When set it is
// what the payload encodes to, so keys and value shapes the variant does
// not model are written back untouched. The typed fields are a read view.
type source struct {
	raw json.RawMessage
}

func (s *source) setSource(raw json.RawMessage) { s.raw = raw }

// encode returns the stored object, or view encoded as JSON when the
// payload was built in code.
func (s source) encode(view any) ([]byte, error) {
	if s.raw != nil {
		return s.raw, nil
	}
	return json.Marshal(view)
}

// Text is a string field that also accepts JSON numbers and booleans, as
// written by other clients of the page API. The literal is kept as text;
// arrays and objects read as empty.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	case len(data) > 0 && (data[0] == '[' || data[0] == '{'):
		*t = ""
		return nil
	}
	*t = Text(data)
	return nil
}

type HeroData struct {
	source

	Headline    string `json:"headline"`
	Subheadline string `json:"subheadline"`
	Image       string `json:"image"`
	CTAText     string `json:"ctaText"`
	CTALink     string `json:"ctaLink"`
}

type TextData struct {
	source

	Heading string `json:"heading"`
	Body    string `json:"body"`
}

type Feature struct {
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type FeaturesData struct {
	source

	Heading string    `json:"heading"`
	Items   []Feature `json:"items"`
}

type Stat struct {
	Value Text   `json:"value"`
	Label string `json:"label"`
}

type StatsData struct {
	source

	Items []Stat `json:"items"`
}

type GalleryImage struct {
	URL     string `json:"url"`
	Caption string `json:"caption"`
}

type GalleryData struct {
	source

	Heading string         `json:"heading"`
	Images  []GalleryImage `json:"images"`
}

type CTAData struct {
	source

	Headline    string `json:"headline"`
	Description string `json:"description"`
	ButtonText  string `json:"buttonText"`
	ButtonLink  string `json:"buttonLink"`
}

type Testimonial struct {
	Quote  string `json:"quote"`
	Author string `json:"author"`
	Role   string `json:"role"`
}

type TestimonialsData struct {
	source

	Heading string        `json:"heading"`
	Items   []Testimonial `json:"items"`
}

func (HeroData) BlockType() BlockType         { return BlockTypeHero }
func (TextData) BlockType() BlockType         { return BlockTypeText }
func (FeaturesData) BlockType() BlockType     { return BlockTypeFeatures }
func (StatsData) BlockType() BlockType        { return BlockTypeStats }
func (GalleryData) BlockType() BlockType      { return BlockTypeGallery }
func (CTAData) BlockType() BlockType          { return BlockTypeCTA }
func (TestimonialsData) BlockType() BlockType { return BlockTypeTestimonials }

func (d HeroData) MarshalJSON() ([]byte, error) {
	type plain HeroData
	return d.encode(plain(d))
}

func (d TextData) MarshalJSON() ([]byte, error) {
	type plain TextData
	return d.encode(plain(d))
}

func (d FeaturesData) MarshalJSON() ([]byte, error) {
	type plain FeaturesData
	return d.encode(plain(d))
}

func (d StatsData) MarshalJSON() ([]byte, error) {
	type plain StatsData
	return d.encode(plain(d))
}

func (d GalleryData) MarshalJSON() ([]byte, error) {
	type plain GalleryData
	return d.encode(plain(d))
}

func (d CTAData) MarshalJSON() ([]byte, error) {
	type plain CTAData
	return d.encode(plain(d))
}

func (d TestimonialsData) MarshalJSON() ([]byte, error) {
	type plain TestimonialsData
	return d.encode(plain(d))
}

// DefaultPayload returns a fresh default payload for t, or nil when t is
// not a known block type.
func DefaultPayload(t BlockType) Payload {
	switch t {
	case BlockTypeHero:
		return HeroData{
			Headline:    "Welcome to Our School",
			Subheadline: "Nurturing curious minds for a brighter tomorrow",
			CTAText:     "Enroll Now",
			CTALink:     "/admissions",
		}
	case BlockTypeText:
		return TextData{
			Heading: "About Us",
			Body:    "Tell visitors about your school, its history and its values.",
		}
	case BlockTypeFeatures:
		return FeaturesData{
			Heading: "Why Choose Us",
			Items: []Feature{
				{Icon: "book", Title: "Academic Excellence", Description: "A rigorous curriculum taught by experienced staff."},
				{Icon: "users", Title: "Dedicated Teachers", Description: "Small classes and individual attention."},
				{Icon: "award", Title: "Holistic Development", Description: "Sports, arts and clubs beyond the classroom."},
			},
		}
	case BlockTypeStats:
		return StatsData{
			Items: []Stat{
				{Value: "1200+", Label: "Students"},
				{Value: "80+", Label: "Teachers"},
				{Value: "25", Label: "Years of Excellence"},
				{Value: "98%", Label: "Pass Rate"},
			},
		}
	case BlockTypeGallery:
		return GalleryData{
			Heading: "Campus Life",
			Images:  []GalleryImage{},
		}
	case BlockTypeCTA:
		return CTAData{
			Headline:    "Ready to Join Us?",
			Description: "Admissions are open for the new academic year.",
			ButtonText:  "Apply Now",
			ButtonLink:  "/admissions",
		}
	case BlockTypeTestimonials:
		return TestimonialsData{
			Heading: "What Parents Say",
			Items: []Testimonial{
				{Quote: "The teachers truly care about every child.", Author: "A. Parent", Role: "Parent"},
			},
		}
	}
	return nil
}

// newPayload returns a pointer to a zero payload of type t, ready to be
// decoded into.
func newPayload(t BlockType) (any, error) {
	switch t {
	case BlockTypeHero:
		return &HeroData{}, nil
	case BlockTypeText:
		return &TextData{}, nil
	case BlockTypeFeatures:
		return &FeaturesData{}, nil
	case BlockTypeStats:
		return &StatsData{}, nil
	case BlockTypeGallery:
		return &GalleryData{}, nil
	case BlockTypeCTA:
		return &CTAData{}, nil
	case BlockTypeTestimonials:
		return &TestimonialsData{}, nil
	}
	return nil, fmt.Errorf("unknown block type %q", t)
}

// deref turns the pointer produced by newPayload back into a value payload.
func deref(p any) Payload {
	switch v := p.(type) {
	case *HeroData:
		return *v
	case *TextData:
		return *v
	case *FeaturesData:
		return *v
	case *StatsData:
		return *v
	case *GalleryData:
		return *v
	case *CTAData:
		return *v
	case *TestimonialsData:
		return *v
	}
	return nil
}

// EncodePayload returns the JSON object of p exactly as it will be
// persisted. Unlike json.Marshal it does not compact or re-escape content
// that was loaded from storage.
func EncodePayload(p Payload) (json.RawMessage, error) {
	if p == nil {
		return json.RawMessage("null"), nil
	}
	if m, ok := p.(json.Marshaler); ok {
		return m.MarshalJSON()
	}
	return json.Marshal(p)
}

// DecodePayload decodes raw JSON into the payload variant for t. Empty or
// null input yields the zero payload of that variant. Content must be a
// JSON object; keys the variant does not model and values of an unexpected
// shape are kept as loaded and left out of the typed view.
func DecodePayload(t BlockType, raw []byte) (Payload, error) {
	target, err := newPayload(t)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return deref(target), nil
	}
	if err := decodeView(raw, target); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	target.(interface{ setSource(json.RawMessage) }).setSource(append(json.RawMessage(nil), raw...))
	return deref(target), nil
}

// decodeView fills target from an object, tolerating fields whose JSON
// shape does not match the variant.
func decodeView(raw []byte, target any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("content is not an object")
	}
	err := json.Unmarshal(raw, target)
	var typeErr *json.UnmarshalTypeError
	if err != nil && !errors.As(err, &typeErr) {
		return err
	}
	return nil
}

// MergePayload shallow-merges patch into p: each top-level key in patch
// replaces the value stored under that key, and keys the variant does not
// model are stored as given. A value that does not fit a modelled field
// yields ErrInvalidPatch and p is left as it was.
func MergePayload(p Payload, patch map[string]any) (Payload, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: block has no payload", ErrInvalidPatch)
	}
	current, err := EncodePayload(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(current, &fields); err != nil {
		return nil, fmt.Errorf("split payload: %w", err)
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	changes := make(map[string]json.RawMessage, len(patch))
	for k, v := range patch {
		enc, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidPatch, k, err)
		}
		changes[k] = enc
		fields[k] = enc
	}

	check, err := newPayload(p.BlockType())
	if err != nil {
		return nil, err
	}
	onlyChanges, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}
	if err := json.Unmarshal(onlyChanges, check); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode merged payload: %w", err)
	}
	target, _ := newPayload(p.BlockType())
	if err := decodeView(merged, target); err != nil {
		return nil, fmt.Errorf("decode merged payload: %w", err)
	}
	target.(interface{ setSource(json.RawMessage) }).setSource(merged)
	return deref(target), nil
}
