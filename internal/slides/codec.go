package slides

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeYAML = "application/yaml"
	// ContentTypeReader marks the flat shape listing emitted by
	// presentation readers.
	ContentTypeReader = "application/vnd.deck-reader+json"
)

// Codec reads and writes the native byte form of an artifact.
type Codec interface {
	Decode(data []byte) (Deck, error)
	Encode(deck Deck) ([]byte, error)
	ContentType() string
}

// DeckDoc is the document form of a Deck.
type DeckDoc struct {
	Width  int64      `json:"width" yaml:"width"`
	Height int64      `json:"height" yaml:"height"`
	Slides []SlideDoc `json:"slides" yaml:"slides"`
}

// SlideDoc is the document form of a Slide.
type SlideDoc struct {
	Layout string     `json:"layout,omitempty" yaml:"layout,omitempty"`
	Shapes []ShapeDoc `json:"shapes" yaml:"shapes"`
}

// FromDeckDoc converts a decoded document into a Deck.
func FromDeckDoc(doc DeckDoc) (Deck, error) {
	if doc.Width <= 0 || doc.Height <= 0 {
		return Deck{}, fmt.Errorf("deck page size must be positive, got %dx%d", doc.Width, doc.Height)
	}
	deck := Deck{Width: doc.Width, Height: doc.Height, Slides: make([]Slide, 0, len(doc.Slides))}
	for i, sd := range doc.Slides {
		slide := Slide{Layout: sd.Layout, Shapes: make([]Shape, 0, len(sd.Shapes))}
		for _, shd := range sd.Shapes {
			shape, err := FromDoc(shd)
			if err != nil {
				return Deck{}, fmt.Errorf("slide %d: %w", i, err)
			}
			slide.Shapes = append(slide.Shapes, shape)
		}
		deck.Slides = append(deck.Slides, slide)
	}
	return deck, nil
}

// ToDeckDoc converts a Deck into its document form.
func ToDeckDoc(deck Deck) DeckDoc {
	doc := DeckDoc{Width: deck.Width, Height: deck.Height, Slides: make([]SlideDoc, 0, len(deck.Slides))}
	for _, s := range deck.Slides {
		sd := SlideDoc{Layout: s.Layout, Shapes: make([]ShapeDoc, 0, len(s.Shapes))}
		for _, sh := range s.Shapes {
			sd.Shapes = append(sd.Shapes, ToDoc(sh))
		}
		doc.Slides = append(doc.Slides, sd)
	}
	return doc
}

// JSONCodec stores decks as JSON documents.
type JSONCodec struct{}

func (JSONCodec) Decode(data []byte) (Deck, error) {
	var doc DeckDoc
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return Deck{}, fmt.Errorf("decode deck json: %w", err)
	}
	return FromDeckDoc(doc)
}

func (JSONCodec) Encode(deck Deck) ([]byte, error) {
	return json.MarshalIndent(ToDeckDoc(deck), "", "  ")
}

func (JSONCodec) ContentType() string { return ContentTypeJSON }

// YAMLCodec stores decks as YAML documents.
type YAMLCodec struct{}

func (YAMLCodec) Decode(data []byte) (Deck, error) {
	var doc DeckDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return Deck{}, fmt.Errorf("decode deck yaml: %w", err)
	}
	return FromDeckDoc(doc)
}

func (YAMLCodec) Encode(deck Deck) ([]byte, error) {
	return yaml.Marshal(ToDeckDoc(deck))
}

func (YAMLCodec) ContentType() string { return ContentTypeYAML }

// ReaderDoc is the flat listing a presentation reader emits: page size and,
// per slide, office shape descriptions.
type ReaderDoc struct {
	Width  int64         `json:"width"`
	Height int64         `json:"height"`
	Slides []ReaderSlide `json:"slides"`
}

// ReaderSlide lists one slide's shapes in z-order.
type ReaderSlide struct {
	Layout string      `json:"layout,omitempty"`
	Shapes []ShapeInfo `json:"shapes"`
}

// ReaderCodec reads and writes ReaderDoc JSON.
type ReaderCodec struct{}

func (ReaderCodec) Decode(data []byte) (Deck, error) {
	var doc ReaderDoc
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return Deck{}, fmt.Errorf("decode reader json: %w", err)
	}
	if doc.Width <= 0 || doc.Height <= 0 {
		return Deck{}, fmt.Errorf("deck page size must be positive, got %dx%d", doc.Width, doc.Height)
	}
	deck := Deck{Width: doc.Width, Height: doc.Height, Slides: make([]Slide, 0, len(doc.Slides))}
	for i, rs := range doc.Slides {
		slide := Slide{Layout: rs.Layout, Shapes: make([]Shape, 0, len(rs.Shapes))}
		for _, info := range rs.Shapes {
			shape, err := FromInfo(info)
			if err != nil {
				return Deck{}, fmt.Errorf("slide %d: %w", i, err)
			}
			slide.Shapes = append(slide.Shapes, shape)
		}
		deck.Slides = append(deck.Slides, slide)
	}
	return deck, nil
}

func (ReaderCodec) Encode(deck Deck) ([]byte, error) {
	doc := ReaderDoc{Width: deck.Width, Height: deck.Height, Slides: make([]ReaderSlide, 0, len(deck.Slides))}
	for _, s := range deck.Slides {
		rs := ReaderSlide{Layout: s.Layout, Shapes: make([]ShapeInfo, 0, len(s.Shapes))}
		for _, sh := range s.Shapes {
			rs.Shapes = append(rs.Shapes, ToInfo(sh))
		}
		doc.Slides = append(doc.Slides, rs)
	}
	return json.MarshalIndent(doc, "", "  ")
}

func (ReaderCodec) ContentType() string { return ContentTypeReader }

// CodecFor picks a codec from a Content-Type header or file extension.
// Anything unrecognized falls back to JSON.
func CodecFor(contentTypeOrExt string) Codec {
	raw := strings.ToLower(strings.TrimSpace(contentTypeOrExt))
	if mt, _, err := mime.ParseMediaType(raw); err == nil {
		raw = mt
	}
	switch raw {
	case ContentTypeYAML, "application/x-yaml", "text/yaml", "text/x-yaml", ".yaml", ".yml":
		return YAMLCodec{}
	case ContentTypeReader:
		return ReaderCodec{}
	default:
		return JSONCodec{}
	}
}
