package slides

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownShape is returned when a source representation does not map to
// any known shape variant.
var ErrUnknownShape = errors.New("unknown shape representation")

// ErrInvalidGeometry is returned when reader geometry is not a usable number.
var ErrInvalidGeometry = errors.New("shape geometry out of range")

// ShapeDoc is the document form of a shape used by the JSON and YAML deck
// codecs. Geometry fields are pointers so a missing field can be told apart
// from zero.
type ShapeDoc struct {
	Name   string     `json:"name" yaml:"name"`
	Kind   string     `json:"kind" yaml:"kind"`
	Left   *int64     `json:"left,omitempty" yaml:"left,omitempty"`
	Top    *int64     `json:"top,omitempty" yaml:"top,omitempty"`
	Width  *int64     `json:"width,omitempty" yaml:"width,omitempty"`
	Height *int64     `json:"height,omitempty" yaml:"height,omitempty"`
	Text   string     `json:"text,omitempty" yaml:"text,omitempty"`
	Table  [][]string `json:"table,omitempty" yaml:"table,omitempty"`
	Chart  *ChartDoc  `json:"chart,omitempty" yaml:"chart,omitempty"`
}

// ChartDoc is the document form of a chart payload.
type ChartDoc struct {
	Title     string `json:"title,omitempty" yaml:"title,omitempty"`
	ChartType string `json:"chartType,omitempty" yaml:"chartType,omitempty"`
}

// ShapeInfo is the flat shape description produced by presentation readers:
// an office shape-type name, plain text, and float geometry in linear units.
type ShapeInfo struct {
	ShapeType string     `json:"shapeType"`
	Name      string     `json:"name"`
	Text      string     `json:"text,omitempty"`
	Left      float64    `json:"left"`
	Top       float64    `json:"top"`
	Width     float64    `json:"width"`
	Height    float64    `json:"height"`
	Rows      [][]string `json:"rows,omitempty"`
	Title     string     `json:"title,omitempty"`
	ChartType string     `json:"chartType,omitempty"`
}

// maxInfoUnits is the largest geometry magnitude a reader may report.
const maxInfoUnits = 1 << 53

// FromDoc converts the document representation into a Shape.
func FromDoc(doc ShapeDoc) (Shape, error) {
	kind, err := parseKind(doc.Kind)
	if err != nil {
		return Shape{}, fmt.Errorf("shape %q: %w", doc.Name, err)
	}
	shape := Shape{Name: doc.Name, Kind: kind}
	if doc.Left != nil && doc.Top != nil && doc.Width != nil && doc.Height != nil {
		shape.Box = &Box{Left: *doc.Left, Top: *doc.Top, Width: *doc.Width, Height: *doc.Height}
	}
	switch kind {
	case KindText:
		shape.Text = doc.Text
	case KindTable:
		shape.Table = &Table{Cells: doc.Table}
	case KindChart:
		shape.Chart = &Chart{}
		if doc.Chart != nil {
			shape.Chart.Title = doc.Chart.Title
			shape.Chart.ChartType = doc.Chart.ChartType
		}
	}
	return shape, nil
}

// ToDoc converts a Shape back into its document representation.
func ToDoc(shape Shape) ShapeDoc {
	doc := ShapeDoc{Name: shape.Name, Kind: string(shape.Kind)}
	if shape.Box != nil {
		left, top, width, height := shape.Box.Left, shape.Box.Top, shape.Box.Width, shape.Box.Height
		doc.Left, doc.Top, doc.Width, doc.Height = &left, &top, &width, &height
	}
	switch shape.Kind {
	case KindText:
		doc.Text = shape.Text
	case KindTable:
		if shape.Table != nil {
			doc.Table = shape.Table.Cells
		}
	case KindChart:
		if shape.Chart != nil {
			doc.Chart = &ChartDoc{Title: shape.Chart.Title, ChartType: shape.Chart.ChartType}
		}
	}
	return doc
}

// FromInfo converts a reader's ShapeInfo into a Shape. Chart and table
// detection takes precedence over text, matching how office shapes nest a
// text frame inside graphic frames.
func FromInfo(info ShapeInfo) (Shape, error) {
	for _, v := range []float64{info.Left, info.Top, info.Width, info.Height} {
		if math.IsNaN(v) || math.Abs(v) > maxInfoUnits {
			return Shape{}, fmt.Errorf("shape %q: %w", info.Name, ErrInvalidGeometry)
		}
	}
	shape := Shape{
		Name: info.Name,
		Box: &Box{
			Left:   int64(info.Left),
			Top:    int64(info.Top),
			Width:  int64(info.Width),
			Height: int64(info.Height),
		},
	}
	switch strings.ToUpper(strings.TrimSpace(info.ShapeType)) {
	case "CHART":
		shape.Kind = KindChart
		shape.Chart = &Chart{Title: info.Title, ChartType: info.ChartType}
	case "TABLE":
		shape.Kind = KindTable
		shape.Table = &Table{Cells: info.Rows}
	case "TEXT_BOX", "PLACEHOLDER", "AUTO_SHAPE", "FREEFORM":
		shape.Kind = KindText
		shape.Text = info.Text
	case "PICTURE", "LINKED_PICTURE", "MEDIA":
		shape.Kind = KindImage
	case "GROUP", "LINE", "CONNECTOR", "EMBEDDED_OLE_OBJECT", "OLE_CONTROL_OBJECT":
		shape.Kind = KindUnknown
	default:
		return Shape{}, fmt.Errorf("shape %q type %q: %w", info.Name, info.ShapeType, ErrUnknownShape)
	}
	return shape, nil
}

// ToInfo converts a Shape into the reader form. Shapes without geometry get
// a zero box, which renders as skipped just like a missing one.
func ToInfo(shape Shape) ShapeInfo {
	info := ShapeInfo{Name: shape.Name}
	if shape.Box != nil {
		info.Left = float64(shape.Box.Left)
		info.Top = float64(shape.Box.Top)
		info.Width = float64(shape.Box.Width)
		info.Height = float64(shape.Box.Height)
	}
	switch shape.Kind {
	case KindText:
		info.ShapeType = "TEXT_BOX"
		info.Text = shape.Text
	case KindTable:
		info.ShapeType = "TABLE"
		if shape.Table != nil {
			info.Rows = shape.Table.Cells
		}
	case KindChart:
		info.ShapeType = "CHART"
		if shape.Chart != nil {
			info.Title = shape.Chart.Title
			info.ChartType = shape.Chart.ChartType
		}
	case KindImage:
		info.ShapeType = "PICTURE"
	default:
		info.ShapeType = "GROUP"
	}
	return info
}

func parseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "text", "textbox", "text_box":
		return KindText, nil
	case "table":
		return KindTable, nil
	case "chart":
		return KindChart, nil
	case "image", "picture":
		return KindImage, nil
	case "unknown", "group", "line", "connector":
		return KindUnknown, nil
	default:
		return "", fmt.Errorf("kind %q: %w", raw, ErrUnknownShape)
	}
}
