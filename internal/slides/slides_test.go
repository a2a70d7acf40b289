package slides

import (
	"errors"
	"reflect"
	"testing"
)

func int64p(v int64) *int64 { return &v }

func sampleDeck() Deck {
	return Deck{
		Width:  9144000,
		Height: 6858000,
		Slides: []Slide{
			{Shapes: []Shape{
				{Name: "Title 1", Kind: KindText, Box: &Box{Left: 457200, Top: 274638, Width: 8229600, Height: 1143000}, Text: "Quarterly review"},
				{Name: "Table 2", Kind: KindTable, Box: &Box{Left: 457200, Top: 1600200, Width: 8229600, Height: 2000000}, Table: &Table{Cells: [][]string{{"Region", "Revenue"}, {"EMEA", "12"}}}},
			}},
			{Shapes: []Shape{
				{Name: "Chart 3", Kind: KindChart, Box: &Box{Left: 914400, Top: 914400, Width: 4572000, Height: 3429000}, Chart: &Chart{Title: "Growth"}},
			}},
		},
	}
}

func TestCloneIsDeep(t *testing.T) {
	deck := sampleDeck()
	clone := deck.Clone()
	if !reflect.DeepEqual(deck, clone) {
		t.Fatalf("clone differs from source")
	}

	clone.Slides[0].Shapes[0].Box.Left = 1
	clone.Slides[0].Shapes[1].Table.Cells[0][0] = "changed"
	clone.Slides[1].Shapes[0].Chart.Title = "changed"

	if deck.Slides[0].Shapes[0].Box.Left != 457200 {
		t.Fatalf("box shared between clone and source")
	}
	if deck.Slides[0].Shapes[1].Table.Cells[0][0] != "Region" {
		t.Fatalf("table cells shared between clone and source")
	}
	if deck.Slides[1].Shapes[0].Chart.Title != "Growth" {
		t.Fatalf("chart shared between clone and source")
	}
}

func TestFindShape(t *testing.T) {
	deck := sampleDeck()
	if _, ok := deck.FindShape(0, "Chart 3"); ok {
		t.Fatalf("expected no match on wrong slide")
	}
	if _, ok := deck.FindShape(5, "Title 1"); ok {
		t.Fatalf("expected no match for out-of-range slide")
	}
	shape, ok := deck.FindShape(1, "Chart 3")
	if !ok || shape.Kind != KindChart {
		t.Fatalf("expected chart match, got %+v ok=%v", shape, ok)
	}
}

func TestTableDimensions(t *testing.T) {
	tbl := &Table{Cells: [][]string{{"a", "b", "c"}, {"d"}}}
	if tbl.Rows() != 2 || tbl.Cols() != 3 {
		t.Fatalf("got %dx%d, want 2x3", tbl.Rows(), tbl.Cols())
	}
	if got := tbl.Cell(1, 2); got != "" {
		t.Fatalf("ragged cell = %q, want empty", got)
	}
	var nilTable *Table
	if nilTable.Rows() != 0 || nilTable.Cols() != 0 {
		t.Fatalf("nil table should be empty")
	}
}

func TestFromDocMissingGeometryLeavesBoxNil(t *testing.T) {
	shape, err := FromDoc(ShapeDoc{Name: "t", Kind: "text", Left: int64p(1), Top: int64p(2), Text: "hi"})
	if err != nil {
		t.Fatalf("FromDoc: %v", err)
	}
	if shape.Box != nil {
		t.Fatalf("expected nil box for partial geometry, got %+v", shape.Box)
	}
}

func TestFromDocRejectsUnknownKind(t *testing.T) {
	_, err := FromDoc(ShapeDoc{Name: "x", Kind: "hologram"})
	if !errors.Is(err, ErrUnknownShape) {
		t.Fatalf("expected ErrUnknownShape, got %v", err)
	}
}

func TestFromInfo(t *testing.T) {
	tests := []struct {
		shapeType string
		want      Kind
	}{
		{"CHART", KindChart},
		{"table", KindTable},
		{"TEXT_BOX", KindText},
		{"PICTURE", KindImage},
		{"GROUP", KindUnknown},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.shapeType, func(t *testing.T) {
			shape, err := FromInfo(ShapeInfo{ShapeType: tt.shapeType, Name: "s", Width: 914400, Height: 914400})
			if err != nil {
				t.Fatalf("FromInfo: %v", err)
			}
			if shape.Kind != tt.want {
				t.Fatalf("kind = %s, want %s", shape.Kind, tt.want)
			}
			if shape.Box == nil || shape.Box.Width != 914400 {
				t.Fatalf("unexpected box %+v", shape.Box)
			}
		})
	}

	if _, err := FromInfo(ShapeInfo{ShapeType: "SOMETHING_ELSE"}); !errors.Is(err, ErrUnknownShape) {
		t.Fatalf("expected ErrUnknownShape, got %v", err)
	}
}

func TestCodecsRoundTrip(t *testing.T) {
	for _, codec := range []Codec{JSONCodec{}, YAMLCodec{}, ReaderCodec{}} {
		codec := codec
		t.Run(codec.ContentType(), func(t *testing.T) {
			deck := sampleDeck()
			data, err := codec.Encode(deck)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := codec.Decode(data)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !reflect.DeepEqual(got, deck) {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, deck)
			}
		})
	}
}

func TestJSONCodecRejectsBadPageSize(t *testing.T) {
	if _, err := (JSONCodec{}).Decode([]byte(`{"width":0,"height":10,"slides":[]}`)); err == nil {
		t.Fatalf("expected error for zero width")
	}
}

func TestCodecFor(t *testing.T) {
	if _, ok := CodecFor("application/yaml; charset=utf-8").(YAMLCodec); !ok {
		t.Fatalf("expected yaml codec for yaml content type")
	}
	if _, ok := CodecFor(".yml").(YAMLCodec); !ok {
		t.Fatalf("expected yaml codec for .yml")
	}
	if _, ok := CodecFor("application/json").(JSONCodec); !ok {
		t.Fatalf("expected json codec")
	}
	if _, ok := CodecFor(ContentTypeReader).(ReaderCodec); !ok {
		t.Fatalf("expected reader codec for %s", ContentTypeReader)
	}
}

func TestReaderCodecDecodesOfficeShapes(t *testing.T) {
	data := []byte(`{"width":9144000,"height":6858000,"slides":[{"shapes":[
		{"shapeType":"PLACEHOLDER","name":"Title 1","text":"Hello","left":457200.7,"top":274638,"width":8229600,"height":1143000},
		{"shapeType":"CHART","name":"Chart 2","left":0,"top":0,"width":914400,"height":914400,"title":"Growth","chartType":"bar"}
	]}]}`)
	deck, err := ReaderCodec{}.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	shapes := deck.Slides[0].Shapes
	if len(shapes) != 2 || shapes[0].Kind != KindText || shapes[0].Text != "Hello" || shapes[0].Box.Left != 457200 {
		t.Fatalf("unexpected text shape %+v", shapes)
	}
	if shapes[1].Chart == nil || shapes[1].Chart.ChartType != "bar" {
		t.Fatalf("unexpected chart %+v", shapes[1].Chart)
	}
}

func TestReaderCodecRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"unknown type", `{"width":1,"height":1,"slides":[{"shapes":[{"shapeType":"HOLOGRAM","name":"x","left":0,"top":0,"width":1,"height":1}]}]}`, ErrUnknownShape},
		{"huge width", `{"width":1,"height":1,"slides":[{"shapes":[{"shapeType":"PICTURE","name":"x","left":0,"top":0,"width":1e30,"height":1}]}]}`, ErrInvalidGeometry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := (ReaderCodec{}).Decode([]byte(tt.body)); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
