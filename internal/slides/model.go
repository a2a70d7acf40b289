package slides

// Kind discriminates the payload carried by a Shape.
type Kind string

const (
	KindText    Kind = "text"
	KindTable   Kind = "table"
	KindChart   Kind = "chart"
	KindImage   Kind = "image"
	KindUnknown Kind = "unknown"
)

// Box is a shape's position and size in linear units (914400 per inch).
type Box struct {
	Left   int64
	Top    int64
	Width  int64
	Height int64
}

// Shape is one drawable element of a slide. Name is the only stable
// identifier; fixes locate their target by it. Box is nil when the source
// carried no usable geometry.
type Shape struct {
	Name  string
	Kind  Kind
	Box   *Box
	Text  string
	Table *Table
	Chart *Chart
}

// Table is a cell grid. Row 0 is the header row.
type Table struct {
	Cells [][]string
}

// Rows returns the number of rows.
func (t *Table) Rows() int {
	if t == nil {
		return 0
	}
	return len(t.Cells)
}

// Cols returns the widest row's cell count.
func (t *Table) Cols() int {
	if t == nil {
		return 0
	}
	cols := 0
	for _, row := range t.Cells {
		if len(row) > cols {
			cols = len(row)
		}
	}
	return cols
}

// Cell returns the text at (row, col), or "" for ragged rows.
func (t *Table) Cell(row, col int) string {
	if t == nil || row < 0 || row >= len(t.Cells) {
		return ""
	}
	r := t.Cells[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}

// Chart carries the only chart detail the preview needs.
type Chart struct {
	Title     string
	ChartType string
}

// Slide is an ordered list of shapes, drawn back to front.
type Slide struct {
	Layout string
	Shapes []Shape
}

// Deck is the slide model of one artifact: page size plus slides.
type Deck struct {
	Width  int64
	Height int64
	Slides []Slide
}

// SlideCount returns the number of slides.
func (d Deck) SlideCount() int {
	return len(d.Slides)
}

// FindShape returns the shape on slideIndex whose name matches exactly.
func (d *Deck) FindShape(slideIndex int, name string) (*Shape, bool) {
	if d == nil || name == "" || slideIndex < 0 || slideIndex >= len(d.Slides) {
		return nil, false
	}
	shapes := d.Slides[slideIndex].Shapes
	for i := range shapes {
		if shapes[i].Name == name {
			return &shapes[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy so callers can mutate geometry without touching
// the original.
func (d Deck) Clone() Deck {
	out := Deck{Width: d.Width, Height: d.Height}
	if d.Slides == nil {
		return out
	}
	out.Slides = make([]Slide, len(d.Slides))
	for i, s := range d.Slides {
		out.Slides[i] = Slide{Layout: s.Layout}
		if s.Shapes == nil {
			continue
		}
		out.Slides[i].Shapes = make([]Shape, len(s.Shapes))
		for j, sh := range s.Shapes {
			out.Slides[i].Shapes[j] = sh.clone()
		}
	}
	return out
}

func (s Shape) clone() Shape {
	out := s
	if s.Box != nil {
		b := *s.Box
		out.Box = &b
	}
	if s.Table != nil {
		out.Table = &Table{}
		if s.Table.Cells != nil {
			out.Table.Cells = make([][]string, len(s.Table.Cells))
			for i, row := range s.Table.Cells {
				if row != nil {
					out.Table.Cells[i] = make([]string, len(row))
					copy(out.Table.Cells[i], row)
				}
			}
		}
	}
	if s.Chart != nil {
		c := *s.Chart
		out.Chart = &c
	}
	return out
}
