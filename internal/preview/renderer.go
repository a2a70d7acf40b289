package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"deck-backend/internal/geometry"
	"deck-backend/internal/shared/metrics"
	"deck-backend/internal/shared/telemetry"
	"deck-backend/internal/slides"
)

const (
	defaultDPI     = 150
	defaultWorkers = 4

	// maxCanvasPixels bounds one side of the canvas.
	maxCanvasPixels = 8000

	textCharLimit = 120
	cellCharLimit = 15

	minTextPt = 6
	maxTextPt = 18
)

var (
	colorBackground  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorText        = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 255}
	colorHeaderFill  = color.RGBA{R: 0xD6, G: 0xE4, B: 0xF0, A: 255}
	colorStripeFill  = color.RGBA{R: 0xF5, G: 0xF5, B: 0xF5, A: 255}
	colorRowFill     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorCellBorder  = color.RGBA{R: 0xCC, G: 0xCC, B: 0xCC, A: 255}
	colorChartFill   = color.RGBA{R: 0xE8, G: 0xF0, B: 0xFE, A: 255}
	colorChartAccent = color.RGBA{R: 0x42, G: 0x85, B: 0xF4, A: 255}
	colorImageFill   = color.RGBA{R: 0xF9, G: 0xF9, B: 0xF9, A: 255}
	colorImageBorder = color.RGBA{R: 0xAA, G: 0xAA, B: 0xAA, A: 255}
)

// ErrInvalidPage is returned when a slide's page size cannot be rendered.
var ErrInvalidPage = errors.New("invalid page size")

// Frame is one rendered slide: PNG bytes plus the source slide index.
type Frame struct {
	SlideIndex int
	PNG        []byte
}

// Options configures a Renderer.
type Options struct {
	// DPI is the canvas resolution. Default: 150.
	DPI float64
	// Workers bounds concurrent slide renders. Default: 4.
	Workers int
}

// Renderer draws approximate slide previews. Safe for concurrent use.
type Renderer struct {
	dpi     float64
	workers int
	fonts   *FontCache
}

// NewRenderer constructs a Renderer. A nil FontCache or one that failed to
// parse falls back to the bitmap face; that fallback is logged once here.
func NewRenderer(opts Options, fonts *FontCache) *Renderer {
	if opts.DPI <= 0 {
		opts.DPI = defaultDPI
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if err := fonts.Err(); err != nil {
		telemetry.Warn("preview.fonts.fallback", map[string]any{
			"reason": err.Error(),
			"face":   "basicfont.Face7x13",
		})
	}
	return &Renderer{dpi: opts.DPI, workers: opts.Workers, fonts: fonts}
}

// RenderDeck renders every slide on a bounded pool of worker goroutines and
// returns one frame per slide, in slide order.
func (r *Renderer) RenderDeck(ctx context.Context, deck slides.Deck) ([]Frame, error) {
	frames := make([]Frame, len(deck.Slides))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range deck.Slides {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := r.RenderSlide(deck.Slides[i], deck.Width, deck.Height)
			if err != nil {
				return fmt.Errorf("slide %d: %w", i, err)
			}
			frames[i] = Frame{SlideIndex: i, PNG: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.IncRenderFailed()
		return nil, err
	}
	metrics.IncDeckRendered()
	return frames, nil
}

// RenderSlide renders one slide to PNG bytes. Shapes with missing or
// non-positive geometry are skipped; they never fail the slide.
func (r *Renderer) RenderSlide(slide slides.Slide, width, height int64) ([]byte, error) {
	wIn := geometry.ToInches(width)
	hIn := geometry.ToInches(height)
	imgW := geometry.InchesToPixels(wIn, r.dpi)
	imgH := geometry.InchesToPixels(hIn, r.dpi)
	if imgW <= 0 || imgH <= 0 {
		return nil, fmt.Errorf("%w: %dx%d units", ErrInvalidPage, width, height)
	}
	if imgW > maxCanvasPixels || imgH > maxCanvasPixels {
		return nil, fmt.Errorf("%w: %dx%d pixels exceeds %d", ErrInvalidPage, imgW, imgH, maxCanvasPixels)
	}

	c := &canvas{
		img:   image.NewRGBA(image.Rect(0, 0, imgW, imgH)),
		dpi:   r.dpi,
		faces: newFaceSet(r.fonts, r.dpi),
	}
	defer c.faces.close()
	draw.Draw(c.img, c.img.Bounds(), &image.Uniform{colorBackground}, image.Point{}, draw.Src)

	for i := range slide.Shapes {
		c.drawShape(i, slide.Shapes[i])
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, c.img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

type canvas struct {
	img   *image.RGBA
	dpi   float64
	faces *faceSet
}

func (c *canvas) drawShape(index int, shape slides.Shape) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.IncShapeSkipped()
			telemetry.Warn("preview.shape.skipped", map[string]any{
				"shape_index": index,
				"shape_name":  shape.Name,
				"error":       fmt.Sprint(rec),
			})
		}
	}()
	if shape.Box == nil || shape.Box.Width <= 0 || shape.Box.Height <= 0 {
		return
	}
	x := geometry.ToInches(shape.Box.Left)
	y := geometry.ToInches(shape.Box.Top)
	w := geometry.ToInches(shape.Box.Width)
	h := geometry.ToInches(shape.Box.Height)
	rect := image.Rect(c.px(x), c.px(y), c.px(x+w), c.px(y+h))
	if !rect.Overlaps(c.img.Bounds()) {
		return
	}

	switch shape.Kind {
	case slides.KindText:
		c.drawText(rect, x, h, shape.Text)
	case slides.KindTable:
		c.drawTable(rect, shape.Table)
	case slides.KindChart:
		c.drawChart(rect, shape.Chart)
	case slides.KindImage:
		c.drawImage(rect)
	}
}

func (c *canvas) px(inches float64) int {
	return geometry.InchesToPixels(inches, c.dpi)
}

// textSizePt estimates a font size from box height alone.
func textSizePt(heightIn float64) float64 {
	return math.Min(math.Max(heightIn*6, minTextPt), maxTextPt)
}

func (c *canvas) drawText(rect image.Rectangle, leftIn, heightIn float64, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	display := truncate(text, textCharLimit, "...")
	face := c.faces.face(textSizePt(heightIn), false)
	lines := strings.Split(display, "\n")
	x := c.px(leftIn + 0.1)
	drawLines(c.img, face, colorText, lines, x, rect.Min.Y+rect.Dy()/2, alignLeft)
}

func (c *canvas) drawTable(rect image.Rectangle, table *slides.Table) {
	rows, cols := table.Rows(), table.Cols()
	if rows == 0 || cols == 0 {
		return
	}
	cellW := float64(rect.Dx()) / float64(cols)
	cellH := float64(rect.Dy()) / float64(rows)
	for row := 0; row < rows; row++ {
		fill := colorRowFill
		switch {
		case row == 0:
			fill = colorHeaderFill
		case row%2 == 0:
			fill = colorStripeFill
		}
		for col := 0; col < cols; col++ {
			x0 := rect.Min.X + int(math.Round(float64(col)*cellW))
			y0 := rect.Min.Y + int(math.Round(float64(row)*cellH))
			x1 := rect.Min.X + int(math.Round(float64(col+1)*cellW))
			y1 := rect.Min.Y + int(math.Round(float64(row+1)*cellH))
			cell := image.Rect(x0, y0, x1, y1)
			fillRect(c.img, cell, fill)
			strokeRect(c.img, cell, colorCellBorder, 1)

			text := strings.TrimSpace(table.Cell(row, col))
			if text == "" {
				continue
			}
			sizePt, bold := 6.0, false
			if row == 0 {
				sizePt, bold = 7.0, true
			}
			face := c.faces.face(sizePt, bold)
			clip := c.img.SubImage(cell).(*image.RGBA)
			drawLines(clip, face, colorText, []string{truncate(text, cellCharLimit, "..")}, cell.Min.X+cell.Dx()/2, cell.Min.Y+cell.Dy()/2, alignCenter)
		}
	}
}

func (c *canvas) drawChart(rect image.Rectangle, chart *slides.Chart) {
	radius := c.px(0.05)
	border := max(1, int(math.Round(1.5*c.dpi/72)))
	fillRoundedRect(c.img, rect, radius, colorChartFill)
	strokeRoundedRect(c.img, rect, radius, border, colorChartAccent)
	label := "[Chart]"
	if chart != nil && strings.TrimSpace(chart.Title) != "" {
		label = strings.TrimSpace(chart.Title)
	}
	face := c.faces.face(9, true)
	drawLines(c.img, face, colorChartAccent, []string{label}, rect.Min.X+rect.Dx()/2, rect.Min.Y+rect.Dy()/2, alignCenter)
}

func (c *canvas) drawImage(rect image.Rectangle) {
	fillRect(c.img, rect, colorImageFill)
	dash := max(2, c.px(0.06))
	strokeDashedRect(c.img, rect, colorImageBorder, dash, dash*2/3)
	face := c.faces.face(8, false)
	drawLines(c.img, face, colorImageBorder, []string{"[Image]"}, rect.Min.X+rect.Dx()/2, rect.Min.Y+rect.Dy()/2, alignCenter)
}

// truncate cuts s to limit runes and appends suffix when it was cut.
func truncate(s string, limit int, suffix string) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + suffix
}
