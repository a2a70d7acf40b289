package preview

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

type alignment int

const (
	alignLeft alignment = iota
	alignCenter
)

// fillRect fills r clipped to the destination bounds.
func fillRect(dst *image.RGBA, r image.Rectangle, c color.Color) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, &image.Uniform{c}, image.Point{}, draw.Src)
}

// strokeRect draws an outline of the given width inside r.
func strokeRect(dst *image.RGBA, r image.Rectangle, c color.Color, width int) {
	if width < 1 {
		width = 1
	}
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width), c)
	fillRect(dst, image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y), c)
}

// strokeDashedRect draws a 1px dashed outline. Only the part of r inside
// dst is walked; the dash phase stays anchored at r.Min.
func strokeDashedRect(dst *image.RGBA, r image.Rectangle, c color.Color, dash, gap int) {
	if dash < 1 {
		dash = 1
	}
	if gap < 1 {
		gap = 1
	}
	clip := r.Intersect(dst.Bounds())
	if clip.Empty() {
		return
	}
	step := dash + gap
	for x := dashStart(r.Min.X, clip.Min.X, step); x < clip.Max.X; x += step {
		end := min(x+dash, r.Max.X)
		fillRect(dst, image.Rect(x, r.Min.Y, end, r.Min.Y+1), c)
		fillRect(dst, image.Rect(x, r.Max.Y-1, end, r.Max.Y), c)
	}
	for y := dashStart(r.Min.Y, clip.Min.Y, step); y < clip.Max.Y; y += step {
		end := min(y+dash, r.Max.Y)
		fillRect(dst, image.Rect(r.Min.X, y, r.Min.X+1, end), c)
		fillRect(dst, image.Rect(r.Max.X-1, y, r.Max.X, end), c)
	}
}

// dashStart returns the first dash origin at or before lo, counting from origin.
func dashStart(origin, lo, step int) int {
	if lo <= origin {
		return origin
	}
	return origin + (lo-origin)/step*step
}

// insideRounded reports whether pixel (x, y) lies within r with corners of
// the given radius cut away.
func insideRounded(r image.Rectangle, radius, x, y int) bool {
	if !(image.Point{X: x, Y: y}).In(r) {
		return false
	}
	var cx, cy int
	switch {
	case x < r.Min.X+radius:
		cx = r.Min.X + radius
	case x >= r.Max.X-radius:
		cx = r.Max.X - radius - 1
	default:
		return true
	}
	switch {
	case y < r.Min.Y+radius:
		cy = r.Min.Y + radius
	case y >= r.Max.Y-radius:
		cy = r.Max.Y - radius - 1
	default:
		return true
	}
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= radius*radius
}

func clampRadius(r image.Rectangle, radius int) int {
	limit := min(r.Dx(), r.Dy()) / 2
	if radius > limit {
		radius = limit
	}
	if radius < 0 {
		radius = 0
	}
	return radius
}

func fillRoundedRect(dst *image.RGBA, r image.Rectangle, radius int, c color.Color) {
	radius = clampRadius(r, radius)
	clip := r.Intersect(dst.Bounds())
	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		for x := clip.Min.X; x < clip.Max.X; x++ {
			if insideRounded(r, radius, x, y) {
				dst.Set(x, y, c)
			}
		}
	}
}

// strokeRoundedRect paints the band between r and r inset by width.
func strokeRoundedRect(dst *image.RGBA, r image.Rectangle, radius, width int, c color.Color) {
	radius = clampRadius(r, radius)
	inner := r.Inset(width)
	innerRadius := max(0, radius-width)
	clip := r.Intersect(dst.Bounds())
	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		for x := clip.Min.X; x < clip.Max.X; x++ {
			if insideRounded(r, radius, x, y) && !insideRounded(inner, innerRadius, x, y) {
				dst.Set(x, y, c)
			}
		}
	}
}

// drawLines draws lines as a block vertically centered on centerY. With
// alignCenter, x is the horizontal center; otherwise it is the left edge.
func drawLines(dst draw.Image, face font.Face, c color.Color, lines []string, x, centerY int, align alignment) {
	if len(lines) == 0 {
		return
	}
	m := face.Metrics()
	lineH := m.Height.Ceil()
	if lineH <= 0 {
		lineH = (m.Ascent + m.Descent).Ceil()
	}
	blockH := lineH * len(lines)
	baseline := centerY - blockH/2 + m.Ascent.Ceil()

	d := &font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: face}
	for i, line := range lines {
		startX := fixed.I(x)
		if align == alignCenter {
			startX -= d.MeasureString(line) / 2
		}
		d.Dot = fixed.Point26_6{X: startX, Y: fixed.I(baseline + i*lineH)}
		d.DrawString(line)
	}
}
