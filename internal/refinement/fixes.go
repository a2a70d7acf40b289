package refinement

import (
	"math"

	"deck-backend/internal/evaluator"
	"deck-backend/internal/slides"
)

// ApplyFixes mutates shape geometry in deck for every fix whose
// (slide_index, shape_name) matches a shape, and returns how many matched.
// Unmatched fixes are ignored. Only provided geometry fields change; values
// are truncated toward zero. A fix carrying a value beyond maxFixUnits in
// magnitude is dropped whole and not counted.
func ApplyFixes(deck *slides.Deck, fixes []evaluator.PositionFix) int {
	applied := 0
	for _, fix := range fixes {
		if fix.ShapeName == "" {
			continue
		}
		shape, ok := deck.FindShape(fix.SlideIndex, fix.ShapeName)
		if !ok {
			continue
		}
		if applyFix(shape, fix) {
			applied++
		}
	}
	return applied
}

// maxFixUnits bounds accepted geometry values to the exactly representable
// float64 integer range.
const maxFixUnits = 1 << 53

func applyFix(shape *slides.Shape, fix evaluator.PositionFix) bool {
	for _, v := range []*float64{fix.NewLeft, fix.NewTop, fix.NewWidth, fix.NewHeight} {
		if v != nil && math.Abs(*v) > maxFixUnits {
			return false
		}
	}
	left, lok := units(fix.NewLeft)
	top, tok := units(fix.NewTop)
	width, wok := units(fix.NewWidth)
	height, hok := units(fix.NewHeight)
	if !lok && !tok && !wok && !hok {
		return true
	}
	if shape.Box == nil {
		shape.Box = &slides.Box{}
	}
	if lok {
		shape.Box.Left = left
	}
	if tok {
		shape.Box.Top = top
	}
	if wok {
		shape.Box.Width = width
	}
	if hok {
		shape.Box.Height = height
	}
	return true
}

// units reports a usable geometry value; nil and non-finite values are absent.
func units(v *float64) (int64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return int64(*v), true
}
