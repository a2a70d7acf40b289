package openai

import "fmt"

const refinementSystemPrompt = `You are a presentation layout quality inspector. Analyze the slide image for POSITIONING issues only:

1. Content overlapping decorative or header elements
2. Text overflowing its placeholder bounds
3. Charts or tables placed outside the content area
4. Elements closer than 0.3 inches to a slide edge
5. Elements overlapping each other

Respond with JSON only, no markdown, using exactly this shape:
{"score": <0-10>, "is_acceptable": <bool>, "position_fixes": [{"shape_name": "", "issue": "", "fix_type": "move|resize|font_reduce", "new_left": <int>, "new_top": <int>, "new_width": <int>, "new_height": <int>}]}

Geometry is in EMU (1 inch = 914400 EMU). Include only the geometry fields that need to change. Set is_acceptable to true when score >= %.1f.`

const validationSystemPrompt = `You are a senior presentation designer at a top-tier consulting firm. Evaluate the slide preview image for visual quality.

Score the slide from 0 to 10:
- 0-3: unacceptable (poor layout, clashing colors, unreadable text)
- 4-5: needs improvement (functional but unprofessional)
- 6-7: acceptable (clean, readable, reasonable styling)
- 8-9: professional (polished, cohesive, consulting quality)
- 10: exceptional

Criteria: alignment, color, typography, spacing, charts, tables, visual hierarchy.

Respond with JSON only, no markdown, using exactly this shape:
{"score": <0-10>, "issues": [{"severity": "minor|moderate|critical", "category": "alignment|color|typography|spacing|chart|table|hierarchy", "description": "", "suggestion": ""}], "strengths": [""]}`

func refinementSystem(threshold float64) string {
	return fmt.Sprintf(refinementSystemPrompt, threshold)
}

func refinementUser(slideIndex int) string {
	return fmt.Sprintf("Evaluate slide %d for positioning quality.", slideIndex)
}

func validationUser(slideIndex, slideCount int) string {
	return fmt.Sprintf("Evaluate slide %d of %d.", slideIndex+1, slideCount)
}
