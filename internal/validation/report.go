package validation

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// Markdown renders res as a Markdown document grouped by slide.
func Markdown(res Result) string {
	var b strings.Builder
	b.WriteString("# Validation report\n\n")
	fmt.Fprintf(&b, "**Overall score:** %.1f/10\n\n", res.OverallScore)
	b.WriteString(res.Summary)
	b.WriteString("\n")

	if len(res.SlideScores) > 0 {
		b.WriteString("\n## Slide scores\n\n| Slide | Score |\n|---:|---:|\n")
		for i, s := range res.SlideScores {
			fmt.Fprintf(&b, "| %d | %.1f |\n", i+1, s)
		}
	}

	if len(res.Issues) > 0 {
		b.WriteString("\n## Issues\n\n| Slide | Severity | Category | Description | Suggestion |\n|---:|---|---|---|---|\n")
		for _, is := range res.Issues {
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
				is.SlideIndex+1, is.Severity, cell(is.Category), cell(is.Description), cell(is.Suggestion))
		}
	}

	if len(res.Strengths) > 0 {
		b.WriteString("\n## Strengths\n\n")
		for _, s := range res.Strengths {
			fmt.Fprintf(&b, "- %s\n", oneLine(s))
		}
	}
	return b.String()
}

// HTML renders the Markdown report to an HTML fragment. Raw HTML in
// evaluator text is not passed through.
func HTML(res Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(Markdown(res)), &buf); err != nil {
		return nil, fmt.Errorf("render report html: %w", err)
	}
	return buf.Bytes(), nil
}

func cell(s string) string {
	return strings.ReplaceAll(oneLine(s), "|", "\\|")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
