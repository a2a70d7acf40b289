package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"deck-backend/internal/preview"
	"deck-backend/internal/shared/util"
	"deck-backend/internal/slides"
)

// RenderCmd renders a deck document to PNG files locally.
type RenderCmd struct {
	Deck    string  `arg:"" help:"Deck document (.json, .yaml or .yml)." type:"existingfile"`
	Out     string  `help:"Output directory." default:"."`
	DPI     float64 `help:"Render resolution." default:"150"`
	Workers int     `help:"Concurrent slide renders." default:"4"`
}

func (c *RenderCmd) Run(ctx *Context) error {
	data, err := os.ReadFile(c.Deck)
	if err != nil {
		return fmt.Errorf("read deck: %w", err)
	}
	deck, err := slides.CodecFor(filepath.Ext(c.Deck)).Decode(data)
	if err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(c.Deck), filepath.Ext(c.Deck))
	name, err := util.SanitizeName(base)
	if err != nil {
		return fmt.Errorf("deck name %q: %w", base, err)
	}
	if err := os.MkdirAll(c.Out, 0o755); err != nil {
		return err
	}

	fonts := preview.NewFontCache()
	if ok, reason := fonts.Probe(); !ok {
		ctx.Log.Warn("vector fonts unavailable; using bitmap fallback", "reason", reason)
	}
	renderer := preview.NewRenderer(preview.Options{DPI: c.DPI, Workers: c.Workers}, fonts)
	frames, err := renderer.RenderDeck(context.Background(), deck)
	if err != nil {
		return err
	}
	for _, f := range frames {
		path := filepath.Join(c.Out, fmt.Sprintf("%s-slide-%03d.png", name, f.SlideIndex+1))
		if err := os.WriteFile(path, f.PNG, 0o644); err != nil {
			return err
		}
		ctx.Log.Debug("wrote frame", "path", path, "bytes", len(f.PNG))
	}
	ctx.Log.Info("rendered deck", "slides", len(frames), "out", c.Out)
	return nil
}
