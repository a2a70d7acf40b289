package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"deck-backend/internal/runs"
	"deck-backend/internal/slides"
)

// RunStartCmd submits a deck to the design pipeline.
type RunStartCmd struct {
	Deck     string        `arg:"" help:"Deck document (.json, .yaml or .yml)." type:"existingfile"`
	Autonomy string        `help:"manual, semi_supervised or autonomous. Empty uses the server default."`
	Validate bool          `help:"Score the refined deck."`
	NoRefine bool          `help:"Skip layout refinement."`
	Wait     time.Duration `help:"Poll until the run finishes or this long has passed." default:"0s"`
}

func (c *RunStartCmd) Run(ctx *Context) error {
	data, err := os.ReadFile(c.Deck)
	if err != nil {
		return fmt.Errorf("read deck: %w", err)
	}
	codec := slides.CodecFor(filepath.Ext(c.Deck))
	opts := StartRunOptions{Autonomy: c.Autonomy}
	if c.Validate {
		v := true
		opts.Validate = &v
	}
	if c.NoRefine {
		v := false
		opts.Refine = &v
	}
	run, err := ctx.API.StartRun(context.Background(), data, codec.ContentType(), opts)
	if err != nil {
		return err
	}
	ctx.Log.Info("run started", "id", run.ID, "slides", run.SlideCount, "autonomy", run.Autonomy)
	if c.Wait <= 0 {
		return printRun(ctx, run)
	}

	deadline := time.Now().Add(c.Wait)
	for !run.Terminal() && time.Now().Before(deadline) {
		time.Sleep(time.Second)
		if run, err = ctx.API.GetRun(context.Background(), run.ID); err != nil {
			return err
		}
		if run.Status == runs.StatusAwaitingReview {
			ctx.Log.Info("awaiting review", "id", run.ID, "phase", run.Phase)
		}
	}
	return printRun(ctx, run)
}

// RunGetCmd prints one run.
type RunGetCmd struct {
	ID string `arg:"" help:"Run ID."`
}

func (c *RunGetCmd) Run(ctx *Context) error {
	run, err := ctx.API.GetRun(context.Background(), c.ID)
	if err != nil {
		return err
	}
	return printRun(ctx, run)
}

func printRun(ctx *Context, run runs.Run) error {
	enc := json.NewEncoder(ctx.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}
