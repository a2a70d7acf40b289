package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"
)

// CheckpointListCmd prints pending checkpoints.
type CheckpointListCmd struct{}

func (c *CheckpointListCmd) Run(ctx *Context) error {
	items, err := ctx.API.ListCheckpoints(context.Background())
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(ctx.Out, "No pending checkpoints.")
		return nil
	}
	tw := tabwriter.NewWriter(ctx.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWORKER\tPHASE\tAGE")
	for _, cp := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", cp.ID, cp.WorkerName, cp.Phase, time.Since(cp.CreatedAt).Round(time.Second))
	}
	return tw.Flush()
}

// CheckpointApproveCmd approves a pending checkpoint.
type CheckpointApproveCmd struct {
	ID string `arg:"" help:"Checkpoint ID."`
}

func (c *CheckpointApproveCmd) Run(ctx *Context) error {
	cp, err := ctx.API.ApproveCheckpoint(context.Background(), c.ID)
	if err != nil {
		return fmt.Errorf("approve %s: %w", c.ID, err)
	}
	ctx.Log.Info("approved", "id", cp.ID, "phase", cp.Phase)
	return nil
}

// CheckpointRejectCmd rejects a pending checkpoint.
type CheckpointRejectCmd struct {
	ID     string `arg:"" help:"Checkpoint ID."`
	Reason string `help:"Why the deliverable was rejected."`
}

func (c *CheckpointRejectCmd) Run(ctx *Context) error {
	cp, err := ctx.API.RejectCheckpoint(context.Background(), c.ID, c.Reason)
	if err != nil {
		return fmt.Errorf("reject %s: %w", c.ID, err)
	}
	ctx.Log.Info("rejected", "id", cp.ID, "phase", cp.Phase, "reason", cp.RejectionReason)
	return nil
}

// CheckpointClearCmd drops every checkpoint held by the server.
type CheckpointClearCmd struct {
	Yes bool `help:"Confirm the reset." short:"y"`
}

func (c *CheckpointClearCmd) Run(ctx *Context) error {
	if !c.Yes {
		return fmt.Errorf("refusing to clear checkpoints without --yes")
	}
	dropped, err := ctx.API.ClearCheckpoints(context.Background())
	if err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	ctx.Log.Warn("cleared checkpoints", "dropped_pending", dropped)
	return nil
}
