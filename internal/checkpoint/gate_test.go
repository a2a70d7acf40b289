package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"
)

type gateResult struct {
	ok  bool
	err error
}

func waitForPending(t *testing.T, s *Store) Checkpoint {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if pending := s.ListPending(); len(pending) == 1 {
			return pending[0]
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("no pending checkpoint appeared")
	return Checkpoint{}
}

func runGate(g *Gate, ctx context.Context, phase string) <-chan gateResult {
	ch := make(chan gateResult, 1)
	go func() {
		ok, err := g.OnCheckpoint(ctx, "design_pipeline", phase, map[string]any{"slideCount": 2})
		ch <- gateResult{ok: ok, err: err}
	}()
	return ch
}

func TestGateApproveReleasesWaiter(t *testing.T) {
	s := NewStore(nil)
	g := NewGate(s, SemiSupervised)
	ch := runGate(g, context.Background(), PhaseDesignSpecApproval)

	cp := waitForPending(t, s)
	if cp.WorkerName != "design_pipeline" || cp.Phase != PhaseDesignSpecApproval {
		t.Fatalf("unexpected checkpoint %+v", cp)
	}
	if _, err := g.Approve(cp.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	select {
	case res := <-ch:
		if !res.ok || res.err != nil {
			t.Fatalf("expected approval, got %+v", res)
		}
	case <-time.After(time.Second):
		t.Fatalf("waiter not released")
	}
}

func TestGateRejectReturnsFalse(t *testing.T) {
	s := NewStore(nil)
	g := NewGate(s, Manual)
	ch := runGate(g, context.Background(), "render")

	cp := waitForPending(t, s)
	if _, err := g.Reject(cp.ID, "wrong template"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	res := <-ch
	if res.ok || res.err != nil {
		t.Fatalf("expected rejection, got %+v", res)
	}
}

func TestGateSkipsUngatedPhase(t *testing.T) {
	s := NewStore(nil)
	ok, err := NewGate(s, SemiSupervised).OnCheckpoint(context.Background(), "w", "internal_step", nil)
	if !ok || err != nil {
		t.Fatalf("expected pass-through, got %v %v", ok, err)
	}
	ok, err = NewGate(s, Autonomous).OnCheckpoint(context.Background(), "w", PhaseDeliverable, nil)
	if !ok || err != nil {
		t.Fatalf("expected pass-through, got %v %v", ok, err)
	}
	if len(s.ListPending()) != 0 {
		t.Fatalf("expected no checkpoints recorded")
	}
}

func TestGateCancelLeavesCheckpointPending(t *testing.T) {
	s := NewStore(nil)
	g := NewGate(s, Manual)
	ctx, cancel := context.WithCancel(context.Background())
	ch := runGate(g, ctx, "render")

	cp := waitForPending(t, s)
	cancel()
	res := <-ch
	if res.ok || !errors.Is(res.err, context.Canceled) {
		t.Fatalf("expected cancellation, got %+v", res)
	}
	if !s.IsPending(cp.ID) {
		t.Fatalf("expected checkpoint to stay pending")
	}
}

func TestGateTimeout(t *testing.T) {
	s := NewStore(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ok, err := NewGate(s, Manual).OnCheckpoint(ctx, "w", "render", nil)
	if ok || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v %v", ok, err)
	}
}

func TestAutoApprove(t *testing.T) {
	ok, err := AutoApprove{}.OnCheckpoint(context.Background(), "w", PhaseDeliverable, nil)
	if !ok || err != nil {
		t.Fatalf("expected auto approval")
	}
}
