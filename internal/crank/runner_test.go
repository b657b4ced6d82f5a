package crank

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"twammEngine/internal/engine"
	"twammEngine/internal/errs"
)

type scriptedCranker struct {
	mu    sync.Mutex
	errs  map[common.Address][]error
	calls map[common.Address]int
}

func newScriptedCranker() *scriptedCranker {
	return &scriptedCranker{errs: make(map[common.Address][]error), calls: make(map[common.Address]int)}
}

func (c *scriptedCranker) Crank(_ context.Context, req engine.CrankRequest) (engine.CrankResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[req.Pair]++
	if queue := c.errs[req.Pair]; len(queue) > 0 {
		c.errs[req.Pair] = queue[1:]
		if queue[0] != nil {
			return engine.CrankResult{}, queue[0]
		}
	}
	return engine.CrankResult{NetRequired: -5, Routed: true}, nil
}

var (
	pairOne   = common.HexToAddress("0x11")
	pairTwo   = common.HexToAddress("0x22")
	pairThree = common.HexToAddress("0x33")
)

func TestRunOnceRetriesPolicyErrors(t *testing.T) {
	cranker := newScriptedCranker()
	cranker.errs[pairOne] = []error{fmt.Errorf("%w: old", errs.ErrStaleOraclePrice), nil}
	cranker.errs[pairTwo] = []error{fmt.Errorf("%w: off", errs.ErrCranksNotAllowed)}
	cranker.errs[pairThree] = []error{errs.ErrNothingToSettle}

	path := filepath.Join(t.TempDir(), "crank.json")
	r := NewRunner(RunConfig{
		Pairs:          []common.Address{pairOne, pairTwo, pairThree},
		MaxRetries:     3,
		RetryBackoff:   time.Millisecond,
		CheckpointPath: path,
	}, cranker, nil)

	outcomes, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(outcomes))
	}
	if outcomes[0].Err != nil || !outcomes[0].Result.Routed {
		t.Fatalf("pair one should succeed after retry: %+v", outcomes[0])
	}
	if !errors.Is(outcomes[1].Err, errs.ErrCranksNotAllowed) {
		t.Fatalf("pair two error = %v", outcomes[1].Err)
	}
	if !outcomes[2].Skipped || outcomes[2].Err != nil {
		t.Fatalf("pair three should be skipped: %+v", outcomes[2])
	}
	if cranker.calls[pairOne] != 2 || cranker.calls[pairTwo] != 1 || cranker.calls[pairThree] != 1 {
		t.Fatalf("unexpected calls: %v", cranker.calls)
	}

	cp, ok, err := NewCheckpointStore(path).Load()
	if err != nil || !ok {
		t.Fatalf("load checkpoint: ok=%v err=%v", ok, err)
	}
	if got := cp.Pairs[pairOne]; got.NetRequired != -5 || !got.Routed || got.LastCrankedAt == "" {
		t.Fatalf("pair one checkpoint = %+v", got)
	}
	if got := cp.Pairs[pairTwo]; got.LastError == "" {
		t.Fatalf("pair two checkpoint should record the error")
	}
	if _, ok := cp.Pairs[pairThree]; ok {
		t.Fatalf("skipped pair should not be checkpointed")
	}
}

func TestRunOnceGivesUpAfterMaxRetries(t *testing.T) {
	cranker := newScriptedCranker()
	cranker.errs[pairOne] = []error{errs.ErrMaxSlippage, errs.ErrMaxSlippage, errs.ErrMaxSlippage}

	r := NewRunner(RunConfig{Pairs: []common.Address{pairOne}, MaxRetries: 1, RetryBackoff: time.Millisecond}, cranker, nil)
	outcomes, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if !errors.Is(outcomes[0].Err, errs.ErrMaxSlippage) {
		t.Fatalf("error = %v", outcomes[0].Err)
	}
	if cranker.calls[pairOne] != 2 {
		t.Fatalf("calls = %d, want 2", cranker.calls[pairOne])
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cranker := newScriptedCranker()
	r := NewRunner(RunConfig{Pairs: []common.Address{pairOne}, Interval: time.Millisecond}, cranker, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := r.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("run error = %v", err)
	}
	if cranker.calls[pairOne] == 0 {
		t.Fatalf("expected at least one crank")
	}
}

func TestRunValidatesConfig(t *testing.T) {
	if _, err := NewRunner(RunConfig{}, newScriptedCranker(), nil).RunOnce(context.Background()); err == nil {
		t.Fatalf("expected error without pairs")
	}
	if err := NewRunner(RunConfig{Pairs: []common.Address{pairOne}}, newScriptedCranker(), nil).Run(context.Background()); err == nil {
		t.Fatalf("expected error without interval")
	}
}

func TestCheckpointRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := NewCheckpointStore(dir).Load(); err == nil {
		t.Fatalf("expected error for directory path")
	}
	if _, ok, err := NewCheckpointStore("").Load(); ok || err != nil {
		t.Fatalf("disabled store: ok=%v err=%v", ok, err)
	}
}
