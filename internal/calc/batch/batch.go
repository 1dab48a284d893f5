package batch

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"Facestab/internal/calc/facestab"
)

// MaxItems bounds one batch request.
const MaxItems = 200

type Input struct {
	Items   []facestab.Request `json:"items"`
	Workers int                `json:"workers,omitempty"`
}

// Item is the outcome of one request. Error is set when the analysis could
// not produce a governing pressure; Result still carries the diagnostics.
type Item struct {
	Index  int             `json:"index"`
	Title  string          `json:"title,omitempty"`
	Result facestab.Result `json:"result"`
	Error  string          `json:"error,omitempty"`
}

type Result struct {
	Results []Item `json:"results"`
	Failed  int    `json:"failed"`
	// Worst is the index of the item with the highest governing pressure, or -1.
	Worst int `json:"worst"`
}

// Run solves every item, up to workers at a time. Per-item failures are kept
// in the items; only cancellation aborts the batch.
func Run(ctx context.Context, rn facestab.Runner, in Input) (Result, error) {
	if len(in.Items) == 0 {
		return Result{}, fmt.Errorf("%w: no items", facestab.ErrValidation)
	}
	if len(in.Items) > MaxItems {
		return Result{}, fmt.Errorf("%w: %d items exceed the limit of %d", facestab.ErrValidation, len(in.Items), MaxItems)
	}
	workers := in.Workers
	if workers <= 0 {
		workers = 4
	}

	out := Result{Results: make([]Item, len(in.Items)), Worst: -1}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, req := range in.Items {
		g.Go(func() error {
			res, err := rn.Run(gctx, req)
			item := Item{Index: i, Title: req.Title, Result: res}
			if err != nil {
				if errors.Is(err, facestab.ErrCancelled) {
					return err
				}
				item.Error = err.Error()
			}
			out.Results[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	for i, item := range out.Results {
		if item.Error != "" {
			out.Failed++
			continue
		}
		if out.Worst < 0 || item.Result.GoverningPressure() > out.Results[out.Worst].Result.GoverningPressure() {
			out.Worst = i
		}
	}
	return out, nil
}
