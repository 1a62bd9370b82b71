package backtest

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of one request in a batch. Err is per request;
// one failing request does not stop the others.
type BatchResult struct {
	Request Request `json:"request"`
	Result  *Result `json:"result,omitempty"`
	RunID   string  `json:"run_id,omitempty"`
	Err     error   `json:"-"`
	Error   string  `json:"error,omitempty"`
}

// RunBatch runs requests concurrently with at most workers in flight.
// Results keep the order of reqs.
func (b *Backtest) RunBatch(ctx context.Context, reqs []Request, workers int) []BatchResult {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([]BatchResult, len(reqs))
	g := new(errgroup.Group)
	g.SetLimit(workers)

	for i, req := range reqs {
		g.Go(func() error {
			res := BatchResult{Request: req}
			if err := ctx.Err(); err != nil {
				res.Err = err
			} else {
				res.Result, res.RunID, res.Err = b.Run(ctx, req)
			}
			if res.Err != nil {
				res.Error = res.Err.Error()
				b.logger.Warn().Err(res.Err).Str("symbol", req.Symbol).Str("strategy", req.Strategy).Msg("Batch backtest failed")
			}
			out[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return out
}
