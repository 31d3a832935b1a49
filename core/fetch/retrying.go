package fetch

import (
	"context"
	"log/slog"

	"github.com/gaurav-prasanna/bookpipe/core"
	"github.com/gaurav-prasanna/bookpipe/core/retry"
)

// Retrying wraps a Fetcher so every call runs under a retry policy.
type Retrying struct {
	Fetcher core.Fetcher
	Policy  retry.Policy
	Logger  *slog.Logger
}

// Fetch implements core.Fetcher.
func (r *Retrying) Fetch(ctx context.Context, url string) (*core.FetchResult, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var result *core.FetchResult
	err := retry.Do(ctx, r.Policy, logger.With("url", url), func(ctx context.Context) error {
		res, err := r.Fetcher.Fetch(ctx, url)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
