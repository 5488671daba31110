// Package retry runs an operation again after failures, waiting according to
// a BackoffStrategy between attempts.
//
//	cfg := retry.FromSettings(cfg.Retry, log) // 1 try + 3 retries, 1s 2s 4s
//	err := retry.Do(ctx, cfg, func(ctx context.Context, attempt int) error {
//	    return fetch(ctx, url)
//	})
//
// When every attempt fails, Do returns an *ExhaustedError wrapping the last
// error. Errors rejected by RetryIf are returned unchanged.
package retry
