package analysis

import (
	"context"
	"time"

	"github.com/NagataYushi0222/InsightDebateBot/pkg/analyzer"
)

// sleepFunc waits for d or until ctx is cancelled. Injectable so tests do
// not spend wall time on backoff.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryAnalyze calls the provider up to maxAttempts times. Only transient
// failures are retried; the backoff starts at baseDelay and doubles per
// retry. onRetry is invoked before each re-attempt with the attempt number
// just failed and its error.
func retryAnalyze(ctx context.Context, p analyzer.Provider, req analyzer.Request, maxAttempts int, baseDelay time.Duration, sleep sleepFunc, onRetry func(attempt int, err error)) (*analyzer.Result, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	delay := baseDelay

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err := p.Analyze(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if analyzer.KindOf(err) != analyzer.KindTransient || attempt == maxAttempts {
			break
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2
	}
	return nil, lastErr
}
