package web

import (
	"context"
	"math"
	"time"

	"github.com/consentry/consentry/db"
	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Visitor navigates pages with retries and the configured wait strategy.
type Visitor struct {
	NavigationTimeout time.Duration
	MaxRetries        int
}

func NewVisitor(params db.ScanParams) *Visitor {
	timeout := time.Duration(viper.GetInt("navigation.timeout")) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	// nil means the caller did not choose; an explicit 0 disables retries
	retries := viper.GetInt("navigation.max_retries")
	if params.MaxRetries != nil {
		retries = *params.MaxRetries
	}
	return &Visitor{
		NavigationTimeout: timeout,
		MaxRetries:        retries,
	}
}

// Visit navigates to url and runs the wait strategy. Navigation failures
// are retried with exponential backoff; exhausting the retries fails the
// visit. The wait strategy outcome never does.
func (v *Visitor) Visit(ctx context.Context, page *rod.Page, url string, strategy db.WaitStrategy, waitBudget time.Duration) error {
	var lastErr error
	for attempt := 0; attempt <= v.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := backoffDelay(attempt)
			log.Debug().Str("url", url).Int("attempt", attempt).Dur("backoff", backoff).Msg("Retrying navigation")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		p := page.Context(ctx).Timeout(v.NavigationTimeout)

		var idle func()
		if NeedsIdleWaiter(strategy) {
			idle = p.WaitRequestIdle(idleWindow, nil, nil, nil)
		}

		if err := p.Navigate(url); err != nil {
			lastErr = err
			log.Warn().Err(err).Str("url", url).Int("attempt", attempt).Msg("Navigation failed")
			continue
		}

		settled := WaitForPage(p, strategy, waitBudget, idle)
		if !settled {
			log.Debug().Str("url", url).Str("strategy", string(strategy)).Msg("Page did not settle within wait budget")
		}
		return nil
	}
	return lastErr
}

// backoffDelay is min(2^attempt, 60) seconds.
func backoffDelay(attempt int) time.Duration {
	seconds := math.Min(math.Pow(2, float64(attempt)), 60)
	return time.Duration(seconds) * time.Second
}
