package web

import (
	"time"

	"github.com/consentry/consentry/db"
	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"
)

const (
	// quiet window for the network idle strategies
	idleWindow = 500 * time.Millisecond
	// settle sleep when the combined strategy times out
	combinedFallbackSleep = 2 * time.Second
)

const readyStateInteractiveJS = `() => document.readyState === 'interactive' || document.readyState === 'complete'`

// WaitForPage runs the configured wait strategy after navigation. The
// returned value is informational; a page that never settles is still
// scanned with whatever state it reached. idle is the request-idle waiter
// registered before navigation, nil for strategies that do not need one.
func WaitForPage(page *rod.Page, strategy db.WaitStrategy, budget time.Duration, idle func()) bool {
	switch strategy {
	case db.WaitStrategyTimeout:
		time.Sleep(budget)
		return true
	case db.WaitStrategyDOMContentLoaded:
		return waitDOMContentLoaded(page, budget)
	case db.WaitStrategyNetworkIdle:
		return waitIdle(idle, budget)
	case db.WaitStrategyLoad:
		err := page.Timeout(budget).WaitLoad()
		if err != nil {
			log.Debug().Err(err).Msg("Page load wait did not complete within budget")
		}
		return err == nil
	case db.WaitStrategyCombined:
		half := budget / 2
		domOk := waitDOMContentLoaded(page, half)
		idleOk := waitIdle(idle, half)
		if !domOk || !idleOk {
			time.Sleep(combinedFallbackSleep)
			return false
		}
		return true
	default:
		time.Sleep(budget)
		return true
	}
}

func waitDOMContentLoaded(page *rod.Page, budget time.Duration) bool {
	err := page.Timeout(budget).Wait(rod.Eval(readyStateInteractiveJS))
	if err != nil {
		log.Debug().Err(err).Msg("DOMContentLoaded wait did not complete within budget")
	}
	return err == nil
}

// waitIdle bounds the pre-registered request-idle waiter to the budget. The
// waiter goroutine unwinds on its own when the page context ends.
func waitIdle(idle func(), budget time.Duration) bool {
	if idle == nil {
		return false
	}
	done := make(chan struct{})
	go func() {
		idle()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(budget):
		return false
	}
}

// NeedsIdleWaiter reports whether the strategy requires the request-idle
// listener to be registered before navigation.
func NeedsIdleWaiter(strategy db.WaitStrategy) bool {
	return strategy == db.WaitStrategyNetworkIdle || strategy == db.WaitStrategyCombined
}
