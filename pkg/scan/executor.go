package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/consentry/consentry/db"
	"github.com/consentry/consentry/internal/browser"
	"github.com/consentry/consentry/lib"
	"github.com/consentry/consentry/pkg/classify"
	"github.com/consentry/consentry/pkg/scan/progress"
	"github.com/consentry/consentry/pkg/web"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Scan modes. Realtime behaves like quick but is meant for callers
// following the live progress stream.
const (
	ModeQuick    = "quick"
	ModeDeep     = "deep"
	ModeRealtime = "realtime"
)

const browserAcquireTimeout = 60 * time.Second

// Request describes one scan to perform.
type Request struct {
	DomainConfigID string
	Domain         string
	Mode           string
	Params         db.ScanParams
}

// ResultStore is the persistence surface the executor writes through.
type ResultStore interface {
	CreateScanResult(item *db.ScanResult) (*db.ScanResult, error)
	GetScanResultByID(id uuid.UUID) (*db.ScanResult, error)
	UpdateScanResult(item *db.ScanResult) error
	RecordScanCancellation(id uuid.UUID, durationSeconds float64) error
	CreateCookies(items []db.Cookie) error
}

// Executor performs scans end to end: browser acquisition, page visits,
// cookie and storage collection, classification and persistence.
type Executor struct {
	store      ResultStore
	pool       *browser.Pool
	classifier *classify.Classifier
	bus        *progress.Bus
}

func NewExecutor(store ResultStore, pool *browser.Pool, classifier *classify.Classifier, bus *progress.Bus) *Executor {
	return &Executor{
		store:      store,
		pool:       pool,
		classifier: classifier,
		bus:        bus,
	}
}

// Begin inserts the pending scan row. Callers running scans in the
// background return this row to the client before Run finishes.
func (e *Executor) Begin(req Request) (*db.ScanResult, error) {
	return e.store.CreateScanResult(&db.ScanResult{
		DomainConfigID: req.DomainConfigID,
		Domain:         req.Domain,
		ScanMode:       req.Mode,
		Status:         db.ScanStatusPending,
		TimestampUTC:   time.Now().UTC(),
	})
}

// Execute runs one scan and persists its result. The returned ScanResult
// reflects the final row; the error is non-nil only when the scan failed as
// a whole. Cookies from failed runs are not persisted.
func (e *Executor) Execute(ctx context.Context, req Request) (*db.ScanResult, error) {
	result, err := e.Begin(req)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, result, req)
}

// Run performs the scan for an already inserted pending row.
func (e *Executor) Run(ctx context.Context, result *db.ScanResult, req Request) (*db.ScanResult, error) {
	started := time.Now()
	scanID := result.ID

	e.publish(scanID, db.ScanStatusRunning, "", 0, 0, 0, "scan started")

	out, runErr := e.run(ctx, scanID, req)
	duration := time.Since(started).Seconds()

	if runErr != nil {
		if runErr == errScanCancelled {
			if err := e.store.RecordScanCancellation(scanID, duration); err != nil {
				log.Error().Err(err).Str("scan", scanID.String()).Msg("Could not record cancellation duration")
			}
			e.publish(scanID, db.ScanStatusCancelled, "", out.pagesVisitedCount(), out.cookieCount(), 100, "scan cancelled")
			log.Info().Str("scan", scanID.String()).Str("domain", req.Domain).Msg("Scan cancelled")
			return e.store.GetScanResultByID(scanID)
		}
		message := runErr.Error()
		result.Status = db.ScanStatusFailed
		result.DurationSeconds = duration
		result.Error = &message
		if err := e.store.UpdateScanResult(result); err != nil {
			log.Error().Err(err).Str("scan", scanID.String()).Msg("Could not record scan failure")
		}
		e.publish(scanID, db.ScanStatusFailed, "", out.pagesVisitedCount(), out.cookieCount(), 100, message)
		log.Error().Err(runErr).Str("scan", scanID.String()).Str("domain", req.Domain).Msg("Scan failed")
		return result, runErr
	}

	var classifier cookieClassifier
	if e.classifier != nil {
		classifier = e.classifier
	}
	if err := writeResult(e.store, classifier, result, req, out, duration); err != nil {
		return result, err
	}
	e.publish(scanID, db.ScanStatusSuccess, "", out.pagesVisitedCount(), out.cookieCount(), 100, "scan finished")
	log.Info().
		Str("scan", scanID.String()).
		Str("domain", req.Domain).
		Int("pages", out.pagesVisitedCount()).
		Int("cookies", out.cookieCount()).
		Float64("duration", duration).
		Msg("Scan finished")
	return result, nil
}

var errScanCancelled = fmt.Errorf("scan cancelled")

// collected is everything one scan run gathered before persistence.
type collected struct {
	cookies  *web.CookieSet
	storages []web.PageStorage
	visited  []string
}

func (c collected) pagesVisitedCount() int {
	return len(c.visited)
}

func (c collected) cookieCount() int {
	if c.cookies == nil {
		return 0
	}
	return c.cookies.Len()
}

func (e *Executor) run(ctx context.Context, scanID uuid.UUID, req Request) (collected, error) {
	out := collected{cookies: web.NewCookieSet()}

	acquireCtx, cancel := context.WithTimeout(ctx, browserAcquireTimeout)
	defer cancel()
	inst, err := e.pool.Acquire(acquireCtx)
	if err != nil {
		return out, fmt.Errorf("no browser available: %w", err)
	}

	healthy := true
	defer func() {
		if healthy {
			e.pool.Release(inst)
		} else {
			e.pool.Discard(inst)
		}
	}()

	incognito, err := inst.Browser.Incognito()
	if err != nil {
		healthy = false
		return out, fmt.Errorf("browser context: %w", err)
	}

	page, err := e.newPage(incognito, req.Params)
	if err != nil {
		healthy = false
		return out, fmt.Errorf("page setup: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug().Err(err).Msg("Page close failed")
		}
	}()

	visitor := web.NewVisitor(req.Params)
	queue := e.initialQueue(req)
	depths := map[string]int{req.Domain: 0}
	seen := make(map[string]bool)
	for _, u := range queue {
		seen[u] = true
	}

	waitBudget := time.Duration(req.Params.WaitForDynamicContent) * time.Second

	for len(queue) > 0 {
		if cancelled, err := e.isCancelled(scanID); err == nil && cancelled {
			return out, errScanCancelled
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if pageLimitReached(req.Mode, req.Params, len(out.visited)) {
			break
		}

		pageURL := queue[0]
		queue = queue[1:]

		e.publish(scanID, db.ScanStatusRunning, pageURL, len(out.visited), out.cookies.Len(),
			progressPercent(len(out.visited), len(out.visited)+len(queue)+1), "navigating")

		if err := visitor.Visit(ctx, page, pageURL, req.Params.WaitStrategy, waitBudget); err != nil {
			return out, fmt.Errorf("navigation to %s: %w", pageURL, err)
		}
		out.visited = append(out.visited, pageURL)

		before, err := web.SnapshotCookies(page)
		if err != nil {
			log.Warn().Err(err).Str("url", pageURL).Msg("Cookie snapshot failed")
		} else {
			out.cookies.Add(before, false)
		}

		if web.ClickConsent(page, req.Params.AcceptSelector) {
			after, err := web.SnapshotCookies(page)
			if err == nil {
				out.cookies.Add(after, true)
			}
		}

		storage, err := web.CollectStorage(page, pageURL)
		if err != nil {
			log.Debug().Err(err).Str("url", pageURL).Msg("Storage collection failed")
		} else {
			out.storages = append(out.storages, storage)
		}

		e.publish(scanID, db.ScanStatusRunning, pageURL, len(out.visited), out.cookies.Len(),
			progressPercent(len(out.visited), len(out.visited)+len(queue)), "page scanned")

		if req.Mode == ModeDeep {
			depth := depths[pageURL]
			if depth < req.Params.ScanDepth {
				for _, link := range e.extractInternalLinks(page, req.Domain) {
					if seen[link] {
						continue
					}
					seen[link] = true
					depths[link] = depth + 1
					queue = append(queue, link)
				}
			}
		}
	}

	return out, nil
}

// pageLimitReached caps crawling in deep mode only; quick and realtime
// scans always visit their full initial queue.
func pageLimitReached(mode string, params db.ScanParams, visited int) bool {
	return mode == ModeDeep && params.MaxPages != nil && visited >= *params.MaxPages
}

// newPage opens a page in the isolated context with stealth patches and the
// caller's emulation settings applied before any navigation.
func (e *Executor) newPage(b *rod.Browser, params db.ScanParams) (*rod.Page, error) {
	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	if err := browser.ApplyStealth(page); err != nil {
		log.Warn().Err(err).Msg("Stealth injection failed, continuing without it")
	}
	userAgent := params.UserAgent
	if userAgent == "" {
		userAgent = viper.GetString("navigation.user_agent")
	}
	if userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); err != nil {
			log.Warn().Err(err).Msg("Could not override user agent")
		}
	}
	if params.Viewport != nil && params.Viewport.Width > 0 && params.Viewport.Height > 0 {
		err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             params.Viewport.Width,
			Height:            params.Viewport.Height,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Could not set viewport")
		}
	}
	return page, nil
}

// initialQueue is the root URL plus the resolved custom pages. Quick and
// realtime scans visit exactly this set.
func (e *Executor) initialQueue(req Request) []string {
	queue := []string{req.Domain}
	for _, entry := range req.Params.CustomPages {
		resolved, err := lib.ResolveCustomPage(req.Domain, entry)
		if err != nil {
			log.Warn().Err(err).Str("entry", entry).Msg("Skipping unresolvable custom page")
			continue
		}
		if resolved != req.Domain {
			queue = append(queue, resolved)
		}
	}
	return queue
}

const collectLinksJS = `() => Array.from(document.querySelectorAll('a[href]')).map(a => a.href)`

// extractInternalLinks returns same-host links found on the current page.
func (e *Executor) extractInternalLinks(page *rod.Page, rootURL string) []string {
	result, err := page.Eval(collectLinksJS)
	if err != nil {
		log.Debug().Err(err).Msg("Link extraction failed")
		return nil
	}
	var links []string
	for _, item := range result.Value.Arr() {
		link := item.Str()
		if lib.SameSiteHost(rootURL, link) {
			links = append(links, link)
		}
	}
	return links
}

func (e *Executor) isCancelled(scanID uuid.UUID) (bool, error) {
	current, err := e.store.GetScanResultByID(scanID)
	if err != nil {
		return false, err
	}
	return current.Status == db.ScanStatusCancelled, nil
}

func (e *Executor) publish(scanID uuid.UUID, status db.ScanStatus, currentPage string, pages, cookies int, percent float64, message string) {
	e.bus.Publish(progress.ScanProgress{
		ScanID:             scanID.String(),
		Status:             status,
		CurrentPage:        currentPage,
		PagesVisited:       pages,
		CookiesFound:       cookies,
		ProgressPercentage: percent,
		Message:            message,
	})
}

func progressPercent(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	percent := float64(done) / float64(total) * 100
	if percent > 100 {
		percent = 100
	}
	return percent
}
