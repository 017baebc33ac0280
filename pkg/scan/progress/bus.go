package progress

import (
	"sync"
	"time"

	"github.com/consentry/consentry/db"
)

// ScanProgress is one observable snapshot of a running scan.
type ScanProgress struct {
	ScanID             string        `json:"scan_id"`
	Status             db.ScanStatus `json:"status"`
	CurrentPage        string        `json:"current_page,omitempty"`
	PagesVisited       int           `json:"pages_visited"`
	CookiesFound       int           `json:"cookies_found"`
	ProgressPercentage float64       `json:"progress_percentage"`
	Message            string        `json:"message,omitempty"`
	Timestamp          time.Time     `json:"timestamp"`
}

// Bus holds the latest progress snapshot per scan. Publishing never blocks;
// a slow consumer simply misses intermediate snapshots and reads the most
// recent one on its next poll.
type Bus struct {
	mu     sync.RWMutex
	latest map[string]ScanProgress
}

func NewBus() *Bus {
	return &Bus{latest: make(map[string]ScanProgress)}
}

// Publish replaces the scan's snapshot. The timestamp is stamped here so
// callers only describe what happened.
func (b *Bus) Publish(snapshot ScanProgress) {
	snapshot.Timestamp = time.Now().UTC()
	b.mu.Lock()
	b.latest[snapshot.ScanID] = snapshot
	b.mu.Unlock()
}

// Latest returns the scan's most recent snapshot.
func (b *Bus) Latest(scanID string) (ScanProgress, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snapshot, ok := b.latest[scanID]
	return snapshot, ok
}

// Forget drops a scan's snapshot once no consumer can need it anymore.
func (b *Bus) Forget(scanID string) {
	b.mu.Lock()
	delete(b.latest, scanID)
	b.mu.Unlock()
}
