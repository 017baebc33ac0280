package progress

import (
	"fmt"
	"sync"
	"testing"

	"github.com/consentry/consentry/db"
	"github.com/stretchr/testify/assert"
)

func TestLatestUnknownScan(t *testing.T) {
	bus := NewBus()
	_, ok := bus.Latest("missing")
	assert.False(t, ok)
}

func TestPublishKeepsOnlyLatest(t *testing.T) {
	bus := NewBus()
	for i := 1; i <= 5; i++ {
		bus.Publish(ScanProgress{ScanID: "scan-1", Status: db.ScanStatusRunning, PagesVisited: i})
	}

	snapshot, ok := bus.Latest("scan-1")
	assert.True(t, ok)
	assert.Equal(t, 5, snapshot.PagesVisited)
	assert.False(t, snapshot.Timestamp.IsZero())
}

func TestScansAreIsolated(t *testing.T) {
	bus := NewBus()
	bus.Publish(ScanProgress{ScanID: "scan-1", PagesVisited: 3})
	bus.Publish(ScanProgress{ScanID: "scan-2", PagesVisited: 7})

	first, _ := bus.Latest("scan-1")
	second, _ := bus.Latest("scan-2")
	assert.Equal(t, 3, first.PagesVisited)
	assert.Equal(t, 7, second.PagesVisited)
}

func TestForget(t *testing.T) {
	bus := NewBus()
	bus.Publish(ScanProgress{ScanID: "scan-1"})
	bus.Forget("scan-1")
	_, ok := bus.Latest("scan-1")
	assert.False(t, ok)
}

func TestConcurrentPublishAndRead(t *testing.T) {
	bus := NewBus()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := fmt.Sprintf("scan-%d", w%2)
			for i := 0; i < 200; i++ {
				bus.Publish(ScanProgress{ScanID: id, PagesVisited: i})
				bus.Latest(id)
			}
		}(w)
	}
	wg.Wait()

	snapshot, ok := bus.Latest("scan-0")
	assert.True(t, ok)
	assert.Equal(t, 199, snapshot.PagesVisited)
}
