package gimbal

import (
	"sync"
	"time"
)

const filterWindow = 3

// Filter smooths raw vision error samples with a moving average over the
// last three frames and records when the last sample arrived, which the
// control-loop watchdog uses to detect signal loss.
//
// The vision worker writes, the control tick reads. Last value wins; the
// lock is held only for the copy so neither side ever waits on the other.
type Filter struct {
	mu         sync.Mutex
	historyX   [filterWindow]int
	historyY   [filterWindow]int
	index      int
	curX, curY int
	lastUpdate time.Time
}

// NewFilter returns a filter with an empty history and a zero staleness
// clock, so a fresh filter reads as stale until the first sample arrives.
func NewFilter() *Filter {
	return &Filter{}
}

// Update ingests one raw error sample (pixels) from the vision pipeline.
func (f *Filter) Update(errX, errY int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.historyX[f.index] = errX
	f.historyY[f.index] = errY
	f.index = (f.index + 1) % filterWindow

	sumX, sumY := 0, 0
	for i := 0; i < filterWindow; i++ {
		sumX += f.historyX[i]
		sumY += f.historyY[i]
	}
	f.curX = sumX / filterWindow
	f.curY = sumY / filterWindow
	f.lastUpdate = time.Now()
}

// Current returns the filtered error pair.
func (f *Filter) Current() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.curX, f.curY
}

// Age reports how long ago the last sample arrived.
func (f *Filter) Age() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastUpdate.IsZero() {
		return time.Duration(1<<62 - 1)
	}
	return time.Since(f.lastUpdate)
}

// Zero clears the cached error without touching the staleness clock. The
// watchdog calls it once when the signal goes stale so a later reconnect
// never acts on leftover error.
func (f *Filter) Zero() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyX = [filterWindow]int{}
	f.historyY = [filterWindow]int{}
	f.curX, f.curY = 0, 0
}
