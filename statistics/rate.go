package statistics

import "sync"

// Rate keeps one hour of per-second event counts in a ring buffer. Tick
// advances the ring once a second; Add accumulates into the current slot.
type Rate struct {
	mu         sync.Mutex
	dataSeries [3600]float64
	currentPos int
}

func (r *Rate) Tick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentPos = (r.currentPos + 1) % 3600
	r.dataSeries[r.currentPos] = 0
}

func (r *Rate) Add(num float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dataSeries[r.currentPos] += num
}

// RecentNSum totals the last recentn completed seconds. The slot at
// currentPos is still accumulating and is not counted.
func (r *Rate) RecentNSum(recentn int) (sum float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos := 0
	for i := 1; i <= recentn; i++ {
		pos = (r.currentPos - i)
		if pos < 0 {
			pos += 3600
		}
		sum += r.dataSeries[pos]
	}
	return
}

//PerSecond averages the most recent window seconds
func (r *Rate) PerSecond(window int) float64 {
	if window <= 0 {
		return 0
	}
	return r.RecentNSum(window) / float64(window)
}
