package benchmarks

import (
	"sync"

	"histbench/pkg/histogram"
)

// LockedHistogram is the naive baseline: one mutex around a plain histogram.
type LockedHistogram struct {
	mu sync.Mutex
	h  histogram.Histogram
}

func (l *LockedHistogram) Inc(v byte) {
	l.mu.Lock()
	l.h[v]++
	l.mu.Unlock()
}

// AddAll takes the lock once per sample, matching the atomic strategy's
// per-sample synchronization.
func (l *LockedHistogram) AddAll(samples []byte) {
	for _, v := range samples {
		l.Inc(v)
	}
}

func (l *LockedHistogram) Snapshot() histogram.Histogram {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h
}
