package stream

import (
	"sync"

	"github.com/RyanBlaney/activity-spectra/pkg/signal"
)

// DeviceBuffer is a rolling per-device sample window.
// Samples older than retention behind the newest sample are dropped.
type DeviceBuffer struct {
	mu        sync.Mutex
	samples   []signal.Sample
	retention int64
	newest    int64
	dirty     bool
}

// NewDeviceBuffer creates a buffer keeping retentionMs of history
func NewDeviceBuffer(retentionMs int64) *DeviceBuffer {
	return &DeviceBuffer{retention: retentionMs}
}

// Add appends samples and trims expired history
func (b *DeviceBuffer) Add(samples ...signal.Sample) {
	if len(samples) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range samples {
		if s.Timestamp > b.newest {
			b.newest = s.Timestamp
		}
	}
	b.samples = append(b.samples, samples...)
	b.dirty = true

	cutoff := b.newest - b.retention
	keep := b.samples[:0]
	for _, s := range b.samples {
		if s.Timestamp >= cutoff {
			keep = append(keep, s)
		}
	}
	b.samples = keep
}

// Len returns the number of buffered samples
func (b *DeviceBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Latest returns the n most recent samples in timestamp order and clears the
// pending flag. ok is false when fewer than n samples are buffered or nothing
// arrived since the previous call.
func (b *DeviceBuffer) Latest(n int) (window []signal.Sample, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.dirty || len(b.samples) < n {
		return nil, false
	}
	b.dirty = false

	ordered := signal.NewBuffer(b.samples).Samples()
	return ordered[len(ordered)-n:], true
}
