package simulation

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/farmsim/internal/model/messages"
)

const DefaultRefreshInterval = 500 * time.Millisecond

// Sink receives every refreshed snapshot. Sinks only read; they never touch entities.
type Sink interface {
	Consume(ctx context.Context, snap messages.Snapshot) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, snap messages.Snapshot) error

func (f SinkFunc) Consume(ctx context.Context, snap messages.Snapshot) error {
	if f == nil {
		return nil
	}
	return f(ctx, snap)
}

// Refresher periodically snapshots the simulation and fans the snapshot out to sinks.
// It runs on its own ticker, independent of the simulation clock.
type Refresher struct {
	source   func() messages.Snapshot
	interval time.Duration

	mu    sync.Mutex
	sinks []Sink
	seq   uint64

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewRefresher(source func() messages.Snapshot, interval time.Duration, sinks ...Sink) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{source: source, interval: interval, sinks: sinks}
}

func (r *Refresher) AddSink(s Sink) {
	if s == nil {
		return
	}
	r.mu.Lock()
	r.sinks = append(r.sinks, s)
	r.mu.Unlock()
}

// Start launches the refresh loop; a second call while running is a no-op.
func (r *Refresher) Start() bool {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	if r.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(ctx, r.done)
	return true
}

// Stop ends the refresh loop and waits for it to exit.
func (r *Refresher) Stop() bool {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	if r.cancel == nil {
		return false
	}
	r.cancel()
	<-r.done
	r.cancel, r.done = nil, nil
	return true
}

func (r *Refresher) Running() bool {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	return r.cancel != nil
}

func (r *Refresher) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RefreshNow(ctx)
		}
	}
}

// RefreshNow takes one snapshot and delivers it to every sink.
// A failing sink is logged and does not prevent delivery to the others.
func (r *Refresher) RefreshNow(ctx context.Context) messages.Snapshot {
	r.mu.Lock()
	r.seq++
	seq := r.seq
	sinks := make([]Sink, len(r.sinks))
	copy(sinks, r.sinks)
	r.mu.Unlock()

	snap := r.source()
	snap.Seq = seq
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now().UTC()
	}

	for _, s := range sinks {
		if err := s.Consume(ctx, snap); err != nil {
			log.Printf("sim: sink error on refresh %d: %v", seq, err)
		}
	}
	return snap
}
