package simulation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/LeonardoBeccarini/farmsim/internal/model/messages"
)

func TestHistoryRing(t *testing.T) {
	h := NewHistory(3)
	if _, ok := h.Last(); ok {
		t.Fatal("Last() on empty history reported ok")
	}

	for seq := uint64(1); seq <= 5; seq++ {
		_ = h.Consume(context.Background(), messages.Snapshot{Seq: seq})
	}

	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}
	samples := h.Samples()
	for i, want := range []uint64{3, 4, 5} {
		if samples[i].Seq != want {
			t.Errorf("samples[%d].Seq = %d, want %d", i, samples[i].Seq, want)
		}
	}
	if last, _ := h.Last(); last.Seq != 5 {
		t.Errorf("Last().Seq = %d, want 5", last.Seq)
	}
}

func TestHistoryPartial(t *testing.T) {
	h := NewHistory(0)
	_ = h.Consume(context.Background(), messages.Snapshot{Seq: 1})
	_ = h.Consume(context.Background(), messages.Snapshot{Seq: 2})

	samples := h.Samples()
	if len(samples) != 2 || samples[0].Seq != 1 || samples[1].Seq != 2 {
		t.Errorf("Samples() = %+v", samples)
	}
}

func TestRefreshNowFansOutPastFailingSink(t *testing.T) {
	var got []uint64
	failing := SinkFunc(func(context.Context, messages.Snapshot) error {
		return errors.New("broker down")
	})
	recording := SinkFunc(func(_ context.Context, s messages.Snapshot) error {
		got = append(got, s.Seq)
		return nil
	})

	r := NewRefresher(func() messages.Snapshot { return messages.Snapshot{Tick: 9} }, time.Hour, failing, recording)
	first := r.RefreshNow(context.Background())
	second := r.RefreshNow(context.Background())

	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("seq = %d, %d; want 1, 2", first.Seq, second.Seq)
	}
	if first.Tick != 9 || first.Timestamp.IsZero() {
		t.Errorf("snapshot not filled in: %+v", first)
	}
	if len(got) != 2 {
		t.Errorf("recording sink saw %v, want two refreshes", got)
	}
}

func TestRefresherPeriodic(t *testing.T) {
	var (
		mu    sync.Mutex
		count int
	)
	ready := make(chan struct{})
	sink := SinkFunc(func(context.Context, messages.Snapshot) error {
		mu.Lock()
		defer mu.Unlock()
		count++
		if count == 3 {
			close(ready)
		}
		return nil
	})

	r := NewRefresher(func() messages.Snapshot { return messages.Snapshot{} }, 2*time.Millisecond, sink)
	if !r.Start() {
		t.Fatal("Start() = false")
	}
	if r.Start() {
		t.Error("second Start() = true")
	}
	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("refresher never delivered three snapshots")
	}
	if !r.Stop() {
		t.Error("Stop() = false")
	}
	if r.Stop() {
		t.Error("second Stop() = true")
	}

	mu.Lock()
	n := count
	mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != n {
		t.Errorf("refreshes after Stop: %d -> %d", n, count)
	}
}
