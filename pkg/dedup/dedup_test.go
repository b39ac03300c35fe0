package dedup

import (
	"fmt"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestShouldProcess(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	d := New(time.Minute, 10).WithClock(clk.now)

	if !d.ShouldProcess("a") {
		t.Fatal("first delivery rejected")
	}
	if d.ShouldProcess("a") {
		t.Fatal("redelivery accepted")
	}
	if !d.ShouldProcess("") || !d.ShouldProcess("") {
		t.Fatal("empty id must always be processed")
	}

	clk.advance(time.Minute)
	if !d.ShouldProcess("a") {
		t.Fatal("id still rejected after its TTL")
	}
}

func TestBoundedSize(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	d := New(time.Hour, 3).WithClock(clk.now)

	for i := 0; i < 6; i++ {
		clk.advance(time.Second)
		d.ShouldProcess(fmt.Sprintf("id-%d", i))
	}
	if d.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", d.Len())
	}
	// the newest ids survive eviction
	if d.ShouldProcess("id-5") {
		t.Error("newest id was evicted")
	}
}
