package fetch

import (
	"testing"
	"time"
)

type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	sleeps int
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Sleep(d time.Duration) {
	f.slept = append(f.slept, d)
	f.sleeps++
	f.now = f.now.Add(d)
}

func TestLimiterSpacing(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	l := newLimiter(time.Second, 0, clk.Now, clk.Sleep)

	l.Wait() // first slot is free
	if clk.sleeps != 0 {
		t.Fatalf("first call slept: %v", clk.slept)
	}
	l.Wait()
	if clk.sleeps != 1 || clk.slept[0] != time.Second {
		t.Fatalf("second call should sleep the full interval: %v", clk.slept)
	}

	// slow caller arrives after the slot opened, no sleep
	clk.now = clk.now.Add(5 * time.Second)
	l.Wait()
	if clk.sleeps != 1 {
		t.Fatalf("late caller slept: %v", clk.slept)
	}
}

func TestLimiterJitterBounds(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	l := newLimiter(time.Second, 0.5, clk.Now, clk.Sleep)

	for i := 0; i < 50; i++ {
		before := clk.now
		l.Wait()
		gap := l.next.Sub(before)
		if gap < 500*time.Millisecond || gap > 1500*time.Millisecond {
			t.Fatalf("interval %v outside jitter bounds on call %d", gap, i)
		}
		clk.now = l.next
	}
}

func TestLimiterDisabled(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	l := newLimiter(0, 0, clk.Now, clk.Sleep)
	for i := 0; i < 10; i++ {
		l.Wait()
	}
	if clk.sleeps != 0 {
		t.Fatalf("disabled limiter slept: %v", clk.slept)
	}
}
