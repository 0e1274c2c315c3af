package keypool

import (
	"context"
	"testing"
	"time"
)

func newTestPool(keys ...string) (*Pool, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	p := New(keys)
	p.now = clock.Now
	p.sleep = clock.Sleep
	return p, clock
}

type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

func TestEmptyPool(t *testing.T) {
	p, _ := newTestPool()
	if _, err := p.NextReady(context.Background()); err != ErrEmpty {
		t.Fatalf("err = %v, want ErrEmpty", err)
	}
}

func TestRoundRobin(t *testing.T) {
	p, _ := newTestPool("AIzaAAAA", "AIzaBBBB", "AIzaCCCC")
	ctx := context.Background()

	want := []string{"AAAA", "BBBB", "CCCC", "AAAA"}
	for i, suffix := range want {
		slot, err := p.NextReady(ctx)
		if err != nil {
			t.Fatalf("next ready %d: %v", i, err)
		}
		if slot.Suffix() != suffix {
			t.Errorf("call %d suffix = %s, want %s", i, slot.Suffix(), suffix)
		}
	}
}

func TestPenalizeSkipsCoolingSlot(t *testing.T) {
	p, _ := newTestPool("AIzaAAAA", "AIzaBBBB")
	ctx := context.Background()

	slotA, err := p.NextReady(ctx)
	if err != nil {
		t.Fatalf("next ready: %v", err)
	}
	p.Penalize(slotA, DefaultCooldown)

	// Key A must not reappear while cooling down.
	for i := 0; i < 3; i++ {
		slot, err := p.NextReady(ctx)
		if err != nil {
			t.Fatalf("next ready %d: %v", i, err)
		}
		if slot.Suffix() == "AAAA" {
			t.Fatalf("penalized slot returned on call %d", i)
		}
	}
}

func TestPenalizedSlotTriedLastAfterRecovery(t *testing.T) {
	p, clock := newTestPool("AIzaAAAA", "AIzaBBBB", "AIzaCCCC")
	ctx := context.Background()

	slotA, _ := p.NextReady(ctx)
	p.Penalize(slotA, DefaultCooldown)
	clock.now = clock.now.Add(time.Minute)

	// After recovery the rotated order is B, C, A.
	want := []string{"BBBB", "CCCC", "AAAA"}
	for i, suffix := range want {
		slot, err := p.NextReady(ctx)
		if err != nil {
			t.Fatalf("next ready %d: %v", i, err)
		}
		if slot.Suffix() != suffix {
			t.Errorf("call %d suffix = %s, want %s", i, slot.Suffix(), suffix)
		}
	}
}

func TestSingleKeyWaitsForCooldown(t *testing.T) {
	p, clock := newTestPool("AIzaOnly")
	ctx := context.Background()

	slot, err := p.NextReady(ctx)
	if err != nil {
		t.Fatalf("next ready: %v", err)
	}
	p.Penalize(slot, DefaultCooldown)

	again, err := p.NextReady(ctx)
	if err != nil {
		t.Fatalf("next ready after penalty: %v", err)
	}
	if again != slot {
		t.Error("single-key pool returned a different slot")
	}
	if len(clock.slept) == 0 {
		t.Fatal("pool did not wait for the cooldown")
	}
	total := time.Duration(0)
	for _, d := range clock.slept {
		total += d
	}
	// retry_after plus at most 2s of jitter.
	if total < DefaultCooldown || total > DefaultCooldown+3*time.Second {
		t.Errorf("waited %v, want ~%v", total, DefaultCooldown)
	}
}

func TestSuffixShortKey(t *testing.T) {
	s := &Slot{key: "abc"}
	if s.Suffix() != "abc" {
		t.Errorf("suffix = %q", s.Suffix())
	}
}
