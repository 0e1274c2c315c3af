// Package keypool multiplexes a small set of API credentials with per-key cooldowns.
package keypool

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"
)

// DefaultCooldown is applied by Penalize callers on quota exhaustion.
const DefaultCooldown = 30 * time.Second

// ErrEmpty is returned when the pool was built without keys.
var ErrEmpty = errors.New("keypool: no credentials configured")

// Slot is one credential with its cooldown deadline. A slot is ready
// iff now >= cooldownUntil.
type Slot struct {
	key           string
	cooldownUntil time.Time
}

// Key returns the opaque credential value.
func (s *Slot) Key() string { return s.key }

// Suffix returns the last four characters of the key, for logging.
func (s *Slot) Suffix() string {
	if len(s.key) <= 4 {
		return s.key
	}
	return s.key[len(s.key)-4:]
}

// Pool is an ordered rotating set of credential slots. All cooldown
// arithmetic happens under the mutex.
type Pool struct {
	mu     sync.Mutex
	slots  []*Slot
	cursor int
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// New builds a pool from keys in the given order.
func New(keys []string) *Pool {
	slots := make([]*Slot, 0, len(keys))
	for _, k := range keys {
		slots = append(slots, &Slot{key: k})
	}
	return &Pool{
		slots: slots,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

// NextReady returns the next slot whose cooldown has expired, scanning
// round-robin from the cursor. If every slot is cooling down it sleeps
// until the earliest deadline and retries; with at least one slot the
// wait is always bounded.
func (p *Pool) NextReady(ctx context.Context) (*Slot, error) {
	for {
		slot, wait, err := p.pick()
		if err != nil {
			return nil, err
		}
		if slot != nil {
			return slot, nil
		}
		if err := p.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (p *Pool) pick() (*Slot, time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.slots)
	if n == 0 {
		return nil, 0, ErrEmpty
	}

	now := p.now()
	for i := 0; i < n; i++ {
		idx := (p.cursor + i) % n
		slot := p.slots[idx]
		if !now.Before(slot.cooldownUntil) {
			p.cursor = (idx + 1) % n
			return slot, 0, nil
		}
	}

	earliest := p.slots[0].cooldownUntil
	for _, slot := range p.slots[1:] {
		if slot.cooldownUntil.Before(earliest) {
			earliest = slot.cooldownUntil
		}
	}
	wait := earliest.Sub(now)
	if wait < time.Second {
		wait = time.Second
	}
	return nil, wait, nil
}

// Penalize puts a slot in cooldown for retryAfter plus up to two
// seconds of jitter and moves it to the back of the rotation so it is
// tried last on the next pass.
func (p *Pool) Penalize(slot *Slot, retryAfter time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	jitter := time.Duration(rand.Int63n(int64(2 * time.Second)))
	slot.cooldownUntil = p.now().Add(retryAfter + jitter)

	for i, s := range p.slots {
		if s == slot {
			p.slots = append(append(p.slots[:i], p.slots[i+1:]...), slot)
			if p.cursor >= len(p.slots) {
				p.cursor = 0
			}
			break
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
