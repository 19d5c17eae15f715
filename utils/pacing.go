package utils

import (
	"context"
	"math/rand"
	"time"
)

// Pacing is the randomized delay policy used between browser interactions.
// A zero Pacing never sleeps longer than the base delay it is given, which
// keeps tests deterministic.
type Pacing struct {
	JitterMin time.Duration
	JitterMax time.Duration
	// JiggleChance is the probability in [0,1] that Chance returns true.
	JiggleChance float64

	rnd *rand.Rand
}

// NewPacing builds a Pacing with its own random source.
func NewPacing(jitterMin, jitterMax time.Duration, jiggleChance float64) *Pacing {
	return &Pacing{
		JitterMin:    jitterMin,
		JitterMax:    jitterMax,
		JiggleChance: jiggleChance,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NoPacing returns a Pacing with no jitter at all.
func NoPacing() *Pacing {
	return &Pacing{}
}

// Jitter returns a random duration within [JitterMin, JitterMax).
func (p *Pacing) Jitter() time.Duration {
	if p == nil || (p.JitterMin <= 0 && p.JitterMax <= 0) {
		return 0
	}
	if p.JitterMax <= p.JitterMin || p.rnd == nil {
		return p.JitterMin
	}
	delta := p.JitterMax - p.JitterMin
	return p.JitterMin + time.Duration(p.rnd.Int63n(int64(delta)))
}

// Between returns a uniformly random duration in [lo, hi). Without a random
// source it returns lo.
func (p *Pacing) Between(lo, hi time.Duration) time.Duration {
	if p == nil || p.rnd == nil || hi <= lo {
		return lo
	}
	return lo + time.Duration(p.rnd.Int63n(int64(hi-lo)))
}

// Chance reports true with probability JiggleChance.
func (p *Pacing) Chance() bool {
	if p == nil || p.rnd == nil || p.JiggleChance <= 0 {
		return false
	}
	return p.rnd.Float64() < p.JiggleChance
}

// Sleep waits base plus jitter, or until ctx is done.
func (p *Pacing) Sleep(ctx context.Context, base time.Duration) error {
	return SleepContext(ctx, base+p.Jitter())
}

// SleepContext blocks for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
