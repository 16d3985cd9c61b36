// Package pacing computes the randomized delays that space navigations out.
// Slow, jittered pacing is the primary anti-detection control of the engine,
// so the reference ranges are deliberately generous.
package pacing

import (
	"context"
	"math/rand"
	"time"
)

// Policy yields the delays applied around navigations: PreRequestDelay before
// every navigation, InterRequestDelay between successive URLs (never after
// the last one).
type Policy interface {
	PreRequestDelay() time.Duration
	InterRequestDelay() time.Duration
}

// Range is a closed delay interval.
type Range struct {
	Min time.Duration
	Max time.Duration
}

var (
	DefaultPreRequest   = Range{Min: 5 * time.Second, Max: 10 * time.Second}
	DefaultInterRequest = Range{Min: 15 * time.Second, Max: 25 * time.Second}
)

// RandomPolicy draws every delay uniformly from its configured range. The
// random source is injectable so tests get deterministic durations.
type RandomPolicy struct {
	pre   Range
	inter Range
	intn  func(n int64) int64
}

func NewRandomPolicy(pre, inter Range) *RandomPolicy {
	return &RandomPolicy{
		pre:   pre,
		inter: inter,
		intn:  rand.Int63n,
	}
}

// WithSource swaps the uniform random source and returns the policy.
func (p *RandomPolicy) WithSource(intn func(n int64) int64) *RandomPolicy {
	p.intn = intn
	return p
}

func (p *RandomPolicy) PreRequestDelay() time.Duration {
	return p.draw(p.pre)
}

func (p *RandomPolicy) InterRequestDelay() time.Duration {
	return p.draw(p.inter)
}

func (p *RandomPolicy) draw(r Range) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(p.intn(int64(r.Max-r.Min)))
}

// Fixed returns constant delays, for tests and dry runs.
type Fixed struct {
	Pre   time.Duration
	Inter time.Duration
}

func (f Fixed) PreRequestDelay() time.Duration   { return f.Pre }
func (f Fixed) InterRequestDelay() time.Duration { return f.Inter }

// Wait sleeps for d unless ctx ends first.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
