package gate

import (
	"context"
	"time"
)

// Admit blocks until the caller may proceed without exceeding the gate's
// rate. The first call on a fresh gate returns immediately.
func (g *RateGate) Admit() {
	// A background context never finishes, so the error is always nil.
	_ = g.AdmitContext(context.Background())
}

// AdmitContext is like Admit but gives up when ctx is done, both while
// waiting for the gate and while sleeping out the period. An abandoned
// admission returns ctx.Err() and leaves the gate's state untouched.
func (g *RateGate) AdmitContext(ctx context.Context) error {
	// Check if context is already canceled
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer g.release()

	if wait := g.waitFrom(g.clock.Now()); wait > 0 {
		select {
		case <-g.clock.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// Stamp with the time after sleeping, not the time the decision was made.
	g.lastAdmittedAt = g.clock.Now()
	return nil
}

// TryAdmit admits the caller only if that needs no waiting: the gate is not
// held by another caller and a full period has passed since the last
// admission. It never blocks.
func (g *RateGate) TryAdmit() bool {
	select {
	case g.sem <- struct{}{}:
	default:
		return false
	}
	defer g.release()

	now := g.clock.Now()
	if g.waitFrom(now) > 0 {
		return false
	}
	g.lastAdmittedAt = now
	return true
}

// waitFrom returns how long a caller deciding at now must sleep.
// Callers must hold the semaphore.
func (g *RateGate) waitFrom(now time.Time) time.Duration {
	if g.lastAdmittedAt.IsZero() {
		return 0
	}
	elapsed := now.Sub(g.lastAdmittedAt)
	if elapsed >= g.period {
		return 0
	}
	if elapsed < 0 {
		// Clock stepped backwards; never wait longer than one period.
		return g.period
	}
	return g.period - elapsed
}

func (g *RateGate) release() {
	<-g.sem
}
