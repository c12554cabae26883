package gate

import (
	"context"
	"testing"
	"time"
)

// newUnthrottled returns a gate whose period rounds down to zero, so
// benchmarks measure the locking overhead without ever sleeping.
func newUnthrottled(b *testing.B) *RateGate {
	g, err := NewWithConfig(Config{RPM: 1e6, Unit: time.Nanosecond})
	if err != nil {
		b.Fatalf("unexpected error: %v", err)
	}
	return g
}

// BenchmarkAdmit measures the cost of an uncontended admission
func BenchmarkAdmit(b *testing.B) {
	g := newUnthrottled(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Admit()
	}
}

// BenchmarkAdmitParallel measures admission under contention
func BenchmarkAdmitParallel(b *testing.B) {
	g := newUnthrottled(b)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			g.Admit()
		}
	})
}

// BenchmarkAdmitContext measures the context-aware path
func BenchmarkAdmitContext(b *testing.B) {
	g := newUnthrottled(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = g.AdmitContext(ctx)
	}
}

// BenchmarkTryAdmit measures the non-blocking path
func BenchmarkTryAdmit(b *testing.B) {
	g := newUnthrottled(b)

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			g.TryAdmit()
		}
	})
}

// BenchmarkWrap1 measures the overhead of the generic wrapper
func BenchmarkWrap1(b *testing.B) {
	g := newUnthrottled(b)
	fn := Wrap1(g, func(n int) (int, error) { return n + 1, nil })

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = fn(i)
	}
}
