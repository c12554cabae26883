package gate

import (
	"context"
	"math"
	"time"

	gferrors "github.com/vnykmshr/rateguard/pkg/common/errors"
	"github.com/vnykmshr/rateguard/pkg/common/validation"
)

// Admitter is implemented by anything that can gate a call.
// Both *RateGate and *MetricsGate satisfy it.
type Admitter interface {
	// Admit blocks until the caller may proceed.
	Admit()

	// AdmitContext blocks until the caller may proceed or ctx is done.
	AdmitContext(ctx context.Context) error
}

// Clock provides the current time and timers. It can be mocked for testing.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SystemClock implements Clock using the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// After waits for the duration to elapse and then sends the current time.
func (SystemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Config holds configuration options for creating a RateGate.
type Config struct {
	// RPM is the maximum number of admissions per Unit. Must be positive and finite.
	RPM float64

	// Unit is the window RPM is expressed against. Defaults to one minute.
	Unit time.Duration

	// Clock provides the current time. If nil, SystemClock is used.
	Clock Clock
}

// RateGate spaces admissions so that consecutive callers are at least one
// period apart, where period = Unit / RPM.
//
// The gate holds its lock while a caller sleeps, so admissions are strictly
// serialized: at most one caller is deciding or waiting at any moment and the
// combined rate across all goroutines never exceeds the configured rate.
// Waiting callers are not served in FIFO order.
type RateGate struct {
	period time.Duration
	rpm    float64
	clock  Clock

	// sem is a one-slot semaphore. Holding the slot grants exclusive access
	// to lastAdmittedAt; unlike sync.Mutex it can be abandoned on ctx.Done.
	sem            chan struct{}
	lastAdmittedAt time.Time
}

// New creates a gate admitting at most rpm callers per minute.
// It returns an error matching errors.ErrInvalidConfiguration if rpm is not
// a positive, finite number.
func New(rpm float64) (*RateGate, error) {
	return NewWithConfig(Config{RPM: rpm})
}

// MustNew is like New but panics on invalid configuration.
func MustNew(rpm float64) *RateGate {
	g, err := New(rpm)
	if err != nil {
		panic(err)
	}
	return g
}

// NewWithConfig creates a gate from a full configuration.
func NewWithConfig(config Config) (*RateGate, error) {
	if err := validation.ValidatePositiveFloat("gate", "rpm", config.RPM); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegativeDuration("gate", "unit", config.Unit); err != nil {
		return nil, err
	}

	unit := config.Unit
	if unit == 0 {
		unit = time.Minute
	}
	if config.Clock == nil {
		config.Clock = SystemClock{}
	}

	// float64(math.MaxInt64) rounds up to 2^63, which already overflows.
	period := float64(unit) / config.RPM
	if period >= float64(math.MaxInt64) {
		return nil, gferrors.NewValidationError("gate", "rpm", config.RPM, "period overflows time.Duration").
			WithHint("rate too low for unit " + unit.String())
	}

	return &RateGate{
		period: time.Duration(period),
		rpm:    config.RPM,
		clock:  config.Clock,
		sem:    make(chan struct{}, 1),
	}, nil
}

// Period returns the minimum interval between two consecutive admissions.
func (g *RateGate) Period() time.Duration {
	return g.period
}

// RPM returns the configured rate.
func (g *RateGate) RPM() float64 {
	return g.rpm
}
