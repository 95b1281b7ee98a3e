package download

import (
	"context"
	"math"
	"time"
)

// RetryState is a state of the fetch retry machine.
type RetryState int

const (
	StateAttempting RetryState = iota
	StateBackingOff
	StateSucceeded
	StateExhausted
)

func (s RetryState) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateBackingOff:
		return "backing-off"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// RetryPolicy bounds a retry loop. The delay after the n-th failure
// (0-based) is Cooldown × Exponent^n.
type RetryPolicy struct {
	MaxAttempts int
	Cooldown    time.Duration
	Exponent    float64
}

// Delay returns the backoff after failure number n, counting from zero.
func (p RetryPolicy) Delay(n int) time.Duration {
	exp := p.Exponent
	if exp <= 0 {
		exp = 1
	}
	return time.Duration(float64(p.Cooldown) * math.Pow(exp, float64(n)))
}

// Transition is reported on every state change.
type Transition struct {
	State   RetryState
	Attempt int
	Delay   time.Duration
	Err     error
}

// retrier drives fn through attempting → (backing-off → attempting)* →
// succeeded | exhausted.
type retrier struct {
	policy       RetryPolicy
	sleep        func(ctx context.Context, d time.Duration) error
	onTransition func(Transition)
}

// do runs fn until it succeeds or the policy is spent. It returns the
// number of failed attempts and the last error.
func (r *retrier) do(ctx context.Context, fn func(attempt int) error) (int, error) {
	attempts := max(1, r.policy.MaxAttempts)
	failed := 0
	for attempt := 1; ; attempt++ {
		r.emit(Transition{State: StateAttempting, Attempt: attempt})
		err := fn(attempt)
		if err == nil {
			r.emit(Transition{State: StateSucceeded, Attempt: attempt})
			return failed, nil
		}
		failed++

		if ctxErr := ctx.Err(); ctxErr != nil {
			return failed, ctxErr
		}
		if attempt >= attempts {
			r.emit(Transition{State: StateExhausted, Attempt: attempt, Err: err})
			return failed, err
		}

		delay := r.policy.Delay(attempt - 1)
		r.emit(Transition{State: StateBackingOff, Attempt: attempt, Delay: delay, Err: err})
		if err := r.sleep(ctx, delay); err != nil {
			return failed, err
		}
	}
}

func (r *retrier) emit(t Transition) {
	if r.onTransition != nil {
		r.onTransition(t)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
