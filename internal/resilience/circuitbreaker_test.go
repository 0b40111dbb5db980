package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errDown = errors.New("upstream down")

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestBreaker(failures int, cooldown time.Duration) (*CircuitBreaker, *clock, *[]CircuitState) {
	clk := &clock{t: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
	var changes []CircuitState
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: failures,
		Cooldown:         cooldown,
		OnStateChange: func(_ string, _, to CircuitState) {
			changes = append(changes, to)
		},
	})
	cb.now = clk.now
	return cb, clk, &changes
}

func fail(context.Context) error { return errDown }
func succeed(context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _, changes := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, fail); !errors.Is(err, errDown) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Errorf("open circuit should reject without calling, err = %v", err)
	}
	if len(*changes) != 1 || (*changes)[0] != CircuitOpen {
		t.Errorf("changes = %v", *changes)
	}

	stats := cb.Stats()
	if stats.TotalRequests != 3 || stats.TotalFailures != 3 || stats.TotalRejected != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.FailureRate() != 100 {
		t.Errorf("failure rate = %v", stats.FailureRate())
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _, _ := newTestBreaker(2, time.Minute)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, succeed)
	_ = cb.Execute(ctx, fail)
	if cb.State() != CircuitClosed {
		t.Errorf("state = %s, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenTrial(t *testing.T) {
	cb, clk, changes := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clk.t = clk.t.Add(30 * time.Second)
	if err := cb.Execute(ctx, succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("inside cooldown: err = %v", err)
	}

	// A failed trial call reopens the circuit for another cooldown.
	clk.t = clk.t.Add(time.Minute)
	if err := cb.Execute(ctx, fail); !errors.Is(err, errDown) {
		t.Fatalf("trial call: err = %v", err)
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}

	clk.t = clk.t.Add(2 * time.Minute)
	if err := cb.Execute(ctx, succeed); err != nil {
		t.Fatalf("trial call: err = %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("state = %s, want closed", cb.State())
	}

	want := []CircuitState{CircuitOpen, CircuitHalfOpen, CircuitOpen, CircuitHalfOpen, CircuitClosed}
	if len(*changes) != len(want) {
		t.Fatalf("changes = %v, want %v", *changes, want)
	}
	for i := range want {
		if (*changes)[i] != want[i] {
			t.Errorf("change %d = %s, want %s", i, (*changes)[i], want[i])
		}
	}
}

func TestCircuitBreaker_SingleTrial(t *testing.T) {
	cb, clk, _ := newTestBreaker(1, time.Second)
	ctx := context.Background()
	_ = cb.Execute(ctx, fail)
	clk.t = clk.t.Add(2 * time.Second)

	err := cb.Execute(ctx, func(ctx context.Context) error {
		// A second caller arriving while the trial call is in flight is turned away.
		if err := cb.Execute(ctx, succeed); !errors.Is(err, ErrCircuitOpen) {
			t.Errorf("concurrent trial call: err = %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("state = %s, want closed", cb.State())
	}
}

func TestCircuitBreaker_CancellationIsNotAFailure(t *testing.T) {
	cb, _, _ := newTestBreaker(1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("state = %s, want closed", cb.State())
	}
}

func TestExecuteWithResult(t *testing.T) {
	cb := NewCircuitBreaker("result", CircuitBreakerConfig{})
	v, err := ExecuteWithResult(cb, context.Background(), func(context.Context) (float64, error) {
		return 8.5, nil
	})
	if err != nil || v != 8.5 {
		t.Errorf("ExecuteWithResult() = %v, %v", v, err)
	}

	cb.Reset()
	if cb.State() != CircuitClosed || cb.Name() != "result" {
		t.Errorf("after Reset: %+v", cb.Stats())
	}
}
