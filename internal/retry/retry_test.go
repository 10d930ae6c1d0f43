package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Immediate(3).Do(context.Background(), func(context.Context, int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_RetriesUntilBudget(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := Immediate(4).Do(context.Background(), func(context.Context, int) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestDo_NonRetryableStops(t *testing.T) {
	fatal := errors.New("fatal")
	p := Immediate(5)
	p.Retryable = func(err error) bool { return !errors.Is(err, fatal) }

	calls := 0
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("err = %v, want fatal", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ContextCanceledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, Backoff: BackoffFixed, InitialWait: time.Hour}

	calls := 0
	err := p.Do(ctx, func(context.Context, int) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Policy{}.Do(context.Background(), func(context.Context, int) error {
		calls++
		return errors.New("x")
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestUntil(t *testing.T) {
	tests := []struct {
		name      string
		doneAt    int
		wantCalls int
		wantErr   error
		wantValue int
	}{
		{"first", 0, 1, nil, 0},
		{"third", 2, 3, nil, 2},
		{"never", 99, 4, ErrExhausted, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			v, err := Until(context.Background(), Immediate(4), func(_ context.Context, attempt int) (int, bool, error) {
				calls++
				return attempt, attempt == tt.doneAt, nil
			})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if v != tt.wantValue {
				t.Errorf("value = %d, want %d", v, tt.wantValue)
			}
		})
	}
}

func TestUntil_HardErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := Until(context.Background(), Immediate(3), func(context.Context, int) (string, bool, error) {
		calls++
		return "", false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWait_Exponential(t *testing.T) {
	p := Policy{
		Backoff:     BackoffExponential,
		InitialWait: 10 * time.Millisecond,
		MaxWait:     40 * time.Millisecond,
		Multiplier:  2,
	}

	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 40 * time.Millisecond}
	for i, w := range want {
		if got := p.Wait(i, nil); got != w {
			t.Errorf("Wait(%d) = %s, want %s", i, got, w)
		}
	}
}

func TestWait_Override(t *testing.T) {
	p := Policy{Backoff: BackoffNone, WaitFor: func(error) time.Duration { return time.Second }}
	if got := p.Wait(0, errors.New("rate")); got != time.Second {
		t.Errorf("Wait = %s, want 1s", got)
	}
}
