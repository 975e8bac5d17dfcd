package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

var fastPolicy = Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}

func TestDo_SucceedsFirstTime(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy, func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if got != "ok" {
		t.Errorf("Do() = %q, want %q", got, "ok")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_FailsOnceThenSucceeds(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), Policy{MaxAttempts: 2, BaseDelay: time.Millisecond},
		func(context.Context) (int, error) {
			calls++
			if calls == 1 {
				return 0, errors.New("transient")
			}
			return 42, nil
		})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if got != 42 {
		t.Errorf("Do() = %d, want 42", got)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDo_AlwaysFailsReturnsLastError(t *testing.T) {
	calls := 0
	var last error
	_, err := Do(context.Background(), fastPolicy, func(context.Context) (int, error) {
		calls++
		last = fmt.Errorf("failure %d", calls)
		return 0, last
	})
	if calls != fastPolicy.MaxAttempts {
		t.Errorf("calls = %d, want %d", calls, fastPolicy.MaxAttempts)
	}
	if err != last {
		t.Errorf("Do() error = %v, want the last failure %v", err, last)
	}
}

func TestDo_DefaultAttempts(t *testing.T) {
	calls := 0
	_, _ = Do(context.Background(), Policy{BaseDelay: time.Millisecond}, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	})
	if calls != DefaultMaxAttempts {
		t.Errorf("calls = %d, want %d", calls, DefaultMaxAttempts)
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	cause := errors.New("missing configuration")
	calls := 0
	_, err := Do(context.Background(), fastPolicy, func(context.Context) (int, error) {
		calls++
		return 0, Permanent(cause)
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, cause) || !IsPermanent(err) {
		t.Errorf("Do() error = %v, want permanent error wrapping cause", err)
	}
	if err.Error() != cause.Error() {
		t.Errorf("Do() error message = %q, want %q", err.Error(), cause.Error())
	}
}

func TestDo_WrappedPermanentStops(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy, func(context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("calling api: %w", Permanent(errors.New("400 bad request")))
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if err == nil {
		t.Fatal("expected error")
	}
	if got, want := err.Error(), "calling api: 400 bad request"; got != want {
		t.Errorf("Do() error = %q, want %q", got, want)
	}
	if !IsPermanent(err) {
		t.Error("returned error should still be permanent")
	}
}

func TestDo_PermanentKeepsTypedCause(t *testing.T) {
	type missingError struct{ error }
	_, err := Do(context.Background(), fastPolicy, func(context.Context) (int, error) {
		return 0, fmt.Errorf("openai chat: %w", Permanent(missingError{errors.New("OPENAI_API_KEY missing")}))
	})

	var me missingError
	if !errors.As(err, &me) {
		t.Fatalf("errors.As(%v, missingError) = false", err)
	}
	if got, want := err.Error(), "openai chat: OPENAI_API_KEY missing"; got != want {
		t.Errorf("Do() error = %q, want %q", got, want)
	}
}

func TestDo_LinearBackoff(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: 20 * time.Millisecond}
	var stamps []time.Time
	_, _ = Do(context.Background(), p, func(context.Context) (int, error) {
		stamps = append(stamps, time.Now())
		return 0, errors.New("boom")
	})
	if len(stamps) != 3 {
		t.Fatalf("attempts = %d, want 3", len(stamps))
	}
	if gap := stamps[1].Sub(stamps[0]); gap < 20*time.Millisecond {
		t.Errorf("first wait = %v, want >= 20ms", gap)
	}
	if gap := stamps[2].Sub(stamps[1]); gap < 40*time.Millisecond {
		t.Errorf("second wait = %v, want >= 40ms", gap)
	}
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, Policy{MaxAttempts: 5, BaseDelay: time.Hour}, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestIsPermanent(t *testing.T) {
	if IsPermanent(errors.New("x")) {
		t.Error("plain error should not be permanent")
	}
	if !IsPermanent(fmt.Errorf("wrap: %w", Permanent(errors.New("x")))) {
		t.Error("wrapped permanent error should be permanent")
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}
