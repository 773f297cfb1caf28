package retry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"

	"github.com/calvinalkan/txfile/pkg/retry"
)

var errBusy = errors.New("busy")

func Test_Policy_Makes_Exactly_Four_Attempts_When_MaxRetries_Is_Three(t *testing.T) {
	t.Parallel()

	calls := 0
	p := retry.WithMaxRetries(3)

	err := p.Do(context.Background(), func() error {
		calls++

		return errBusy
	})

	if !errors.Is(err, errBusy) {
		t.Fatalf("Do: err=%v, want %v", err, errBusy)
	}

	if got, want := calls, 4; got != want {
		t.Fatalf("calls=%d, want %d", got, want)
	}
}

func Test_Policy_Returns_Last_Error_Unchanged_When_Retries_Exhausted(t *testing.T) {
	t.Parallel()

	calls := 0
	var last error

	err := retry.WithMaxRetries(2).Do(context.Background(), func() error {
		calls++
		last = fmt.Errorf("attempt %d: %w", calls, errBusy)

		return last
	})

	if err != last {
		t.Fatalf("Do: err=%v, want identical %v", err, last)
	}
}

func Test_Policy_Stops_Retrying_When_Timeout_Elapses(t *testing.T) {
	t.Parallel()

	const timeout = 50 * time.Millisecond

	calls := 0
	p := retry.WithTimeout(timeout)
	p.MaxDelay = 5 * time.Millisecond

	start := time.Now()

	err := p.Do(context.Background(), func() error {
		calls++

		return errBusy
	})

	elapsed := time.Since(start)

	if !errors.Is(err, errBusy) {
		t.Fatalf("Do: err=%v, want %v", err, errBusy)
	}

	if calls < 2 {
		t.Fatalf("calls=%d, want at least 2", calls)
	}

	if elapsed < timeout {
		t.Fatalf("elapsed=%v, want >= %v", elapsed, timeout)
	}

	if elapsed > timeout+time.Second {
		t.Fatalf("elapsed=%v, want close to %v", elapsed, timeout)
	}
}

func Test_Policy_Stops_At_First_Bound_When_Both_Bounds_Set(t *testing.T) {
	t.Parallel()

	calls := 0

	err := retry.New(1, time.Hour).Do(context.Background(), func() error {
		calls++

		return errBusy
	})

	if !errors.Is(err, errBusy) {
		t.Fatalf("Do: err=%v, want %v", err, errBusy)
	}

	if got, want := calls, 2; got != want {
		t.Fatalf("calls=%d, want %d", got, want)
	}
}

func Test_Policy_Returns_Immediately_When_Error_Is_Not_Retryable(t *testing.T) {
	t.Parallel()

	permanent := errors.New("permanent")
	calls := 0

	p := retry.WithMaxRetries(10).WithRetryable(func(err error) bool {
		return errors.Is(err, errBusy)
	})

	err := p.Do(context.Background(), func() error {
		calls++

		return permanent
	})

	if err != permanent {
		t.Fatalf("Do: err=%v, want %v", err, permanent)
	}

	if got, want := calls, 1; got != want {
		t.Fatalf("calls=%d, want %d", got, want)
	}
}

func Test_Policy_Succeeds_When_Operation_Recovers_Before_Bound(t *testing.T) {
	t.Parallel()

	calls := 0

	err := retry.WithMaxRetries(5).Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errBusy
		}

		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	if got, want := calls, 3; got != want {
		t.Fatalf("calls=%d, want %d", got, want)
	}
}

func Test_Policy_Reports_Every_Failed_Attempt_When_OnFailure_Set(t *testing.T) {
	t.Parallel()

	var attempts []uint64

	p := retry.WithMaxRetries(2)
	p.OnFailure = func(attempt uint64, _ error) {
		attempts = append(attempts, attempt)
	}

	_ = p.Do(context.Background(), func() error { return errBusy })

	if diff := cmp.Diff([]uint64{1, 2, 3}, attempts); diff != "" {
		t.Fatalf("attempts mismatch (-want +got):\n%s", diff)
	}
}

func Test_Policy_Returns_Context_Error_When_Context_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0

	err := retry.WithMaxRetries(3).Do(ctx, func() error {
		calls++

		return errBusy
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do: err=%v, want %v", err, context.Canceled)
	}

	if calls > 1 {
		t.Fatalf("calls=%d, want at most 1", calls)
	}
}

func Test_Call_Returns_Value_When_Operation_Succeeds_After_Retry(t *testing.T) {
	t.Parallel()

	calls := 0

	got, err := retry.Call(context.Background(), retry.WithMaxRetries(3), func() (string, error) {
		calls++
		if calls == 1 {
			return "", errBusy
		}

		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	if got != "ok" {
		t.Fatalf("Call=%q, want %q", got, "ok")
	}
}

func Test_Call_Returns_Zero_Value_When_Retries_Exhausted(t *testing.T) {
	t.Parallel()

	got, err := retry.Call(context.Background(), retry.WithMaxRetries(1), func() (int, error) {
		return 42, errBusy
	})

	if !errors.Is(err, errBusy) || got != 0 {
		t.Fatalf("Call=(%d, %v), want (0, %v)", got, err, errBusy)
	}
}

func Test_IsContention_Classifies_Errnos(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "eagain", err: unix.EAGAIN, want: true},
		{name: "ebusy wrapped", err: fmt.Errorf("open: %w", unix.EBUSY), want: true},
		{name: "eacces", err: unix.EACCES, want: true},
		{name: "enospc", err: unix.ENOSPC, want: false},
		{name: "enoent", err: unix.ENOENT, want: false},
		{name: "plain", err: errBusy, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := retry.IsContention(tt.err); got != tt.want {
				t.Fatalf("IsContention(%v)=%v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
