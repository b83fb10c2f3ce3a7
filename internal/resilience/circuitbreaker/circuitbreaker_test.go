package circuitbreaker

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sony/gobreaker"

	"note-curator/internal/domain/entity"
	"note-curator/internal/resilience/retry"
)

func TestCall_PreservesResultType(t *testing.T) {
	t.Parallel()

	b := ForLLM("test-llm")
	got, err := Call(b, func() (string, error) {
		return "hello", nil
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != "hello" {
		t.Errorf("Call() = %q, want %q", got, "hello")
	}
}

func TestCall_ReturnsZeroValueOnError(t *testing.T) {
	t.Parallel()

	b := ForLLM("test-llm-err")
	got, err := Call(b, func() (*struct{ X int }, error) {
		return nil, fmt.Errorf("boom")
	})
	if err == nil {
		t.Fatal("Call() error = nil, want boom")
	}
	if got != nil {
		t.Errorf("Call() = %v, want nil", got)
	}
}

func TestForPages_TripsOnConsecutiveTransportFailures(t *testing.T) {
	t.Parallel()

	b := ForPages()
	transport := &retry.HTTPError{StatusCode: 502, Message: "bad gateway"}

	for i := 0; i < 5; i++ {
		_, _ = Call(b, func() (int, error) { return 0, transport })
	}

	if !b.Open() {
		t.Fatal("circuit should open after five consecutive transport failures")
	}

	_, err := Call(b, func() (int, error) { return 1, nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Call() on open circuit = %v, want ErrOpenState", err)
	}
}

func TestForPages_ItemLevelFailuresDoNotTrip(t *testing.T) {
	t.Parallel()

	b := ForPages()

	// Exclusions, parse failures and 404s are the article's problem, not
	// the platform's; none of them may charge the circuit.
	itemErrs := []error{
		fmt.Errorf("u/abc: %w", entity.ErrPermanentExclusion),
		fmt.Errorf("page: %w", entity.ErrParseFailure),
		&retry.HTTPError{StatusCode: 404, Message: "gone"},
	}

	for i := 0; i < 4; i++ {
		for _, itemErr := range itemErrs {
			_, _ = Call(b, func() (int, error) { return 0, itemErr })
		}
	}

	if b.Open() {
		t.Fatal("item-level failures must not open the circuit")
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("State() = %v, want closed", b.State())
	}
}

func TestIsHealthSignal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		// want reports whether the call is treated as successful
		// (i.e. does NOT charge the circuit).
		want bool
	}{
		{"nil", nil, true},
		{"permanent exclusion", entity.ErrPermanentExclusion, true},
		{"parse failure", entity.ErrParseFailure, true},
		{"auth failure", entity.ErrAuthFailure, true},
		{"http 404", &retry.HTTPError{StatusCode: 404}, true},
		{"http 429 charges", &retry.HTTPError{StatusCode: 429}, false},
		{"http 500 charges", &retry.HTTPError{StatusCode: 500}, false},
		{"transport error charges", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isHealthSignal(tt.err); got != tt.want {
				t.Errorf("isHealthSignal(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
