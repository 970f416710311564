package kafka

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorType
	}{
		{nil, ErrorTypeUnknown},
		{errors.New("dial tcp: connection refused"), ErrorTypeTransient},
		{errors.New("read: i/o timeout"), ErrorTypeTransient},
		{fmt.Errorf("wrapping: %w", errors.New("Broken Pipe")), ErrorTypeTransient},
		{errors.New("invalid message format"), ErrorTypePermanent},
		{errors.New("unknown topic or partition"), ErrorTypePermanent},
	}

	for _, tc := range cases {
		if got := ClassifyError(tc.err); got != tc.want {
			t.Errorf("ClassifyError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestShouldRetry(t *testing.T) {
	transient := errors.New("connection refused")
	permanent := errors.New("schema mismatch")

	if !ShouldRetry(transient, 0, 3) {
		t.Error("transient error under the limit must retry")
	}
	if ShouldRetry(transient, 3, 3) {
		t.Error("exhausted retries must not retry")
	}
	if ShouldRetry(permanent, 0, 3) {
		t.Error("permanent error must not retry")
	}
	if ShouldRetry(nil, 0, 3) {
		t.Error("nil error must not retry")
	}
}
