package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	all := []error{ErrConfigMissing, ErrChannelNotFound, ErrCapacityExceeded, ErrAlreadyActive, ErrDuplicatePending, ErrProviderFailed}
	for i, err := range all {
		if err == nil {
			t.Fatalf("sentinel %d is nil", i)
		}
		for j, other := range all {
			if i != j && errors.Is(err, other) {
				t.Errorf("%v should not match %v", err, other)
			}
		}
	}
}

func TestWrappedProviderErrorKeepsClass(t *testing.T) {
	err := fmt.Errorf("%w: create thread: %v", ErrProviderFailed, errors.New("403 missing access"))
	if !errors.Is(err, ErrProviderFailed) {
		t.Error("wrapped error should match ErrProviderFailed")
	}
}
