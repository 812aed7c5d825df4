package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestReasonOf(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want Reason
	}{
		{nil, ReasonNone},
		{ErrExpired, ReasonExpired},
		{fmt.Errorf("decode: %w", ErrExpired), ReasonExpired},
		{ErrRevoked, ReasonRevoked},
		{ErrMalformed, ReasonInvalid},
		{ErrInvalidSignature, ReasonInvalid},
		{ErrClaimTypeMismatch, ReasonInvalid},
		{fmt.Errorf("redis: %w: %w", ErrUnavailable, context.DeadlineExceeded), ReasonUnavailable},
		{errors.New("something internal"), ReasonInvalid},
	}
	for _, c := range cases {
		if got := ReasonOf(c.err); got != c.want {
			t.Fatalf("ReasonOf(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestClassification(t *testing.T) {
	t.Parallel()

	if !IsClientError(ErrClaimTypeMismatch) || IsClientError(ErrUnavailable) {
		t.Fatalf("client classification wrong")
	}
	if !IsDependencyError(fmt.Errorf("x: %w", ErrDeliveryFailed)) || IsDependencyError(ErrRevoked) {
		t.Fatalf("dependency classification wrong")
	}
	if !IsProtocolError(fmt.Errorf("schema 9: %w", ErrProtocol)) || IsProtocolError(ErrMalformed) {
		t.Fatalf("protocol classification wrong")
	}
}
