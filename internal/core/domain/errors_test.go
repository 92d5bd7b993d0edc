package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want FailureKind
	}{
		{nil, FailureNone},
		{ErrCredentialAbsent, FailureAbsent},
		{fmt.Errorf("provider: %w", ErrNoSession), FailureAbsent},
		{fmt.Errorf("%w: bad payload", ErrCredentialMalformed), FailureStructural},
		{ErrCredentialExpired, FailureExpired},
		{&CodeError{Code: CodeTokenInvalid}, FailureAuthorization},
		{fmt.Errorf("verify: %w", &CodeError{Code: CodeTokenExpired}), FailureAuthorization},
		{fmt.Errorf("%w: %w", ErrTransport, context.DeadlineExceeded), FailureTransport},
		{context.Canceled, FailureTransport},
		{errors.New("boom"), FailureUnexpected},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestPlaceholderProfile(t *testing.T) {
	p := PlaceholderProfile(&Session{SubjectID: "u1", Email: "maria@clinic.io", Role: RoleProfessional})
	if !p.Placeholder || p.SubjectID != "u1" || p.Role != RoleProfessional || p.DisplayName != "maria" {
		t.Fatalf("unexpected placeholder: %+v", p)
	}
}
