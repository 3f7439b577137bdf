package apperr

import (
	"errors"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		want int
	}{
		{"not found", NotFound("missing"), http.StatusNotFound},
		{"validation", Validation("bad input"), http.StatusBadRequest},
		{"conflict", Conflict("duplicate"), http.StatusConflict},
		{"invalid transition", InvalidTransition("COMPLETED", "accept"), http.StatusConflict},
		{"stale", Stale("state changed"), http.StatusConflict},
		{"forbidden", Forbidden("nope"), http.StatusForbidden},
		{"unauthorized", Unauthorized("who"), http.StatusUnauthorized},
		{"invariant", Invariant("shares do not reconcile"), http.StatusInternalServerError},
		{"internal", Internal("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.HTTPStatus(); got != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, got)
			}
		})
	}
}

func TestGetKind(t *testing.T) {
	if got := GetKind(Stale("raced")); got != KindStale {
		t.Fatalf("expected KindStale, got %v", got)
	}
	if got := GetKind(errors.New("plain")); got != KindUnknown {
		t.Fatalf("expected KindUnknown for plain error, got %v", got)
	}
	if !Is(NotFound("x"), KindNotFound) {
		t.Fatal("Is should match the error kind")
	}
	if Is(nil, KindNotFound) {
		t.Fatal("Is should not match nil")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindInternal, "create payment intent", cause)

	if !errors.Is(err, cause) {
		t.Fatal("wrapped error should unwrap to its cause")
	}
	if err.HTTPStatus() != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", err.HTTPStatus())
	}
}

func TestWithOpPrefixesMessage(t *testing.T) {
	err := NotFound("engagement not found").WithOp("engagement.Get")
	if err.Error() != "engagement.Get: engagement not found" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}
