package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"net"
	"net/http"
	"testing"
)

func TestHTTPStatusCodeMapping(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrorCodeNotFound, http.StatusNotFound},
		{ErrorCodeInvalidArgument, http.StatusUnprocessableEntity},
		{ErrorCodeConflict, http.StatusConflict},
		{ErrorCodeValidation, http.StatusBadRequest},
		{ErrorCodeJSON, http.StatusBadRequest},
		{ErrorCodeUnavailable, http.StatusServiceUnavailable},
		{ErrorCodeDB, http.StatusInternalServerError},
		{ErrorCodeSink, http.StatusInternalServerError},
		{ErrorCodeState, http.StatusInternalServerError},
		{ErrorCodePanic, http.StatusInternalServerError},
		{ErrorCodeUnknown, http.StatusInternalServerError},
		{9999, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatusCode(c.code); got != c.want {
			t.Fatalf("HTTPStatusCode(%v) = %d, want %d", c.code, got, c.want)
		}
	}
}

func TestErrorCodeString(t *testing.T) {
	if ErrorCodeUnavailable.String() != "unavailable" || ErrorCodeState.String() != "state" {
		t.Fatalf("code names mismatch")
	}
	if got := ErrorCode(999).String(); got != "code(999)" {
		t.Fatalf("out of range name = %q", got)
	}
}

func TestErrorTypeAndMethods(t *testing.T) {
	var e *Error
	if e.Error() != "<nil>" {
		t.Fatalf("nil *Error render = %q", e.Error())
	}

	src := stderrs.New("root")
	e1 := Wrap(src, ErrorCodeSink, "bulk index")
	if stderrs.Unwrap(e1) != src || CodeOf(e1) != ErrorCodeSink {
		t.Fatalf("Wrap did not keep orig/code")
	}
	if want := "bulk index movies: root"; Wrapf(src, ErrorCodeSink, "bulk index %s", "movies").Error() != want {
		t.Fatalf("Wrapf render mismatch")
	}
	if got := Newf(ErrorCodeJSON, "bad json %d", 12).Error(); got != "bad json 12" {
		t.Fatalf("Newf = %q", got)
	}

	e2 := WithField(e1, "title")
	we, ok := As(e2)
	if !ok || we.Field() != "title" {
		t.Fatalf("WithField failed: %+v", we)
	}
	if orig, _ := As(e1); orig.Field() != "" {
		t.Fatalf("copy-on-write mutated original")
	}
	if WithField(src, "x") != src {
		t.Fatalf("foreign errors must pass through")
	}

	if w := WireFrom(e2); w.Code != "sink" || w.Message != "bulk index" || w.Field != "title" {
		t.Fatalf("WireFrom(ours) = %+v", w)
	}
	if w := WireFrom(src); w.Code != "unknown" || w.Message != "root" {
		t.Fatalf("WireFrom(foreign) = %+v", w)
	}
	if WireFrom(nil) != (Wire{}) {
		t.Fatalf("WireFrom(nil) not zero")
	}
	if st, _ := HTTP(nil); st != http.StatusOK {
		t.Fatalf("HTTP(nil) status = %d", st)
	}
	if st, w := HTTP(Unavailablef("es down")); st != http.StatusServiceUnavailable || w.Code != "unavailable" {
		t.Fatalf("HTTP(unavailable) = %d %+v", st, w)
	}

	if !IsCode(NotFoundf("x"), ErrorCodeNotFound) ||
		!IsCode(InvalidArgf("x"), ErrorCodeInvalidArgument) ||
		!IsCode(Validationf("x"), ErrorCodeValidation) ||
		!IsCode(Conflictf("x"), ErrorCodeConflict) ||
		!IsCode(ErrNotFound, ErrorCodeNotFound) {
		t.Fatalf("sugar helpers code mismatch")
	}

	if WrapIf(nil, ErrorCodeDB, "ignored") != nil || WrapIf(src, ErrorCodeDB, "db") == nil {
		t.Fatalf("WrapIf mismatch")
	}

	deep := fmt.Errorf("level2: %w", fmt.Errorf("level1: %w", src))
	if Root(deep) != src {
		t.Fatalf("Root() failed")
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline wrapped", Wrap(context.DeadlineExceeded, ErrorCodeUnavailable, "probe"), false},
		{"unavailable", Unavailablef("es ping 503"), true},
		{"net op", &net.OpError{Op: "dial", Err: stderrs.New("connection refused")}, true},
		{"validation", Validationf("missing title"), false},
		{"pg serialization", pg("40001"), true},
	}
	for _, c := range cases {
		if got := Retryable(c.err); got != c.want {
			t.Fatalf("%s: Retryable = %v, want %v", c.name, got, c.want)
		}
	}
}
