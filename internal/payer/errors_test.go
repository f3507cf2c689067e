package payer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"testing"
)

func TestTaxonomy_RetryableMatchesType(t *testing.T) {
	for code, e := range taxonomy {
		want := e.Type == TypeNetwork || e.Type == TypeRateLimit || e.Type == TypeUnknown
		if e.Retryable != want {
			t.Errorf("code %s: retryable %v does not match type %s", code, e.Retryable, e.Type)
		}
	}
}

func TestTaxonomy_EveryEntryHasGuidance(t *testing.T) {
	for code, e := range taxonomy {
		if e.Title == "" || e.Message == "" || e.Suggestion == "" || e.UserAction == "" {
			t.Errorf("code %s: entry missing user guidance: %+v", code, e)
		}
		if e.Code != code {
			t.Errorf("code %s: entry carries mismatched code %s", code, e.Code)
		}
	}
}

func TestClassifyCode_KnownCode(t *testing.T) {
	e := ClassifyCode("2002", "")
	if e.Code != CodeCardNotFound {
		t.Errorf("expected code 2002, got %s", e.Code)
	}
	if e.Type != TypeNotFound {
		t.Errorf("expected type not_found, got %s", e.Type)
	}
	if e.Retryable {
		t.Error("expected card-not-found to be non-retryable")
	}
}

func TestClassifyCode_UnknownWithMessage(t *testing.T) {
	e := ClassifyCode("8123", "sistem sedang maintenance")
	if e.Code != CodeUnknown {
		t.Errorf("expected code 9999, got %s", e.Code)
	}
	if e.Message != "sistem sedang maintenance" {
		t.Errorf("expected raw message preserved, got %q", e.Message)
	}
	if !e.Retryable {
		t.Error("expected synthesized unknown error to be retryable")
	}
	if e.UserAction == "" || e.Suggestion == "" {
		t.Error("expected synthesized error to carry guidance")
	}
}

func TestClassifyCode_UnknownNoMessage(t *testing.T) {
	first := ClassifyCode("8123", "")
	second := ClassifyCode("no-such-code", "")

	if first.Code != CodeUnknown || first.Type != TypeUnknown {
		t.Errorf("expected canonical unknown entry, got %+v", first)
	}
	if !reflect.DeepEqual(*first, *second) {
		t.Errorf("expected identical fields on every call: %+v vs %+v", first, second)
	}
	canonical := taxonomy[CodeUnknown]
	if !reflect.DeepEqual(*first, canonical) {
		t.Errorf("expected the canonical table entry, got %+v", first)
	}
}

func TestClassifyCode_ExactMatchOnly(t *testing.T) {
	// Case and whitespace are significant, and a code inside a known band
	// that is absent from the table is still fully unknown.
	for _, raw := range []string{" 2002", "2002 ", "2999", "5999"} {
		e := ClassifyCode(raw, "")
		if e.Code != CodeUnknown {
			t.Errorf("%q: expected unknown, got %s", raw, e.Code)
		}
	}
}

func TestClassifyCode_ReturnsCopies(t *testing.T) {
	a := ClassifyCode("2002", "")
	a.Message = "mutated"
	b := ClassifyCode("2002", "")
	if b.Message == "mutated" {
		t.Error("taxonomy entry was mutated through a returned error")
	}
}

func TestClassifyStatus_Table(t *testing.T) {
	cases := []struct {
		status int
		want   Code
	}{
		{400, CodeValidationError},
		{401, CodeInvalidCredentials},
		{403, CodeIneligiblePeserta},
		{404, CodeCardNotFound},
		{408, CodeTimeout},
		{429, CodeRateLimitExceeded},
		{500, CodeServiceUnavailable},
		{503, CodeServiceUnavailable},
		{599, CodeServiceUnavailable},
		// Unmapped statuses fall through to the connection error.
		{418, CodeConnectionError},
		{302, CodeConnectionError},
		{0, CodeConnectionError},
		{-7, CodeConnectionError},
		{1000, CodeConnectionError},
	}
	for _, tc := range cases {
		e := ClassifyStatus(tc.status, "")
		if e.Code != tc.want {
			t.Errorf("status %d: expected %s, got %s", tc.status, tc.want, e.Code)
		}
	}
}

func TestClassifyStatus_UnmappedCarriesStatusText(t *testing.T) {
	e := ClassifyStatus(418, "I'm a teapot")
	if e.Code != CodeConnectionError {
		t.Fatalf("expected connection error, got %s", e.Code)
	}
	if e.Message == "" {
		t.Error("expected message describing the unexpected status")
	}
}

func TestClassify_PayerErrorPassthrough(t *testing.T) {
	orig := ClassifyCode("4001", "")
	got := Classify(fmt.Errorf("submit claim: %w", orig))
	if got.Code != CodeDuplicateClaim {
		t.Errorf("expected duplicate claim to survive wrapping, got %s", got.Code)
	}
}

func TestClassify_GatewayError(t *testing.T) {
	got := Classify(&GatewayError{Code: "3001", Message: "peserta tidak aktif"})
	if got.Code != CodeIneligiblePeserta {
		t.Errorf("expected 3001, got %s", got.Code)
	}
	if got.Type != TypeAuthorization {
		t.Errorf("expected authorization type, got %s", got.Type)
	}
}

func TestClassify_GatewayErrorUnknownCode(t *testing.T) {
	got := Classify(&GatewayError{Code: "8777", Message: "antrian penuh"})
	if got.Code != CodeUnknown {
		t.Errorf("expected unknown, got %s", got.Code)
	}
	if got.Message != "antrian penuh" {
		t.Errorf("expected gateway message preserved, got %q", got.Message)
	}
}

func TestClassify_HTTPError(t *testing.T) {
	got := Classify(&HTTPError{Status: 503, StatusText: "Service Unavailable"})
	if got.Code != CodeServiceUnavailable {
		t.Errorf("expected service unavailable, got %s", got.Code)
	}
	if !got.Retryable {
		t.Error("expected 503 classification to be retryable")
	}
}

func TestClassify_TransportErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"deadline", context.DeadlineExceeded, CodeTimeout},
		{"wrapped deadline", fmt.Errorf("call gateway: %w", context.DeadlineExceeded), CodeTimeout},
		{"truncated body", fmt.Errorf("read gateway response: %w", io.ErrUnexpectedEOF), CodeConnectionError},
		{"url error", &url.Error{Op: "Get", URL: "http://gw", Err: errors.New("dial tcp: connect: connection refused")}, CodeConnectionError},
		{"message sniff", errors.New("dial tcp: lookup gw: no such host"), CodeConnectionError},
	}
	for _, tc := range cases {
		got := Classify(tc.err)
		if got.Code != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.name, tc.want, got.Code)
		}
		if !got.Retryable {
			t.Errorf("%s: expected transport failure to be retryable", tc.name)
		}
	}
}

func TestClassify_FallbackAndNil(t *testing.T) {
	got := Classify(errors.New("something odd happened"))
	if got.Type != TypeUnknown {
		t.Errorf("expected unknown type, got %s", got.Type)
	}
	if got.Message != "something odd happened" {
		t.Errorf("expected error text carried, got %q", got.Message)
	}

	if Classify(nil).Code != CodeUnknown {
		t.Error("expected canonical unknown for nil")
	}
}

func TestSeverityOf(t *testing.T) {
	cases := []struct {
		t    Type
		want Severity
	}{
		{TypeAuthentication, SeverityCritical},
		{TypeAuthorization, SeverityHigh},
		{TypeValidation, SeverityLow},
		{TypeBusinessLogic, SeverityMedium},
		{TypeNetwork, SeverityMedium},
		{TypeRateLimit, SeverityMedium},
		{TypeNotFound, SeverityMedium},
		{TypeUnknown, SeverityMedium},
	}
	for _, tc := range cases {
		if got := SeverityOf(&PayerError{Type: tc.t}); got != tc.want {
			t.Errorf("type %s: expected %s, got %s", tc.t, tc.want, got)
		}
	}
}
