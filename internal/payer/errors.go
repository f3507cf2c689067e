// Package payer mediates calls to the national insurance claims gateway.
// It classifies gateway failures into a stable taxonomy, retries what is safe
// to retry with bounded exponential backoff, and exposes an HTTP client for
// the gateway's membership and claim operations.
package payer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// Type is the failure category a gateway error falls into. Retryability is a
// pure function of Type: network, rate_limit, and unknown failures may be
// retried; everything else must not be.
type Type string

const (
	TypeAuthentication Type = "authentication"
	TypeAuthorization  Type = "authorization"
	TypeValidation     Type = "validation"
	TypeNotFound       Type = "not_found"
	TypeBusinessLogic  Type = "business_logic"
	TypeNetwork        Type = "network"
	TypeRateLimit      Type = "rate_limit"
	TypeUnknown        Type = "unknown"
)

// Severity grades an error for alerting thresholds. It is not used by this
// package internally.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Code is a gateway error code. Codes are the external contract with the
// gateway and are never renumbered once shipped. They are grouped by numeric
// band (authentication 1xxx, card/identity 2xxx, eligibility 3xxx,
// claim-document 4xxx, network 5xxx, validation 6xxx, rate-limit 7xxx,
// unknown 9999); the banding is documentation only, lookups are exact string
// matches.
type Code string

const (
	CodeInvalidCredentials Code = "1001"
	CodeTokenExpired       Code = "1002"
	CodeSignatureMismatch  Code = "1003"

	CodeInvalidCardNumber Code = "2001"
	CodeCardNotFound      Code = "2002"
	CodeCardInactive      Code = "2003"
	CodeIdentityMismatch  Code = "2004"

	CodeIneligiblePeserta Code = "3001"
	CodeCoverageExpired   Code = "3002"
	CodeServiceNotCovered Code = "3003"

	CodeDuplicateClaim        Code = "4001"
	CodeClaimNotFound         Code = "4002"
	CodeClaimAlreadyCancelled Code = "4003"
	CodeDocumentIncomplete    Code = "4004"

	CodeConnectionError    Code = "5001"
	CodeTimeout            Code = "5002"
	CodeServiceUnavailable Code = "5003"

	CodeValidationError      Code = "6001"
	CodeMissingRequiredField Code = "6002"
	CodeInvalidDateRange     Code = "6003"

	CodeRateLimitExceeded Code = "7001"

	CodeUnknown Code = "9999"
)

// PayerError is an immutable classified gateway failure. Every error carries
// both a short Title/Message for display and a Suggestion/UserAction telling
// the operator what to do next; no error leaves this layer without one.
type PayerError struct {
	Code       Code   `json:"code"`
	Type       Type   `json:"type"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
	Retryable  bool   `json:"retryable"`
	UserAction string `json:"user_action"`
}

func (e *PayerError) Error() string {
	return fmt.Sprintf("payer error %s (%s): %s", e.Code, e.Type, e.Message)
}

// retryableFor implements the taxonomy-wide retryability rule. Unknown
// failures default to retryable so a transient outage that the gateway
// reports with a new code is not permanently dropped.
func retryableFor(t Type) bool {
	return t == TypeNetwork || t == TypeRateLimit || t == TypeUnknown
}

func entry(code Code, t Type, title, message, suggestion, userAction string) PayerError {
	return PayerError{
		Code:       code,
		Type:       t,
		Title:      title,
		Message:    message,
		Suggestion: suggestion,
		Retryable:  retryableFor(t),
		UserAction: userAction,
	}
}

// taxonomy is the closed table of known gateway codes. Adding a code is a
// data change here, not a control-flow change anywhere else.
var taxonomy = map[Code]PayerError{
	CodeInvalidCredentials: entry(CodeInvalidCredentials, TypeAuthentication,
		"Authentication Failed",
		"The gateway rejected the service credentials.",
		"Check the consumer ID and secret configured for the payer gateway.",
		"Contact the system administrator before retrying."),
	CodeTokenExpired: entry(CodeTokenExpired, TypeAuthentication,
		"Session Expired",
		"The gateway session token has expired.",
		"Request a fresh token from the gateway and try again.",
		"Sign in to the gateway again, then repeat the action."),
	CodeSignatureMismatch: entry(CodeSignatureMismatch, TypeAuthentication,
		"Signature Mismatch",
		"The request signature was rejected by the gateway.",
		"Verify the shared secret and that server clocks are in sync.",
		"Contact the system administrator."),

	CodeInvalidCardNumber: entry(CodeInvalidCardNumber, TypeValidation,
		"Invalid Card Number",
		"The membership card number has an invalid format.",
		"Card numbers are 13 digits; check for typos or missing digits.",
		"Correct the card number and verify again."),
	CodeCardNotFound: entry(CodeCardNotFound, TypeNotFound,
		"Card Not Found",
		"No member is registered under this card number.",
		"Confirm the card number against the physical card or the payer's member lookup.",
		"Ask the patient to confirm their card, or verify by national ID instead."),
	CodeCardInactive: entry(CodeCardInactive, TypeBusinessLogic,
		"Card Inactive",
		"The membership card exists but is not active.",
		"The member may have unpaid premiums or a suspended registration.",
		"Refer the patient to the payer's branch office to reactivate the card."),
	CodeIdentityMismatch: entry(CodeIdentityMismatch, TypeBusinessLogic,
		"Identity Mismatch",
		"The card number and the patient identity on file do not match.",
		"Compare the registered name and birth date with the patient record.",
		"Verify the patient's identity documents before proceeding."),

	CodeIneligiblePeserta: entry(CodeIneligiblePeserta, TypeAuthorization,
		"Member Not Eligible",
		"The member is not eligible for coverage of this service.",
		"Check the member's class, referral requirements, and coverage start date.",
		"Inform the patient that this service is not covered; offer self-pay options."),
	CodeCoverageExpired: entry(CodeCoverageExpired, TypeBusinessLogic,
		"Coverage Expired",
		"The member's coverage period has ended.",
		"The coverage end date is in the past.",
		"Refer the patient to the payer to renew coverage."),
	CodeServiceNotCovered: entry(CodeServiceNotCovered, TypeBusinessLogic,
		"Service Not Covered",
		"The requested service is outside the member's benefit package.",
		"Check the benefit package for the member's class.",
		"Discuss alternative covered services or self-pay with the patient."),

	CodeDuplicateClaim: entry(CodeDuplicateClaim, TypeBusinessLogic,
		"Duplicate Claim",
		"A claim for this encounter has already been submitted.",
		"Look up the existing claim before submitting again; resubmitting will not replace it.",
		"Open the existing claim instead of creating a new one."),
	CodeClaimNotFound: entry(CodeClaimNotFound, TypeNotFound,
		"Claim Not Found",
		"No claim exists under this claim number.",
		"Confirm the claim number; it may belong to a different facility.",
		"Check the claim number and try again."),
	CodeClaimAlreadyCancelled: entry(CodeClaimAlreadyCancelled, TypeBusinessLogic,
		"Claim Already Cancelled",
		"This claim has already been cancelled and cannot be modified.",
		"Cancelled claims are terminal; submit a new claim if needed.",
		"Create a new claim for this encounter."),
	CodeDocumentIncomplete: entry(CodeDocumentIncomplete, TypeValidation,
		"Documents Incomplete",
		"The claim is missing required supporting documents.",
		"The gateway lists the missing documents in the rejection detail.",
		"Attach the missing documents and resubmit."),

	CodeConnectionError: entry(CodeConnectionError, TypeNetwork,
		"Connection Error",
		"Could not reach the payer gateway.",
		"The gateway may be down or the hospital network link interrupted.",
		"Wait a moment and try again; escalate to IT if it persists."),
	CodeTimeout: entry(CodeTimeout, TypeNetwork,
		"Gateway Timeout",
		"The payer gateway did not respond in time.",
		"The gateway is slow or overloaded; the request may not have been processed.",
		"Try again; verify in the claim list before resubmitting a claim."),
	CodeServiceUnavailable: entry(CodeServiceUnavailable, TypeNetwork,
		"Gateway Unavailable",
		"The payer gateway reported a temporary service failure.",
		"Scheduled maintenance windows are announced on the payer's status page.",
		"Try again in a few minutes."),

	CodeValidationError: entry(CodeValidationError, TypeValidation,
		"Invalid Request",
		"The gateway rejected the request as malformed.",
		"One or more fields failed the gateway's validation rules.",
		"Review the highlighted fields and correct them."),
	CodeMissingRequiredField: entry(CodeMissingRequiredField, TypeValidation,
		"Missing Required Field",
		"A required field was not supplied.",
		"The rejection detail names the missing field.",
		"Complete the missing field and resubmit."),
	CodeInvalidDateRange: entry(CodeInvalidDateRange, TypeValidation,
		"Invalid Date Range",
		"The service dates are outside the allowed range.",
		"Service dates may not be in the future or before the coverage start.",
		"Correct the service dates and resubmit."),

	CodeRateLimitExceeded: entry(CodeRateLimitExceeded, TypeRateLimit,
		"Too Many Requests",
		"The gateway is throttling requests from this facility.",
		"Request volume exceeded the gateway's per-facility quota.",
		"Wait before retrying; the system backs off automatically."),

	CodeUnknown: entry(CodeUnknown, TypeUnknown,
		"Unknown Error",
		"The payer gateway returned an unrecognised error.",
		"Check the gateway integration log for the raw response.",
		"Try again; contact support with the time of the failure if it persists."),
}

// ClassifyCode maps a gateway-reported code onto the taxonomy. Lookups are
// exact: case and whitespace are significant, and a code that merely looks
// like a known band is still unknown. When the code is absent and rawMessage
// is non-empty, the returned error is a synthesized unknown carrying that
// message so the user sees something actionable; with no message the
// canonical unknown entry is returned. Never panics.
func ClassifyCode(code string, rawMessage string) *PayerError {
	if e, ok := taxonomy[Code(code)]; ok {
		return &e
	}
	if rawMessage != "" {
		e := entry(CodeUnknown, TypeUnknown,
			"Gateway Error",
			rawMessage,
			"The gateway reported an error this system does not recognise.",
			"Try again; contact support with this message if it persists.")
		return &e
	}
	e := taxonomy[CodeUnknown]
	return &e
}

// ClassifyStatus maps a transport-level HTTP status onto the closest taxonomy
// entry. HTTP semantics are coarser than the gateway's own codes, so this
// path is used only when the gateway did not return a code of its own. Total
// over all integers; unmapped statuses fall through to the connection-error
// entry.
//
// A 403 from the gateway historically means the member failed an eligibility
// check rather than a credentials problem, so it maps to the eligibility
// entry. Kept for compatibility with the gateway's observed behaviour.
func ClassifyStatus(status int, statusText string) *PayerError {
	var code Code
	switch {
	case status == 400:
		code = CodeValidationError
	case status == 401:
		code = CodeInvalidCredentials
	case status == 403:
		code = CodeIneligiblePeserta
	case status == 404:
		code = CodeCardNotFound
	case status == 408:
		code = CodeTimeout
	case status == 429:
		code = CodeRateLimitExceeded
	case status >= 500 && status <= 599:
		code = CodeServiceUnavailable
	default:
		code = CodeConnectionError
	}
	e := taxonomy[code]
	if statusText != "" && code == CodeConnectionError {
		e.Message = fmt.Sprintf("Unexpected gateway response: %d %s", status, statusText)
	}
	return &e
}

// GatewayError is a failure the gateway reported in its response envelope,
// carrying the gateway's own code and message.
type GatewayError struct {
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway code %s: %s", e.Code, e.Message)
}

// HTTPError is a transport-level failure: the gateway answered, but with a
// non-success status and no envelope code.
type HTTPError struct {
	Status     int
	StatusText string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gateway http %d %s", e.Status, e.StatusText)
}

// Classify is the single entry point for callers that do not know in advance
// whether a failure is a gateway-reported error, an HTTP failure, or a
// transport exception. It inspects the error chain and dispatches to the
// matching classifier, falling back to a synthesized unknown error. By
// contract it never panics, including on nil.
func Classify(err error) *PayerError {
	if err == nil {
		e := taxonomy[CodeUnknown]
		return &e
	}

	var pe *PayerError
	if errors.As(err, &pe) {
		return pe
	}

	var ge *GatewayError
	if errors.As(err, &ge) {
		return ClassifyCode(ge.Code, ge.Message)
	}

	var he *HTTPError
	if errors.As(err, &he) {
		return ClassifyStatus(he.Status, he.StatusText)
	}

	if code, ok := transportCode(err); ok {
		e := taxonomy[code]
		return &e
	}

	return ClassifyCode("", err.Error())
}

// transportCode recognises connection-level failures in the error chain.
func transportCode(err error) (Code, bool) {
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout, true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return CodeConnectionError, true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return CodeTimeout, true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return CodeConnectionError, true
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return CodeConnectionError, true
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return CodeConnectionError, true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") {
		return CodeConnectionError, true
	}
	return "", false
}

// SeverityOf grades a classified error for alerting thresholds.
func SeverityOf(e *PayerError) Severity {
	switch e.Type {
	case TypeAuthentication:
		return SeverityCritical
	case TypeAuthorization:
		return SeverityHigh
	case TypeValidation:
		return SeverityLow
	default:
		return SeverityMedium
	}
}
