package claims

import "github.com/simrs/payerlink/internal/payer"

// VerifyRequest asks the gateway whether a member is eligible for service.
type VerifyRequest struct {
	CardNumber string `json:"card_number"`
}

// VerifyResult is what call sites show at the registration desk.
type VerifyResult struct {
	Eligible   bool              `json:"eligible"`
	Membership *payer.Membership `json:"membership,omitempty"`
}

// SubmitRequest is the claim submission body accepted from callers.
type SubmitRequest struct {
	CardNumber    string `json:"card_number"`
	EncounterID   string `json:"encounter_id"`
	ServiceDate   string `json:"service_date"`
	DiagnosisCode string `json:"diagnosis_code"`
	ProcedureCode string `json:"procedure_code,omitempty"`
	TotalAmount   int64  `json:"total_amount"`
}

// OverrideRequest records a human decision to proceed without the gateway.
type OverrideRequest struct {
	Reason string `json:"reason"`
}

// ErrorResponse is the JSON body rendered for a classified gateway failure.
// Every field the operator needs to act on is present; no failure reaches a
// user as a bare status code.
type ErrorResponse struct {
	Code       string `json:"code"`
	Type       string `json:"type"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
	UserAction string `json:"user_action"`
	Retryable  bool   `json:"retryable"`
	Severity   string `json:"severity"`
}

func newErrorResponse(e *payer.PayerError) ErrorResponse {
	return ErrorResponse{
		Code:       string(e.Code),
		Type:       string(e.Type),
		Title:      e.Title,
		Message:    e.Message,
		Suggestion: e.Suggestion,
		UserAction: e.UserAction,
		Retryable:  e.Retryable,
		Severity:   string(payer.SeverityOf(e)),
	}
}
