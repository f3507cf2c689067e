package claims

import (
	"context"
	"fmt"

	"github.com/simrs/payerlink/internal/audit"
	"github.com/simrs/payerlink/internal/payer"
)

// Gateway is the slice of the payer client this service needs. The concrete
// client already classifies and retries, so every error coming through this
// boundary is a *payer.PayerError.
type Gateway interface {
	VerifyMembership(ctx context.Context, cardNumber string) (*payer.Membership, error)
	SubmitClaim(ctx context.Context, claim *payer.ClaimRequest) (*payer.ClaimResult, error)
	CancelClaim(ctx context.Context, claimID, reason string) error
}

// Service wires the gateway client and the audit recorder. Every outcome,
// success or failure, lands in the audit trail before the caller sees it.
type Service struct {
	gateway Gateway
}

func NewService(gateway Gateway) *Service {
	return &Service{gateway: gateway}
}

// Verify checks a member's eligibility and audits the outcome.
func (s *Service) Verify(ctx context.Context, rec *audit.Recorder, req *VerifyRequest) (*VerifyResult, error) {
	if req.CardNumber == "" {
		return nil, fmt.Errorf("card_number is required")
	}

	m, err := s.gateway.VerifyMembership(ctx, req.CardNumber)
	if err != nil {
		perr := payer.Classify(err)
		rec.LogFailure(ctx, perr, "member:"+req.CardNumber)
		return nil, perr
	}

	eligible := m.Status == "active"
	rec.LogVerification(ctx, req.CardNumber, eligible, map[string]any{
		"member_class": m.MemberClass,
		"status":       m.Status,
	})
	return &VerifyResult{Eligible: eligible, Membership: m}, nil
}

// Submit sends a claim to the gateway and audits the outcome. Duplicate
// submissions are rejected by the gateway with a non-retryable
// classification, which is the at-most-once safety net; callers must not
// submit the same encounter concurrently.
func (s *Service) Submit(ctx context.Context, rec *audit.Recorder, req *SubmitRequest) (*payer.ClaimResult, error) {
	if req.CardNumber == "" {
		return nil, fmt.Errorf("card_number is required")
	}
	if req.EncounterID == "" {
		return nil, fmt.Errorf("encounter_id is required")
	}
	if req.DiagnosisCode == "" {
		return nil, fmt.Errorf("diagnosis_code is required")
	}

	result, err := s.gateway.SubmitClaim(ctx, &payer.ClaimRequest{
		CardNumber:    req.CardNumber,
		EncounterID:   req.EncounterID,
		ServiceDate:   req.ServiceDate,
		DiagnosisCode: req.DiagnosisCode,
		ProcedureCode: req.ProcedureCode,
		TotalAmount:   req.TotalAmount,
	})
	if err != nil {
		perr := payer.Classify(err)
		rec.LogFailure(ctx, perr, "encounter:"+req.EncounterID)
		return nil, perr
	}

	rec.LogClaimCreated(ctx, result.ClaimID, "encounter:"+req.EncounterID, map[string]any{
		"card_number": req.CardNumber,
		"status":      result.Status,
	})
	return result, nil
}

// Cancel cancels a submitted claim and audits the outcome.
func (s *Service) Cancel(ctx context.Context, rec *audit.Recorder, claimID, reason string) error {
	if claimID == "" {
		return fmt.Errorf("claim id is required")
	}

	if err := s.gateway.CancelClaim(ctx, claimID, reason); err != nil {
		perr := payer.Classify(err)
		rec.LogFailure(ctx, perr, "claim:"+claimID)
		return perr
	}

	rec.LogClaimCancelled(ctx, claimID, reason)
	return nil
}

// Override records a manual override: a human decided to proceed with the
// encounter without gateway confirmation. The gateway is not called.
func (s *Service) Override(ctx context.Context, rec *audit.Recorder, resource, reason string) (*audit.Entry, error) {
	if reason == "" {
		return nil, fmt.Errorf("reason is required")
	}
	return rec.LogManualOverride(ctx, resource, reason)
}
