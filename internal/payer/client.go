package payer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// envelope is the gateway's response wrapper. Every reply, success or
// failure, carries a metaData block; the payload sits under response.
type envelope struct {
	MetaData struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"metaData"`
	Response json.RawMessage `json:"response"`
}

// Membership is the gateway's view of an insured member.
type Membership struct {
	CardNumber   string `json:"card_number"`
	Name         string `json:"name"`
	MemberClass  string `json:"member_class"`
	Status       string `json:"status"`
	CoverageEnd  string `json:"coverage_end"`
	ProviderCode string `json:"provider_code"`
}

// ClaimRequest is the claim submission payload.
type ClaimRequest struct {
	CardNumber    string `json:"card_number"`
	EncounterID   string `json:"encounter_id"`
	ServiceDate   string `json:"service_date"`
	DiagnosisCode string `json:"diagnosis_code"`
	ProcedureCode string `json:"procedure_code,omitempty"`
	TotalAmount   int64  `json:"total_amount"`
}

// ClaimResult is the gateway's acknowledgement of a submitted claim.
type ClaimResult struct {
	ClaimID     string `json:"claim_id"`
	Status      string `json:"status"`
	SubmittedAt string `json:"submitted_at"`
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client used for gateway calls.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRetryOptions sets the retry policy applied to every gateway operation.
func WithRetryOptions(opts ...RetryOption) ClientOption {
	return func(cl *Client) { cl.retryOpts = opts }
}

// Client calls the payer gateway's REST API. All operations run under the
// retry executor, so the errors they return are always classified
// *PayerError values.
type Client struct {
	baseURL    string
	consID     string
	secret     string
	httpClient *http.Client
	retryOpts  []RetryOption
}

// NewClient creates a gateway client. consID and secret identify the
// facility to the gateway.
func NewClient(baseURL, consID, secret string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		consID:  consID,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// do performs one HTTP exchange with the gateway and unwraps the envelope.
// A non-2xx status with no parseable envelope becomes an *HTTPError; an
// envelope whose metaData code is not "200" becomes a *GatewayError. Both
// feed the classifier unchanged.
func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Cons-ID", c.consID)
	req.Header.Set("X-Signature", c.secret)
	req.Header.Set("X-Timestamp", time.Now().UTC().Format(time.RFC3339))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Envelope responses never exceed 1 MB. A read failure here is a
	// transport failure, not a malformed envelope, and must reach the
	// classifier as such.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.MetaData.Code == "" {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &HTTPError{Status: resp.StatusCode, StatusText: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("unparseable gateway response: %w", err)
	}

	if env.MetaData.Code != "200" {
		return nil, &GatewayError{Code: env.MetaData.Code, Message: env.MetaData.Message}
	}
	return env.Response, nil
}

// VerifyMembership checks a member's card against the gateway.
func (c *Client) VerifyMembership(ctx context.Context, cardNumber string) (*Membership, error) {
	return Do(ctx, func(ctx context.Context) (*Membership, error) {
		raw, err := c.do(ctx, http.MethodGet, "/v1/members/"+url.PathEscape(cardNumber), nil)
		if err != nil {
			return nil, err
		}
		var m Membership
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode membership: %w", err)
		}
		return &m, nil
	}, c.retryOpts...)
}

// SubmitClaim submits a claim. Retrying a submission is safe only because
// the gateway reports a resubmitted encounter as a duplicate claim, which
// the taxonomy marks non-retryable; callers must not submit the same
// encounter concurrently.
func (c *Client) SubmitClaim(ctx context.Context, claim *ClaimRequest) (*ClaimResult, error) {
	return Do(ctx, func(ctx context.Context) (*ClaimResult, error) {
		raw, err := c.do(ctx, http.MethodPost, "/v1/claims", claim)
		if err != nil {
			return nil, err
		}
		var r ClaimResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode claim result: %w", err)
		}
		return &r, nil
	}, c.retryOpts...)
}

// CancelClaim cancels a previously submitted claim.
func (c *Client) CancelClaim(ctx context.Context, claimID, reason string) error {
	_, err := Do(ctx, func(ctx context.Context) (struct{}, error) {
		body := map[string]string{"reason": reason}
		_, err := c.do(ctx, http.MethodDelete, "/v1/claims/"+url.PathEscape(claimID), body)
		return struct{}{}, err
	}, c.retryOpts...)
	return err
}
