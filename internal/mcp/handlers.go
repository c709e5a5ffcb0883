package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/openclaw/paygate/internal/model"
	"github.com/openclaw/paygate/internal/policy"
)

// --- Input/Output types ---

// RequestInput defines parameters for the payment_request tool.
type RequestInput struct {
	Amount      float64 `json:"amount" jsonschema:"purchase amount"`
	Merchant    string  `json:"merchant" jsonschema:"merchant name or domain"`
	Description string  `json:"description,omitempty" jsonschema:"what is being purchased"`
	Currency    string  `json:"currency,omitempty" jsonschema:"currency code, defaults to the policy currency"`
}

// CredentialOutput is the revealed card, present only on approval.
type CredentialOutput struct {
	Cardholder     string `json:"cardholder"`
	Number         string `json:"number"`
	ExpMonth       int    `json:"exp_month"`
	ExpYear        int    `json:"exp_year"`
	CVV            string `json:"cvv"`
	BillingAddress string `json:"billing_address,omitempty"`
}

// RequestOutput contains the decision and, when approved, the credential.
type RequestOutput struct {
	Approved   bool              `json:"approved"`
	Reason     string            `json:"reason"`
	Credential *CredentialOutput `json:"credential,omitempty"`
}

// CheckOutput contains the dry-run policy decision.
type CheckOutput struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

// PolicyInput is empty — no parameters needed.
type PolicyInput struct{}

// StatusInput is empty — no parameters needed.
type StatusInput struct{}

// StatusOutput reports vault and ledger state.
type StatusOutput struct {
	CredentialStored bool   `json:"credential_stored"`
	LedgerEntries    int    `json:"ledger_entries"`
	LedgerDisabled   bool   `json:"ledger_disabled"`
	PolicyHash       string `json:"policy_hash"`
	PendingApprovals int    `json:"pending_approvals"`
}

// --- Handlers ---

func (s *Server) handleRequest(ctx context.Context, req *mcpsdk.CallToolRequest, input RequestInput) (*mcpsdk.CallToolResult, RequestOutput, error) {
	resp, err := s.gk.RequestCredential(ctx, model.PaymentRequest{
		Amount:      input.Amount,
		Merchant:    input.Merchant,
		Description: input.Description,
		Currency:    input.Currency,
	})
	if err != nil {
		return nil, RequestOutput{}, err
	}

	out := RequestOutput{Approved: resp.Approved, Reason: resp.Reason}
	if resp.Approved && resp.Credential != nil {
		out.Credential = &CredentialOutput{
			Cardholder:     resp.Credential.Cardholder,
			Number:         resp.Credential.Number,
			ExpMonth:       resp.Credential.ExpMonth,
			ExpYear:        resp.Credential.ExpYear,
			CVV:            resp.Credential.CVV,
			BillingAddress: resp.Credential.BillingAddress,
		}
		return nil, out, nil
	}
	return &mcpsdk.CallToolResult{IsError: true}, out, nil
}

func (s *Server) handleCheck(ctx context.Context, req *mcpsdk.CallToolRequest, input RequestInput) (*mcpsdk.CallToolResult, CheckOutput, error) {
	res, err := s.gk.Evaluate(model.PaymentRequest{
		Amount:      input.Amount,
		Merchant:    input.Merchant,
		Description: input.Description,
		Currency:    input.Currency,
	})
	if err != nil {
		return nil, CheckOutput{}, err
	}
	return nil, CheckOutput{Decision: string(res.Decision), Reason: res.Reason}, nil
}

func (s *Server) handlePolicy(ctx context.Context, req *mcpsdk.CallToolRequest, input PolicyInput) (*mcpsdk.CallToolResult, policy.Config, error) {
	return nil, s.gk.GetPolicy(), nil
}

func (s *Server) handleStatus(ctx context.Context, req *mcpsdk.CallToolRequest, input StatusInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	entries, err := s.gk.Ledger().List()
	if err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{
		CredentialStored: s.gk.HasCredential(),
		LedgerEntries:    len(entries),
		LedgerDisabled:   s.gk.Ledger().Disabled(),
		PolicyHash:       s.gk.PolicyHash(),
		PendingApprovals: len(s.gk.Pending()),
	}, nil
}
