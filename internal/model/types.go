package model

import "time"

// Decision is the policy evaluation outcome for a payment request.
type Decision string

const (
	AutoApprove     Decision = "auto_approve"
	RequireApproval Decision = "require_approval"
	Deny            Decision = "deny"
)

// PaymentRequest describes a purchase an agent wants to charge to the
// stored credential. Immutable once submitted.
type PaymentRequest struct {
	ID          string            `json:"id"`
	Amount      float64           `json:"amount"`
	Merchant    string            `json:"merchant"`
	Description string            `json:"description"`
	Currency    string            `json:"currency,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

// PolicyResult is the outcome of evaluating a PaymentRequest.
// The Reason string is part of the observable contract, not decoration.
type PolicyResult struct {
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason"`
}

// Credential is the stored payment card. Plaintext exists only inside the
// vault's decrypt call and in the final response to an approved caller.
// Never logged, never persisted unencrypted.
type Credential struct {
	Cardholder     string `json:"cardholder"`
	Number         string `json:"number"`
	ExpMonth       int    `json:"exp_month"`
	ExpYear        int    `json:"exp_year"`
	CVV            string `json:"cvv"`
	BillingAddress string `json:"billing_address,omitempty"`
}

// String keeps card data out of accidental fmt and %v output.
func (c Credential) String() string {
	return "credential(redacted)"
}
