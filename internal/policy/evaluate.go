// Package policy decides whether a payment request is auto-approved,
// requires a human, or is denied outright.
package policy

import (
	"fmt"
	"strings"

	"github.com/openclaw/paygate/internal/model"
)

// Spend is the ledger aggregate snapshot Evaluate reads. Amounts are sums
// of approved entries only; denied requests never count against limits.
type Spend struct {
	Day   float64
	Month float64
}

// Evaluate applies the policy to a single request. Pure given its spend
// snapshot. Check order (first matching rule wins, must not be changed):
//
//  1. Hard block ceiling
//  2. Merchant block-list
//  3. Merchant allow-list (when non-empty)
//  4. Blocked keywords in description or merchant
//  5. Daily limit
//  6. Monthly limit (when configured)
//  7. Auto-approve ceiling
//  8. Otherwise require approval
//
// All list and keyword matches are case-insensitive substring matches.
// Amounts are compared as raw numbers; no cross-currency conversion is
// performed (known limitation).
func Evaluate(req *model.PaymentRequest, cfg *Config, spend Spend) model.PolicyResult {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if req.Amount > cfg.BlockAbove {
		return deny(fmt.Sprintf("amount %s exceeds the hard block ceiling %s",
			formatAmount(req.Amount), formatAmount(cfg.BlockAbove)))
	}

	if entry, ok := matchList(cfg.BlockedMerchants, req.Merchant); ok {
		return deny(fmt.Sprintf("merchant %q matches blocked merchant %q", req.Merchant, entry))
	}

	if len(cfg.AllowedMerchants) > 0 {
		if _, ok := matchList(cfg.AllowedMerchants, req.Merchant); !ok {
			return deny(fmt.Sprintf("merchant %q is not on the merchant allow-list", req.Merchant))
		}
	}

	for _, kw := range cfg.BlockedKeywords {
		if kw == "" {
			continue
		}
		if containsFold(req.Description, kw) || containsFold(req.Merchant, kw) {
			return deny(fmt.Sprintf("request matches blocked keyword %q", kw))
		}
	}

	if cfg.DailyLimit > 0 && spend.Day+req.Amount > cfg.DailyLimit {
		return deny(fmt.Sprintf("daily limit exceeded: %s spent today plus %s exceeds %s",
			formatAmount(spend.Day), formatAmount(req.Amount), formatAmount(cfg.DailyLimit)))
	}

	if cfg.MonthlyLimit > 0 && spend.Month+req.Amount > cfg.MonthlyLimit {
		return deny(fmt.Sprintf("monthly limit exceeded: %s spent this month plus %s exceeds %s",
			formatAmount(spend.Month), formatAmount(req.Amount), formatAmount(cfg.MonthlyLimit)))
	}

	if req.Amount <= cfg.AutoApproveUnder {
		return model.PolicyResult{
			Decision: model.AutoApprove,
			Reason: fmt.Sprintf("amount %s is within the auto-approve ceiling %s",
				formatAmount(req.Amount), formatAmount(cfg.AutoApproveUnder)),
		}
	}

	return model.PolicyResult{
		Decision: model.RequireApproval,
		Reason: fmt.Sprintf("amount %s is above the auto-approve ceiling %s, human approval required",
			formatAmount(req.Amount), formatAmount(cfg.AutoApproveUnder)),
	}
}

func deny(reason string) model.PolicyResult {
	return model.PolicyResult{Decision: model.Deny, Reason: reason}
}

// matchList returns the first list entry that is a case-insensitive
// substring of merchant.
func matchList(list []string, merchant string) (string, bool) {
	for _, entry := range list {
		if entry != "" && containsFold(merchant, entry) {
			return entry, true
		}
	}
	return "", false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// formatAmount trims trailing zeros so reasons read "1000" not "1000.000000".
func formatAmount(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s
}
