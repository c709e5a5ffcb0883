package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openclaw/paygate/internal/model"
)

var (
	checkAmount      float64
	checkMerchant    string
	checkDescription string
	checkCurrency    string
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Float64Var(&checkAmount, "amount", 0, "Purchase amount (required)")
	checkCmd.Flags().StringVar(&checkMerchant, "merchant", "", "Merchant name or domain (required)")
	checkCmd.Flags().StringVar(&checkDescription, "description", "", "What is being purchased")
	checkCmd.Flags().StringVar(&checkCurrency, "currency", "", "Currency code (defaults to policy currency)")
	checkCmd.MarkFlagRequired("amount")
	checkCmd.MarkFlagRequired("merchant")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Dry-run the spending policy against a purchase",
	Long: "Evaluates a purchase against the active policy and current spend\n" +
		"without touching the vault or the ledger.\n\n" +
		"Exit code 0 unless the decision is deny, then 1.",
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	gk, _, err := buildGatekeeper(newLogger())
	if err != nil {
		return err
	}

	res, err := gk.Evaluate(model.PaymentRequest{
		Amount:      checkAmount,
		Merchant:    checkMerchant,
		Description: checkDescription,
		Currency:    checkCurrency,
	})
	if err != nil {
		return err
	}

	fmt.Printf("decision: %s\nreason:   %s\n", res.Decision, res.Reason)
	if res.Decision == model.Deny {
		os.Exit(1)
	}
	return nil
}
