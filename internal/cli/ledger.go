package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(ledgerCmd)
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "List logged payment decisions and spend totals",
	RunE:  runLedger,
}

func runLedger(cmd *cobra.Command, args []string) error {
	gk, _, err := buildGatekeeper(newLogger())
	if err != nil {
		return err
	}

	l := gk.Ledger()
	if l.Disabled() {
		fmt.Println("ledger is disabled; daily and monthly limits are not enforced")
		return nil
	}

	entries, err := l.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no decisions logged")
		return nil
	}

	for _, e := range entries {
		verdict := "denied"
		if e.Approved {
			verdict = "approved"
		}
		fmt.Printf("%s  %8.2f %-3s  %-20s  %s (%s): %s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04"),
			e.Request.Amount,
			e.Request.Currency,
			e.Request.Merchant,
			verdict,
			e.ApprovedBy,
			e.Result.Reason,
		)
	}

	now := time.Now()
	day, err := l.SpentToday(now)
	if err != nil {
		return err
	}
	month, err := l.SpentThisMonth(now)
	if err != nil {
		return err
	}
	fmt.Printf("\napproved today: %.2f   this month: %.2f\n", day, month)
	return nil
}
