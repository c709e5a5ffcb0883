package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault, policy, and ledger state",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	gk, cfg, err := buildGatekeeper(newLogger())
	if err != nil {
		return err
	}

	entries, err := gk.Ledger().List()
	if err != nil {
		return err
	}

	info := map[string]any{
		"credential_stored": gk.HasCredential(),
		"vault_backend":     cfg.Vault.Backend,
		"channel":           cfg.Channel.Type,
		"policy_hash":       gk.PolicyHash(),
		"ledger_entries":    len(entries),
		"ledger_disabled":   gk.Ledger().Disabled(),
	}
	out, _ := json.MarshalIndent(info, "", "  ")
	fmt.Println(string(out))
	return nil
}
