package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var purgeYes bool

func init() {
	purgeCmd.Flags().BoolVar(&purgeYes, "yes", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(purgeCmd)
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Destroy the stored credential",
	Long:  "Overwrites the encrypted blob with random bytes before removing it.",
	RunE:  runPurge,
}

func runPurge(cmd *cobra.Command, args []string) error {
	gk, _, err := buildGatekeeper(newLogger())
	if err != nil {
		return err
	}

	if !gk.HasCredential() {
		fmt.Println("nothing stored")
		return nil
	}

	if !purgeYes {
		fmt.Print("Destroy the stored credential? Type \"yes\" to confirm: ")
		reader := bufio.NewReader(cmd.InOrStdin())
		line, _ := reader.ReadString('\n')
		if strings.TrimSpace(line) != "yes" {
			fmt.Println("aborted")
			return nil
		}
	}

	if err := gk.Vault().Purge(); err != nil {
		return err
	}
	fmt.Println("credential destroyed")
	return nil
}
