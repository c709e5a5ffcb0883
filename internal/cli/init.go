package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openclaw/paygate/internal/config"
	"github.com/openclaw/paygate/internal/gatekeeper"
	"github.com/openclaw/paygate/internal/model"
	"github.com/openclaw/paygate/internal/policy"
)

var initForce bool

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Replace an already-stored credential")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap configuration and store the payment credential",
	Long: `Creates ~/.paygate with default config and policy documents (existing
files are kept), initializes the encryption key in the configured backend,
and walks through entering the card interactively.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := config.EnsureDir(); err != nil {
		return err
	}

	var created []string
	if wrote, err := writeIfMissing(config.Path(), config.DefaultYAML()); err != nil {
		return err
	} else if wrote {
		created = append(created, config.Path())
	}
	if wrote, err := writeIfMissing(config.PolicyPath(), policy.DefaultConfigYAML()); err != nil {
		return err
	} else if wrote {
		created = append(created, config.PolicyPath())
	}
	for _, p := range created {
		fmt.Printf("created %s\n", p)
	}

	cfg, err := config.Load(config.Path())
	if err != nil {
		return err
	}
	v, err := gatekeeper.BuildVault(cfg, newLogger())
	if err != nil {
		return err
	}
	if err := v.Initialize(); err != nil {
		return fmt.Errorf("initialize vault: %w", err)
	}

	if v.Exists() && !initForce {
		fmt.Println("credential already stored (use --force to replace)")
		return nil
	}

	cred, err := promptCredential(cmd)
	if err != nil {
		return err
	}
	if err := v.Store(cred); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	fmt.Println("credential stored (encrypted at rest)")
	return nil
}

// promptCredential reads card fields from the terminal. Values never touch
// logs or config files.
func promptCredential(cmd *cobra.Command) (*model.Credential, error) {
	reader := bufio.NewReader(cmd.InOrStdin())

	cardholder, err := ask(reader, "Cardholder name: ")
	if err != nil {
		return nil, err
	}
	number, err := ask(reader, "Card number: ")
	if err != nil {
		return nil, err
	}
	expMonth, err := askInt(reader, "Expiry month (1-12): ")
	if err != nil {
		return nil, err
	}
	expYear, err := askInt(reader, "Expiry year (e.g. 2028): ")
	if err != nil {
		return nil, err
	}
	cvv, err := ask(reader, "Verification code: ")
	if err != nil {
		return nil, err
	}
	billing, err := ask(reader, "Billing address (optional): ")
	if err != nil {
		return nil, err
	}

	if cardholder == "" || number == "" || cvv == "" {
		return nil, fmt.Errorf("cardholder, number, and verification code are required")
	}
	if expMonth < 1 || expMonth > 12 {
		return nil, fmt.Errorf("expiry month must be 1-12")
	}

	return &model.Credential{
		Cardholder:     cardholder,
		Number:         strings.ReplaceAll(number, " ", ""),
		ExpMonth:       expMonth,
		ExpYear:        expYear,
		CVV:            cvv,
		BillingAddress: billing,
	}, nil
}

func ask(reader *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func askInt(reader *bufio.Reader, prompt string) (int, error) {
	s, err := ask(reader, prompt)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("expected a number, got %q", s)
	}
	return n, nil
}

// writeIfMissing writes content unless the file already exists.
func writeIfMissing(path, content string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
