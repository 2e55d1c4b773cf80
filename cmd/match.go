package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"digiucto/internal/matching"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Auto-match bank transactions to documents by variable symbol",
	Long: `Match links the owner's draft bank transactions to open documents
carrying the same variable symbol. Transactions without a symbol, or whose
symbol matches no open document, stay unmatched for manual pairing.`,
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	service := matching.NewService(rt.store, rt.store)
	report, err := service.AutoMatch(cmd.Context(), rt.cfg.OwnerID)
	if err != nil {
		return err
	}

	fmt.Printf("Matched %d transactions, %d left unmatched\n", report.Matched, report.Unmatched)
	for id, itemErr := range report.Errors {
		fmt.Printf("  failed: %s: %v\n", id, itemErr)
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d matched transactions failed to persist", report.Failed)
	}
	return nil
}
