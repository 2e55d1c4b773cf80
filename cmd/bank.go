package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"digiucto/internal/logger"
	"digiucto/pkg/models"
)

var bankOutput string

var bankCmd = &cobra.Command{
	Use:   "bank-export",
	Short: "Export bank transactions as a Pohoda XML data pack",
	Long: `Bank-export collects the owner's draft and matched bank transactions,
serializes them into a Pohoda bank import data pack and advances each
transaction to the exported status.`,
	RunE: runBankExport,
}

func init() {
	bankCmd.Flags().StringVarP(&bankOutput, "output", "o", "pohoda-bank-import.xml", "Output XML file")
	rootCmd.AddCommand(bankCmd)
}

func runBankExport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("bank-export-cmd")

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := cmd.Context()
	txs, err := rt.store.ListTransactionsByStatus(ctx, rt.cfg.OwnerID,
		models.TransactionDraft, models.TransactionMatched)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		fmt.Println("No bank transactions to export.")
		return nil
	}

	xml, report, err := rt.exportService().ExportTransactions(ctx, txs)
	if err != nil {
		return err
	}

	if err := os.WriteFile(bankOutput, xml, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", bankOutput, err)
	}

	log.Info().
		Str("output", bankOutput).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Msg("Bank export written")

	fmt.Printf("Exported %d of %d transactions to %s\n", report.Succeeded, len(txs), bankOutput)
	for id, itemErr := range report.Errors {
		fmt.Printf("  failed: %s: %v\n", id, itemErr)
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d transactions failed to transition", report.Failed, len(txs))
	}
	return nil
}
