package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"digiucto/internal/closing"
	"digiucto/pkg/models"
)

var closeMonth string

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Close an accounting period over the exported documents",
	Long: `Close marks the owner's exported documents as accounted in the given
posting month (YYYY-MM) and flags documents posted more than 30 days after
their issue date. Accounted documents are immutable afterwards.`,
	RunE: runClose,
}

func init() {
	closeCmd.Flags().StringVarP(&closeMonth, "month", "m", "", "Posting month (YYYY-MM)")
	closeCmd.MarkFlagRequired("month")
	rootCmd.AddCommand(closeCmd)
}

func runClose(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := cmd.Context()
	docs, err := rt.store.ListDocumentsByStatus(ctx, rt.cfg.OwnerID, models.StatusExported)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("No exported documents to close.")
		return nil
	}

	closer := closing.NewCloser(rt.store)
	report, err := closer.ClosePeriod(ctx, docs, closeMonth)
	if err != nil {
		return err
	}

	late := 0
	for _, doc := range docs {
		if doc.Status == models.StatusAccounted && doc.PostedLate {
			late++
		}
	}

	fmt.Printf("Accounted %d of %d documents into %s (%d posted late)\n",
		report.Succeeded, len(docs), closeMonth, late)
	for id, itemErr := range report.Errors {
		fmt.Printf("  failed: %s: %v\n", id, itemErr)
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed to close", report.Failed, len(docs))
	}
	return nil
}
