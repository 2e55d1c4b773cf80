package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"digiucto/internal/lifecycle"
	"digiucto/internal/logger"
	"digiucto/pkg/models"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify draft documents for export",
	Long: `Verify runs form validation and amount consistency checks over the
owner's draft documents and moves the passing ones to verified. Failing
documents stay drafts; their validation errors are printed for correction.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("verify-cmd")

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := cmd.Context()
	docs, err := rt.store.ListDocumentsByStatus(ctx, rt.cfg.OwnerID, models.StatusDraft)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("No draft documents to verify.")
		return nil
	}

	verified, rejected := 0, 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := lifecycle.Verify(doc, time.Now()); err != nil {
			rejected++
			fmt.Printf("  %s (%s): %v\n", doc.ID, doc.SupplierName, err)
			continue
		}
		if err := rt.store.UpdateDocument(ctx, doc, models.StatusDraft); err != nil {
			log.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to persist verification")
			rejected++
			fmt.Printf("  %s: %v\n", doc.ID, err)
			continue
		}
		verified++
	}

	fmt.Printf("Verified %d of %d documents, %d need correction\n", verified, len(docs), rejected)
	return nil
}
