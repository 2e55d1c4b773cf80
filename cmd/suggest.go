package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"digiucto/internal/logger"
	"digiucto/pkg/models"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Fill in ledger accounts for documents that lack them",
	Long: `Suggest resolves the accounting code and debit/credit account pair for
the owner's draft and verified documents that do not carry accounts yet.
The deterministic heuristic decides first; the AI suggester is consulted
only for documents the heuristic cannot classify. Documents neither can
decide keep the uncertainty sentinel and wait for a human.`,
	RunE: runSuggest,
}

func init() {
	rootCmd.AddCommand(suggestCmd)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("suggest-cmd")

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	resolver, err := rt.resolver()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	docs, err := rt.store.ListDocumentsByStatus(ctx, rt.cfg.OwnerID,
		models.StatusDraft, models.StatusVerified)
	if err != nil {
		return err
	}

	resolved, uncertain, failed := 0, 0, 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if doc.DebitAccount != "" && doc.CreditAccount != "" {
			continue
		}

		resolution := resolver.ResolveWithSuggestion(ctx, doc)
		resolution.Apply(doc)

		if err := rt.store.UpdateDocument(ctx, doc, doc.Status); err != nil {
			log.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to persist resolution")
			failed++
			continue
		}
		if resolution.Certain {
			resolved++
		} else {
			uncertain++
		}
	}

	fmt.Printf("Resolved %d documents, %d need human review, %d failed to save\n",
		resolved, uncertain, failed)
	if failed > 0 {
		return fmt.Errorf("%d documents failed to save", failed)
	}
	return nil
}
