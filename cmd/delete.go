package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"digiucto/internal/lifecycle"
	"digiucto/internal/logger"
)

var deleteTransaction bool

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a document or bank transaction",
	Long: `Delete removes a document or, with --transaction, a bank transaction
from the store. Accounted documents belong to a closed period and can no
longer be deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteTransaction, "transaction", "t", false, "Delete a bank transaction instead of a document")
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("delete-cmd")

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := cmd.Context()
	id := args[0]

	if deleteTransaction {
		if err := rt.store.DeleteTransaction(ctx, id); err != nil {
			return err
		}
		log.Info().Str("transaction_id", id).Msg("Transaction deleted")
		fmt.Printf("Deleted transaction %s\n", id)
		return nil
	}

	doc, err := rt.store.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if err := lifecycle.EnsureDeletable(doc); err != nil {
		return err
	}
	if err := rt.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	log.Info().
		Str("document_id", doc.ID).
		Str("status", string(doc.Status)).
		Msg("Document deleted")
	fmt.Printf("Deleted document %s\n", id)
	return nil
}
