package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"digiucto/internal/logger"
	"digiucto/pkg/models"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export verified documents as a Pohoda XML data pack",
	Long: `Export collects the owner's verified documents, serializes them into
a Pohoda invoice import data pack and advances every exported document to
the exported status. A document with inconsistent amounts aborts the whole
batch; nothing is written and no document changes status.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "pohoda-import.xml", "Output XML file")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("export-cmd")

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := cmd.Context()
	docs, err := rt.store.ListDocumentsByStatus(ctx, rt.cfg.OwnerID, models.StatusVerified)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("No verified documents to export.")
		return nil
	}

	xml, report, err := rt.exportService().ExportDocuments(ctx, docs)
	if err != nil {
		return err
	}

	if err := os.WriteFile(exportOutput, xml, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOutput, err)
	}

	log.Info().
		Str("output", exportOutput).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Msg("Export written")

	fmt.Printf("Exported %d of %d documents to %s\n", report.Succeeded, len(docs), exportOutput)
	for id, itemErr := range report.Errors {
		fmt.Printf("  failed: %s: %v\n", id, itemErr)
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed to transition", report.Failed, len(docs))
	}
	return nil
}
