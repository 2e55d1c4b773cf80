package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"digiucto/internal/extraction"
	"digiucto/internal/logger"
)

var addCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Extract a document photo or scan into a new draft",
	Long: `Add sends a document image to the AI extractor and stores the result
as a draft document. Extracted fields are best-effort; the draft must pass
verification before it can be exported.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)
}

var mimeByExtension = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

func runAdd(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("add-cmd")

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if rt.cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required for document extraction")
	}

	path := args[0]
	mimeType, ok := mimeByExtension[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return fmt.Errorf("unsupported file type %q, expected jpg, png or webp", filepath.Ext(path))
	}
	fileBytes, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	extractor, err := extraction.NewOpenAIExtractor(rt.cfg.OpenAIAPIKey, extraction.Config{
		Model: rt.cfg.OpenAIModel,
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	result, err := extractor.Extract(ctx, fileBytes, mimeType)
	if err != nil {
		return err
	}

	doc := result.Document
	doc.OwnerID = rt.cfg.OwnerID
	if err := rt.store.CreateDocument(ctx, &doc); err != nil {
		return err
	}

	log.Info().
		Str("document_id", doc.ID).
		Float64("confidence", result.Confidence).
		Msg("Draft document created from extraction")

	fmt.Printf("Created draft document %s (%s, %s, %.2f %s, confidence %.2f)\n",
		doc.ID, doc.Type, doc.SupplierName, doc.TotalAmount, doc.Currency, result.Confidence)
	if result.Confidence < 0.5 {
		fmt.Println("Low extraction confidence, review the draft carefully before verifying.")
	}
	return nil
}
