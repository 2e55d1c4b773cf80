package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"digiucto/internal/config"
	"digiucto/internal/export"
	"digiucto/internal/ledger"
	"digiucto/internal/logger"
	"digiucto/internal/pohoda"
	"digiucto/internal/store"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "digiucto",
	Short: "Digi-Uctenka CLI - document verification, matching and Pohoda export",
	Long: `Digi-Uctenka CLI drives the accounting document pipeline for small
Czech businesses: verified documents and bank statement transactions are
matched by variable symbol, exported as Pohoda XML data packs and closed
into accounting periods.`,
	Version: version,
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

// runtime bundles the wiring shared by all subcommands.
type runtime struct {
	cfg   *config.Config
	store *store.Store
}

func openRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, store: st}, nil
}

func (r *runtime) close() {
	if err := r.store.Close(); err != nil {
		log := logger.WithComponent("cmd")
		log.Warn().Err(err).Msg("Failed to close store")
	}
}

func (r *runtime) exportService() *export.Service {
	formatter := pohoda.NewFormatter(pohoda.Options{
		Application:      r.cfg.ExportApplication,
		InTransitPairing: r.cfg.InTransitPairing,
	})
	return export.NewService(formatter, r.store, r.store)
}

func (r *runtime) resolver() (*ledger.Resolver, error) {
	rules := ledger.DefaultRules()
	if r.cfg.LedgerRulesPath != "" {
		loaded, err := ledger.LoadRules(r.cfg.LedgerRulesPath)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}

	if r.cfg.OpenAIAPIKey == "" {
		return ledger.NewResolver(rules, nil), nil
	}
	suggester, err := ledger.NewOpenAISuggester(r.cfg.OpenAIAPIKey, r.cfg.OpenAIModel)
	if err != nil {
		return nil, err
	}
	return ledger.NewResolver(rules, suggester), nil
}
