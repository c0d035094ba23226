package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"library-catalog/config"
	"library-catalog/library"
	"library-catalog/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()

	cmd := &cobra.Command{
		Use:          "library",
		Short:        "In-memory library catalog and circulation tracker",
		Long:         "Keeps books, members and active loans in memory for the lifetime of one session, driven by a text menu.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.Store, "store", cfg.Store, "catalog backend: memory or sqlite (in-memory, never written to disk)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	flags.StringVarP(&cfg.Output, "output", "o", cfg.Output, "listing format: text or json")
	flags.StringVar(&cfg.Seed, "seed", cfg.Seed, "CSV file of title,author,copies rows to load at startup")

	return cmd
}

func run(cfg *config.Config, in io.Reader, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	catalog, err := openCatalog(cfg, log)
	if err != nil {
		return err
	}
	defer catalog.Close()

	log.Info("Catalog opened", zap.String("store", cfg.Store), zap.Stringer("catalog_id", catalog.ID()))

	if cfg.Seed != "" {
		if err := seedCatalog(catalog, cfg.Seed, out); err != nil {
			return err
		}
	}

	con := newConsole(in, out)
	con.json = cfg.Output == config.OutputJSON
	con.interactive = isTerminal(in)
	return runShell(con, catalog)
}

func openCatalog(cfg *config.Config, log *zap.Logger) (*library.Catalog, error) {
	if cfg.Store == config.StoreSQLite {
		catalog, err := library.NewSQLiteCatalog(log)
		if err != nil {
			return nil, fmt.Errorf("open sqlite catalog: %w", err)
		}
		return catalog, nil
	}
	return library.NewMemoryCatalog(log), nil
}

func seedCatalog(catalog *library.Catalog, path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	report, err := catalog.ImportBooks(f)
	if err != nil {
		return err
	}
	for _, failure := range report.Failures {
		fmt.Fprintf(out, "Seed line %d skipped: %s\n", failure.Line, failure.Message)
	}
	fmt.Fprintf(out, "Loaded %d book(s) from %s\n", len(report.Added), path)
	return nil
}

// isTerminal reports whether in is an interactive terminal.
func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
