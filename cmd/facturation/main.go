package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kyntus/facturation/constants"
	"github.com/kyntus/facturation/internal/common"
	"github.com/kyntus/facturation/internal/entity"
	"github.com/kyntus/facturation/internal/export"
	"github.com/kyntus/facturation/internal/fields"
	"github.com/kyntus/facturation/internal/ingest"
	"github.com/kyntus/facturation/internal/pipeline"
	"github.com/kyntus/facturation/internal/reconcile"
	"github.com/kyntus/facturation/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	_ = godotenv.Load()

	var (
		inmem    = flag.Bool("inmem", false, "use an in-memory SQLite database")
		praxedo  = flag.String("praxedo", "", "Praxedo CSV export to import")
		pidi     = flag.String("pidi", "", "PIDI CSV export to import")
		rules    = flag.String("rules", "", "billing rules JSON snapshot to load")
		remu     = flag.String("remu", "", "closure remuneration JSON snapshot to load")
		out      = flag.String("out", "", "output XLSX report path (empty: no export)")
		skipRun  = flag.Bool("skip-run", false, "import only, skip reconciliation and billing")
		watch    = flag.String("watch", "", "comma-separated drop directories to watch for feed files")
		tieLast  = flag.Bool("tie-last", false, "resolve ambiguous matches with the last imported row instead of the first")
		importer = flag.String("by", "cli", "operator tag recorded on import batches")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()
	cfg := common.LoadConfig()
	if *inmem {
		cfg.Database.DSN = ":memory:"
		cfg.Database.MaxConns = 1
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	aliases, err := fields.LoadAliasConfig(cfg.Ingest.AliasConfigPath)
	if err != nil {
		printError("Error: alias configuration: %v\n", err)
		os.Exit(1)
	}

	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	imports := repository.NewImportRepository(db, logger)
	dossiers := repository.NewDossierRepository(db, logger)
	reference := repository.NewReferenceRepository(db, logger)
	svc := pipeline.NewService(imports, dossiers, reference, aliases, cfg.Ingest, logger)

	if *rules != "" {
		if err := loadReference(*rules, func(rows []entity.BillingRule) error {
			return reference.ReplaceRules(ctx, rows)
		}); err != nil {
			logger.Error("failed to load billing rules", "path", *rules, "error", err)
			os.Exit(1)
		}
	}
	if *remu != "" {
		if err := loadReference(*remu, func(rows []entity.ClosureRemuneration) error {
			return reference.ReplaceRemunerations(ctx, rows)
		}); err != nil {
			logger.Error("failed to load remunerations", "path", *remu, "error", err)
			os.Exit(1)
		}
	}

	if *praxedo != "" {
		importFeed(ctx, svc, constants.FeedPraxedo, *praxedo, *importer, logger)
	}
	if *pidi != "" {
		importFeed(ctx, svc, constants.FeedPIDI, *pidi, *importer, logger)
	}

	tieBreak := reconcile.TieBreakFirstImported
	if *tieLast {
		tieBreak = reconcile.TieBreakLastImported
	}

	if *watch != "" {
		watchLoop(svc, strings.Split(*watch, ","), tieBreak, *importer, logger)
		return
	}

	if *skipRun {
		return
	}

	sum, err := svc.ReconcileAndEvaluate(ctx, tieBreak)
	if err != nil {
		logger.Error("reconciliation failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Reconciliation complete!\n")
	fmt.Printf("- Dossiers: %d\n", sum.Dossiers)
	for _, st := range []constants.MatchStatus{
		constants.MatchOK, constants.MatchAbsentPIDI, constants.MatchAbsentPraxedo, constants.MatchUnknown,
	} {
		if n := sum.ByMatch[st]; n > 0 {
			fmt.Printf("  - %s: %d\n", st, n)
		}
	}
	for _, st := range []constants.VerdictStatus{
		constants.VerdictFacturable, constants.VerdictAVerifier, constants.VerdictNonFacturable,
	} {
		if n := sum.ByVerdict[st]; n > 0 {
			fmt.Printf("  - %s: %d\n", st, n)
		}
	}

	if *out == "" {
		return
	}
	xlsx, err := export.NewService(dossiers, cfg.Export, logger).ExportReportXLSX(ctx)
	if err != nil {
		logger.Error("failed to export report", "error", err)
		os.Exit(1)
	}
	target := *out
	if !filepath.IsAbs(target) {
		target = filepath.Join(cfg.Export.OutputDir, target)
	}
	if err := os.WriteFile(target, xlsx, 0644); err != nil {
		logger.Error("failed to write report", "path", target, "error", err)
		os.Exit(1)
	}
	fmt.Printf("- Report: %s\n", target)
}

func importFeed(ctx context.Context, svc *pipeline.Service, feed constants.Feed, path, by string, logger *slog.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("failed to read feed file", "feed", feed, "path", path, "error", err)
		os.Exit(1)
	}
	start := time.Now()
	sum, err := svc.ImportFeed(ctx, feed, filepath.Base(path), data, by)
	if err != nil {
		logger.Error("import failed", "feed", feed, "path", path, "error", err)
		os.Exit(1)
	}
	fmt.Printf("Imported %s: %d rows, %d records (%s, %q) in %s\n",
		feed, sum.Rows, sum.Records, sum.Encoding, sum.Delimiter, time.Since(start).Round(time.Millisecond))
	for _, w := range sum.Warnings {
		fmt.Printf("  warning line %d: %s\n", w.Line, w.Message)
	}
	if len(sum.MissingOptional) > 0 {
		fmt.Printf("  unresolved optional columns: %v\n", sum.MissingOptional)
	}
}

// watchLoop imports every feed file dropped under the watch roots and reruns
// reconciliation after each import. Runs until interrupted.
func watchLoop(svc *pipeline.Service, roots []string, tieBreak reconcile.TieBreak, by string, logger *slog.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       roots,
		InitialScan: true,
		Debounce:    2 * time.Second,
	}, logger)
	if err != nil {
		logger.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}
	logger.Info("watching drop directories", "roots", roots)

	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if ok {
				logger.Error("watch error", "error", err)
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := os.ReadFile(ev.Path)
			if err != nil {
				logger.Error("failed to read dropped file", "path", ev.Path, "error", err)
				continue
			}
			if _, err := svc.ImportFeed(ctx, ev.Feed, filepath.Base(ev.Path), data, by); err != nil {
				logger.Error("import failed", "feed", ev.Feed, "path", ev.Path, "error", err)
				continue
			}
			if _, err := svc.ReconcileAndEvaluate(ctx, tieBreak); err != nil {
				logger.Error("reconciliation failed", "error", err)
			}
		}
	}
}

func loadReference[T any](path string, replace func([]T) error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var rows []T
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return replace(rows)
}
