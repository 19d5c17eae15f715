package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"review-harvester/browser"
	"review-harvester/config"
	"review-harvester/models"
	"review-harvester/scraper/twogis"
	"review-harvester/services"
	"review-harvester/storage"
	"review-harvester/utils"
)

var (
	inputPath string
	limit     int
	offset    int
	headless  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "review-harvester",
		Short: "Harvest listing reviews from 2GIS for a spreadsheet of businesses",
		Long: `review-harvester reads businesses (id, name, phones, coordinates) from an
.xlsx or .csv file, finds their 2GIS listings and collects every review it
can load from each listing's reviews tab.`,
		Example: `  # Harvest the default input with settings from .env
  review-harvester

  # First 50 rows of another file, without a browser window
  review-harvester --input restaurants.xlsx --limit 50 --headless`,
		Args:         cobra.NoArgs,
		RunE:         run,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input .xlsx or .csv (defaults to INPUT_PATH)")
	rootCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Process at most this many rows (0 for all)")
	rootCmd.Flags().IntVar(&offset, "offset", 0, "Skip this many rows first")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "Run Chrome headless (overrides HEADLESS)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if inputPath != "" {
		cfg.InputPath = inputPath
	}
	if cmd.Flags().Changed("headless") {
		cfg.Headless = headless
	}

	logger := utils.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	runID := uuid.New()
	logger = logger.With("run", runID.String()[:8])

	logger.Info("=== 2GIS Review Harvester starting ===")
	logger.Info("Config — site: %s/%s | rate: %d/min | card timeout: %v | stagnation: %d",
		cfg.BaseDomain, cfg.CitySlug, cfg.RequestsPerMin, cfg.PerCardTimeout, cfg.StagnationRounds)

	entities, cols, err := storage.ReadEntities(cfg.InputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	logger.Info("Columns → id:%d name:%d phone:%d lat:%d lon:%d (-1 = absent)",
		cols.ID, cols.Name, cols.Phone, cols.Lat, cols.Lon)
	entities = window(entities, offset, limit)
	if len(entities) == 0 {
		logger.Warn("No rows to process in %s", cfg.InputPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := browser.Launch(ctx, browser.Options{
		Headless:      cfg.Headless,
		ProfileDir:    cfg.ProfileDir,
		ChromeBin:     cfg.ChromeBin,
		ActionTimeout: cfg.PageLoadTimeout,
	}, logger)
	if err != nil {
		if errors.Is(err, browser.ErrStartup) {
			logger.Error("Could not start Chrome: %v", err)
		}
		return err
	}
	defer session.Close()
	logger.Info("Browser started.")

	checkpoints := storage.NewCheckpointer(cfg.OutputProgressPath, cfg.OutputDir, cfg.ChunkSize, logger)
	sink := storage.MultiSink{checkpoints}
	var pgWriter *storage.PostgresWriter
	if cfg.StorePostgres {
		pgWriter, err = storage.NewPostgresWriter(cfg.DSN(), runID)
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Error("Continuing with CSV output only")
		} else {
			sink = append(sink, pgWriter)
		}
	}

	s := build(cfg, session, sink, logger)
	state := twogis.NewRunState()
	runErr := s.Run(ctx, entities, state)
	if runErr != nil {
		logger.Warn("Run stopped early: %v", runErr)
	}

	if pgWriter != nil {
		if stored, err := pgWriter.CountForRun(); err != nil {
			logger.Warn("Could not count stored rows: %v", err)
		} else {
			logger.Info("PostgreSQL rows stored for run %s: %d", runID, stored)
		}
	}

	// Output is always written, even after an interrupted run.
	if err := sink.Close(); err != nil {
		logger.Error("Final save failed: %v", err)
	}

	reportSvc := services.NewReportService(logger)
	reportSvc.Print(reportSvc.Generate(state.Cards, state.Processed, state.Rows))

	fmt.Printf("  Done. Rows: %d → %s (chunks in %s)\n\n",
		len(checkpoints.Rows()), cfg.OutputProgressPath, cfg.OutputDir)
	return nil
}

// build wires the scraper from configuration.
func build(cfg *config.Config, page browser.Automation, sink storage.RowSink, logger *utils.Logger) *twogis.Scraper {
	site := twogis.Site{BaseDomain: cfg.BaseDomain, CitySlug: cfg.CitySlug}
	pacing := utils.NewPacing(cfg.JitterMin, cfg.JitterMax, cfg.JiggleChance)

	navCfg := twogis.DefaultNavigatorConfig()
	navCfg.CardRetries = cfg.MaxRetries
	navCfg.SearchRetries = cfg.SearchRetries
	navCfg.BaseDelay = cfg.RetryBaseDelay
	nav := twogis.NewNavigator(page, site, navCfg, pacing, logger)

	harvestCfg := twogis.DefaultHarvestConfig()
	harvestCfg.MaxSteps = cfg.MaxLoadSteps
	harvestCfg.StagnationRounds = cfg.StagnationRounds
	harvestCfg.Timeout = cfg.PerCardTimeout
	harvester := twogis.NewHarvester(page, twogis.NewScriptLocator(page),
		services.NewNormalizer(cfg.RatingPxPerStar), harvestCfg, pacing, logger)

	resolver := twogis.NewResolver(page, nav, site, cfg.CountryCode, logger)

	return twogis.New(page, resolver, nav, harvester,
		storage.NewDiagnosticsWriter(cfg.DebugDir), sink,
		twogis.DefaultOptions(twogis.CardTimeout(harvestCfg, cfg.PageLoadTimeout), cfg.EntityInterval()),
		pacing, logger)
}

// window applies --offset and --limit.
func window(entities []models.SourceEntity, offset, limit int) []models.SourceEntity {
	if offset > 0 {
		if offset >= len(entities) {
			return nil
		}
		entities = entities[offset:]
	}
	if limit > 0 && limit < len(entities) {
		entities = entities[:limit]
	}
	return entities
}
