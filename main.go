package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dvf-analyzer/config"
	"dvf-analyzer/fetcher/dvf"
	"dvf-analyzer/models"
	"dvf-analyzer/server"
	"dvf-analyzer/services"
	"dvf-analyzer/storage"
	"dvf-analyzer/utils"
	"dvf-analyzer/watcher"
)

const usage = `usage: dvf-analyzer <command> [flags]

commands:
  report   analyze one postal code and print the report (default)
  serve    start the HTTP tool server
  watch    analyze CSV exports dropped into the inbox directory
`

func main() {
	logger := utils.NewLogger()
	if !config.EnvFileExists() {
		logger.Info("[config] No .env file found, falling back to system env vars")
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAgeDays); err != nil {
		logger.Error("[config] logging: %v", err)
		os.Exit(1)
	}

	cmd, args := "report", os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "report":
		err = runReport(ctx, cfg, logger, args)
	case "serve":
		err = runServe(ctx, cfg, logger)
	case "watch":
		err = runWatch(ctx, cfg, logger)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("%v", err)
		stop()
		os.Exit(1)
	}
}

func newAnalyzer(cfg *config.Config, logger *utils.Logger) (*services.Analyzer, error) {
	opts, err := cfg.AnalyzerOptions()
	if err != nil {
		return nil, err
	}
	return services.NewAnalyzer(logger, opts), nil
}

// openSource returns the DVF API behind the SQL cache, and a close function.
func openSource(ctx context.Context, cfg *config.Config, logger *utils.Logger, refresh bool) (storage.TransactionSource, func(), error) {
	client, err := dvf.NewClient(dvf.Options{
		BaseURL:      cfg.API.BaseURL,
		PropertyType: cfg.API.PropertyType,
		Timeout:      cfg.API.Timeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Store.Driver == "none" {
		return client, func() {}, nil
	}

	store, err := storage.OpenSQLStore(ctx, cfg.Store.Driver, cfg.DSN(), logger)
	if err != nil {
		logger.Warn("[store] cache unavailable, using the API only: %v", err)
		return client, func() {}, nil
	}
	return storage.NewCachedSource(client, store, refresh, logger), func() { _ = store.Close() }, nil
}

func runReport(ctx context.Context, cfg *config.Config, logger *utils.Logger, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	postal := fs.String("postal", "", "postal code to analyze, e.g. 92230")
	rooms := fs.Int("rooms", 0, "only transactions with this room count (0 = all)")
	mode := fs.String("mode", "sale", "analysis type: sale or rental")
	policy := fs.String("policy", cfg.Analysis.OutlierPolicy, "outlier policy: quartile or trim")
	method := fs.String("method", cfg.Analysis.QuartileMethod, "quartile method: inclusive or exclusive")
	maxResults := fs.Int("max", cfg.Analysis.MaxResults, "number of most recent transactions to analyze")
	input := fs.String("input", "", "read transactions from this CSV file instead of the API")
	xlsxPath := fs.String("xlsx", cfg.Export.XLSXPath, "write an XLSX report to this path")
	csvPath := fs.String("csv", cfg.Export.CSVPath, "write the cleaned transactions to this CSV path")
	refresh := fs.Bool("refresh", false, "ignore cached transactions and fetch from the API")
	asJSON := fs.Bool("json", false, "print the result as JSON")
	cached := fs.Bool("cached", false, "list the postal codes held in the transaction cache and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *cached {
		return listCached(ctx, cfg, logger)
	}
	if *postal == "" && *input == "" {
		fs.Usage()
		return errors.New("report: -postal or -input is required")
	}

	analysisMode, err := models.ParseAnalysisMode(*mode)
	if err != nil {
		return err
	}
	cfg.Analysis.OutlierPolicy = *policy
	cfg.Analysis.QuartileMethod = *method
	analyzer, err := newAnalyzer(cfg, logger)
	if err != nil {
		return err
	}

	var source storage.TransactionSource
	if *input != "" {
		source = storage.NewCSVSource(*input, logger)
	} else {
		src, closeFn, err := openSource(ctx, cfg, logger, *refresh)
		if err != nil {
			return err
		}
		defer closeFn()
		source = src
	}

	logger.Info("=== DVF analysis starting: postal %q, mode %s, max %d ===", *postal, analysisMode, *maxResults)
	set, err := source.Fetch(ctx, *postal)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	req := models.AnalysisRequest{MaxResults: *maxResults, Mode: analysisMode}
	if *rooms > 0 {
		req.RoomCount = rooms
	}
	res := analyzer.Run(set.Transactions, set.Request(req))

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("report: encode: %w", err)
		}
	} else {
		services.NewReporter(os.Stdout).Print(res)
	}

	if *csvPath != "" && res.OK() {
		w, err := storage.NewCSVWriter(*csvPath, analyzer.YieldRates())
		if err != nil {
			return err
		}
		if err := w.WriteRecords(res.Records); err != nil {
			_ = w.Close()
			return err
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("csv: close: %w", err)
		}
		logger.Info("Cleaned transactions saved to %s", *csvPath)
	}
	if *xlsxPath != "" {
		if err := storage.NewXLSXWriter(logger).WriteReport(*xlsxPath, res); err != nil {
			return err
		}
	}
	return nil
}

// listCached prints the postal codes stored in the SQL cache, one per line.
func listCached(ctx context.Context, cfg *config.Config, logger *utils.Logger) error {
	if cfg.Store.Driver == "none" {
		return errors.New("report: no transaction cache configured (STORE_DRIVER=none)")
	}
	store, err := storage.OpenSQLStore(ctx, cfg.Store.Driver, cfg.DSN(), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	codes, err := store.PostalCodes(ctx)
	if err != nil {
		return err
	}
	if len(codes) == 0 {
		logger.Info("[store] cache is empty")
		return nil
	}
	for _, c := range codes {
		fmt.Println(c)
	}
	return nil
}

func runServe(ctx context.Context, cfg *config.Config, logger *utils.Logger) error {
	analyzer, err := newAnalyzer(cfg, logger)
	if err != nil {
		return err
	}
	source, closeFn, err := openSource(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer closeFn()

	srv := server.New(server.Config{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		SessionTTL:   cfg.HTTP.SessionTTL,
		MaxResults:   cfg.Analysis.MaxResults,
	}, source, analyzer, logger)
	return srv.Run(ctx)
}

func runWatch(ctx context.Context, cfg *config.Config, logger *utils.Logger) error {
	analyzer, err := newAnalyzer(cfg, logger)
	if err != nil {
		return err
	}
	w := watcher.New(watcher.Options{
		InboxDir:  cfg.Watcher.InboxDir,
		OutputDir: cfg.Watcher.OutputDir,
		Workers:   cfg.Watcher.Workers,
		Request:   models.AnalysisRequest{MaxResults: cfg.Analysis.MaxResults},
	}, analyzer, storage.NewXLSXWriter(logger), logger)
	return w.Run(ctx)
}
