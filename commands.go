package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/scanvui/backend/analyzer"
	"github.com/scanvui/backend/config"
	"github.com/scanvui/backend/dom"
	"github.com/scanvui/backend/fetcher"
	"github.com/scanvui/backend/logging"
	"github.com/scanvui/backend/render"
	"github.com/scanvui/backend/server"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	scanFile    string
	scanPageURL string
	scanFormat  string
	scanFetch   string

	rootCmd = &cobra.Command{
		Use:           "scanvui",
		Short:         "Inventory the interactive surface of web pages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the scan API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	scanCmd = &cobra.Command{
		Use:   "scan [url]",
		Short: "Scan one page and print its report",
		Long: `Scan fetches a page and prints the report. Use --file to scan a local
HTML file instead, or --file - to read markup from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runScan,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	scanCmd.Flags().StringVarP(&scanFile, "file", "f", "", "scan a local HTML file (- for stdin)")
	scanCmd.Flags().StringVar(&scanPageURL, "page-url", "", "page URL to resolve links against when scanning a file")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "o", render.FormatText, "output format (text, json)")
	scanCmd.Flags().StringVar(&scanFetch, "fetch", fetcher.ModeHTTP, "how to load the page (http, browser)")

	rootCmd.AddCommand(serveCmd, scanCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	envFile := config.LoadEnv()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	if envFile == "" {
		logger.Info("no .env file found, using environment variables")
	} else {
		logger.Info("loaded environment file", "file", envFile)
	}

	gin.SetMode(cfg.GinMode)

	f, err := fetcher.New(cfg.Fetch.Mode, fetcher.Options{
		Timeout:    cfg.Fetch.Timeout,
		UserAgent:  cfg.Fetch.UserAgent,
		BrowserBin: cfg.Fetch.BrowserBin,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	svc, err := analyzer.New(cfg.DataDir,
		analyzer.WithFetcher(f),
		analyzer.WithServiceLogger(logger),
		analyzer.WithCacheTTL(cfg.CacheTTL))
	if err != nil {
		return fmt.Errorf("failed to start analyzer: %w", err)
	}
	defer func() {
		if err := svc.Shutdown(); err != nil {
			logger.Error("analyzer shutdown failed", "error", err)
		}
	}()

	stats, err := logging.NewStatistics(cfg.DataDir, cfg.DevMode)
	if err != nil {
		return fmt.Errorf("failed to load request statistics: %w", err)
	}
	defer func() {
		if err := stats.Save(); err != nil {
			logger.Error("failed to save request statistics", "error", err)
		}
	}()

	srv := server.New(svc, stats, server.Options{
		RatePerSecond: cfg.RateLimit.PerSecond,
		RateBurst:     cfg.RateLimit.Burst,
		ScanTimeout:   cfg.Fetch.Timeout * 2,
		Logger:        logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx, ":"+cfg.Port)
}

func runScan(cmd *cobra.Command, args []string) error {
	level, format := logLevel, logFormat
	if level == "" {
		level = "warn"
	}
	if format == "" {
		format = "text"
	}
	logger, err := logging.NewLogger(level, format, os.Stderr)
	if err != nil {
		return err
	}

	markup, pageURL, err := loadMarkup(cmd.Context(), cmd.InOrStdin(), args, logger)
	if err != nil {
		return err
	}

	doc, err := dom.Parse(bytes.NewReader(markup), pageURL)
	if err != nil {
		return err
	}
	report, err := analyzer.Scan(doc, analyzer.WithLogger(logger))
	if err != nil {
		if errors.Is(err, dom.ErrNoDocument) {
			return fmt.Errorf("nothing to scan: %w", err)
		}
		return err
	}

	return render.Write(cmd.OutOrStdout(), report, scanFormat)
}

func loadMarkup(ctx context.Context, stdin io.Reader, args []string, logger *slog.Logger) ([]byte, string, error) {
	switch {
	case scanFile == "-":
		data, err := io.ReadAll(stdin)
		return data, scanPageURL, err
	case scanFile != "":
		data, err := os.ReadFile(scanFile)
		return data, scanPageURL, err
	case len(args) == 1:
		f, err := fetcher.New(scanFetch, fetcher.Options{Logger: logger})
		if err != nil {
			return nil, "", err
		}
		page, err := f.Fetch(ctx, args[0])
		if err != nil {
			return nil, "", err
		}
		return page.Body, page.URL, nil
	}
	return nil, "", errors.New("either a url argument or --file is required")
}
