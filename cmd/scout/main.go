// Package main implements the scout CLI for enriching leads in a spreadsheet.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeGROOVE-dev/scout/pkg/enrich"
	"github.com/codeGROOVE-dev/scout/pkg/gemini"
	"github.com/codeGROOVE-dev/scout/pkg/report"
	"github.com/codeGROOVE-dev/scout/pkg/scout"
)

var (
	sheetID      = flag.String("sheet-id", "", "Google Sheets spreadsheet ID (or set SHEET_ID)")
	worksheet    = flag.String("worksheet", "Sheet1", "Worksheet name (or set WORKSHEET)")
	credentials  = flag.String("credentials", "credentials.json", "Service-account credentials file (or set GOOGLE_CREDENTIALS)")
	sqlitePath   = flag.String("sqlite", "", "Use a local SQLite sheet at this path instead of Google Sheets (or set SCOUT_DB)")
	serperAPIKey = flag.String("serper-key", "", "Serper API key (or set SERPER_API_KEY)")
	geminiAPIKey = flag.String("gemini-key", "", "Gemini API key (or set GEMINI_API_KEY)")
	geminiModel  = flag.String("gemini-model", gemini.DefaultModel, "Gemini model to use (or set GEMINI_MODEL)")
	gcpProject   = flag.String("gcp-project", "", "GCP project ID (or set GCP_PROJECT)")
	cacheDir     = flag.String("cache-dir", "", "Cache directory (or set CACHE_DIR)")
	noCache      = flag.Bool("no-cache", false, "Disable caching")
	limit        = flag.Int("limit", enrich.DefaultLimit, "Maximum leads to enrich in one run")
	pace         = flag.Duration("pace", enrich.DefaultPace, "Pause between leads")
	row          = flag.Int("row", 0, "Enrich only this sheet row")
	list         = flag.Bool("list", false, "Print leads and exit")
	verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	version      = flag.Bool("version", false, "Show version")
)

func envDefault(p *string, key, def string) {
	if *p == def {
		if v := os.Getenv(key); v != "" {
			*p = v
		}
	}
}

func main() {
	flag.Parse()

	if *version {
		fmt.Println("scout CLI v1.0.0")
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env", "error", err)
	}

	envDefault(sheetID, "SHEET_ID", "")
	envDefault(worksheet, "WORKSHEET", "Sheet1")
	envDefault(credentials, "GOOGLE_CREDENTIALS", "credentials.json")
	envDefault(sqlitePath, "SCOUT_DB", "")
	envDefault(serperAPIKey, "SERPER_API_KEY", "")
	envDefault(geminiAPIKey, "GEMINI_API_KEY", "")
	envDefault(geminiModel, "GEMINI_MODEL", gemini.DefaultModel)
	envDefault(gcpProject, "GCP_PROJECT", "")
	envDefault(cacheDir, "CACHE_DIR", "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []scout.Option{
		scout.WithSheetID(*sheetID),
		scout.WithWorksheet(*worksheet),
		scout.WithCredentialsFile(*credentials),
		scout.WithSQLite(*sqlitePath),
		scout.WithSerperAPIKey(*serperAPIKey),
		scout.WithGeminiAPIKey(*geminiAPIKey),
		scout.WithGeminiModel(*geminiModel),
		scout.WithGCPProject(*gcpProject),
		scout.WithLimit(*limit),
		scout.WithPace(*pace),
	}
	if *noCache {
		opts = append(opts, scout.WithNoCache())
	} else if *cacheDir != "" {
		opts = append(opts, scout.WithCacheDir(*cacheDir))
	}

	if err := run(ctx, logger, opts); err != nil {
		logger.Error("scout failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, opts []scout.Option) error {
	s, err := scout.NewWithLogger(ctx, logger, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Error("failed to close scout", "error", err)
		}
	}()
	p := s.Pipeline()

	switch {
	case *list:
		leads, err := p.Leads(ctx)
		if err != nil {
			return err
		}
		fmt.Print(report.Leads(leads))
		fmt.Println()
		fmt.Print(report.Distribution(leads))
		return nil

	case *row > 0:
		start := time.Now()
		res, err := p.ProcessRow(ctx, *row)
		if err != nil {
			return fmt.Errorf("row %d: %w", *row, err)
		}
		logger.Info("row enriched", "row", *row, "duration", time.Since(start).Round(time.Millisecond))
		out, err := report.Result(res, "")
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}

	sum, err := p.Run(ctx)
	fmt.Print(report.Summary(sum))
	return err
}
