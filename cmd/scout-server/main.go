// Package main implements the scout web server, a JSON API over the leads sheet.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeGROOVE-dev/scout/pkg/gemini"
	"github.com/codeGROOVE-dev/scout/pkg/scout"
)

var (
	port         = flag.String("port", "8080", "Port for web server")
	sheetID      = flag.String("sheet-id", "", "Google Sheets spreadsheet ID (or set SHEET_ID)")
	worksheet    = flag.String("worksheet", "Sheet1", "Worksheet name (or set WORKSHEET)")
	credentials  = flag.String("credentials", "credentials.json", "Service-account credentials file (or set GOOGLE_CREDENTIALS)")
	sqlitePath   = flag.String("sqlite", "", "Use a local SQLite sheet at this path (or set SCOUT_DB)")
	serperAPIKey = flag.String("serper-key", "", "Serper API key (or set SERPER_API_KEY)")
	geminiAPIKey = flag.String("gemini-key", "", "Gemini API key (or set GEMINI_API_KEY)")
	geminiModel  = flag.String("gemini-model", gemini.DefaultModel, "Gemini model to use (or set GEMINI_MODEL)")
	gcpProject   = flag.String("gcp-project", "", "GCP project ID (or set GCP_PROJECT)")
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
		fmt.Println("scout Server v1.0.0")
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

	envDefault(port, "PORT", "8080")
	envDefault(sheetID, "SHEET_ID", "")
	envDefault(worksheet, "WORKSHEET", "Sheet1")
	envDefault(credentials, "GOOGLE_CREDENTIALS", "credentials.json")
	envDefault(sqlitePath, "SCOUT_DB", "")
	envDefault(serperAPIKey, "SERPER_API_KEY", "")
	envDefault(geminiAPIKey, "GEMINI_API_KEY", "")
	envDefault(geminiModel, "GEMINI_MODEL", gemini.DefaultModel)
	envDefault(gcpProject, "GCP_PROJECT", "")

	// Log configuration (without exposing sensitive keys)
	logger.Info("Server configuration",
		"port", *port,
		"verbose", *verbose,
		"worksheet", *worksheet,
		"sqlite", *sqlitePath,
		"gemini_model", *geminiModel,
		"has_sheet_id", *sheetID != "",
		"has_serper_key", *serperAPIKey != "",
		"has_gemini_key", *geminiAPIKey != "",
		"has_gcp_project", *gcpProject != "")

	sc, err := scout.NewWithLogger(context.Background(), logger,
		scout.WithSheetID(*sheetID),
		scout.WithWorksheet(*worksheet),
		scout.WithCredentialsFile(*credentials),
		scout.WithSQLite(*sqlitePath),
		scout.WithSerperAPIKey(*serperAPIKey),
		scout.WithGeminiAPIKey(*geminiAPIKey),
		scout.WithGeminiModel(*geminiModel),
		scout.WithGCPProject(*gcpProject),
		scout.WithMemoryOnlyCache(),
	)
	if err != nil {
		logger.Error("Failed to initialize scout", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := sc.Close(); err != nil {
			logger.Error("Failed to close scout", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + *port,
		Handler:           newServer(sc.Pipeline(), logger).routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      enrichTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", *port)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", "error", err)
	}
	logger.Info("Server stopped")
}
