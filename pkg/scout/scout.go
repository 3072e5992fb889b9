// Package scout wires the sheet, search, model and cache layers into an
// enrichment pipeline.
package scout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/codeGROOVE-dev/scout/pkg/enrich"
	"github.com/codeGROOVE-dev/scout/pkg/gemini"
	"github.com/codeGROOVE-dev/scout/pkg/httpcache"
	"github.com/codeGROOVE-dev/scout/pkg/intel"
	"github.com/codeGROOVE-dev/scout/pkg/search"
	"github.com/codeGROOVE-dev/scout/pkg/sheet"
)

const (
	diskCacheTTL   = 14 * 24 * time.Hour
	memoryCacheTTL = 12 * time.Hour
)

// Scout owns the long-lived clients behind a Pipeline.
type Scout struct {
	logger   *slog.Logger
	cache    *httpcache.Cache
	sheet    sheet.Sheet
	pipeline *enrich.Pipeline
}

func newCache(ctx context.Context, logger *slog.Logger, o *OptionHolder) *httpcache.Cache {
	switch {
	case o.noCache:
		logger.Info("caching disabled by --no-cache flag")
		return nil
	case o.memoryOnlyCache:
		return httpcache.NewMemoryOnly(memoryCacheTTL, logger)
	}

	dir := o.cacheDir
	if dir == "" {
		userCacheDir, err := os.UserCacheDir()
		if err != nil {
			logger.Debug("could not determine user cache directory", "error", err)
			return nil
		}
		dir = filepath.Join(userCacheDir, "scout")
	}
	cache, err := httpcache.New(ctx, dir, diskCacheTTL, logger)
	if err != nil {
		// Cache is optional.
		logger.Warn("cache initialization failed", "error", err, "cache_dir", dir)
		return nil
	}
	return cache
}

func openSheet(ctx context.Context, logger *slog.Logger, o *OptionHolder) (sheet.Sheet, error) {
	if o.sqlitePath != "" {
		logger.Info("using local SQLite sheet", "path", o.sqlitePath)
		return sheet.OpenSQLite(ctx, o.sqlitePath)
	}
	if o.sheetID == "" {
		return nil, errors.New("no sheet configured: set -sheet-id or -sqlite")
	}
	return sheet.NewGoogle(ctx, o.credentialsFile, o.sheetID, o.worksheet, logger)
}

// NewWithLogger builds a Scout from options.
func NewWithLogger(ctx context.Context, logger *slog.Logger, opts ...Option) (*Scout, error) {
	o := &OptionHolder{}
	for _, opt := range opts {
		opt(o)
	}

	if o.serperAPIKey == "" {
		return nil, search.ErrNoAPIKey
	}

	cache := newCache(ctx, logger, o)
	closeCache := func() {
		if cache == nil {
			return
		}
		if err := cache.Close(); err != nil {
			logger.Warn("failed to close cache", "error", err)
		}
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	var doer httpcache.HTTPClient = httpClient
	if cache != nil {
		doer = httpcache.NewCachedHTTPClient(cache, httpClient, logger)
	}

	searchOpts := []search.Option{search.WithHTTPClient(doer), search.WithLogger(logger)}
	if o.serperBaseURL != "" {
		searchOpts = append(searchOpts, search.WithBaseURL(o.serperBaseURL))
	}
	searcher := search.New(o.serperAPIKey, searchOpts...)
	gatherer := intel.NewGatherer(searcher, doer, logger)

	geminiOpts := []gemini.Option{gemini.WithLogger(logger)}
	if cache != nil {
		geminiOpts = append(geminiOpts, gemini.WithCache(cache))
	}
	model, err := gemini.New(ctx, o.geminiAPIKey, o.geminiModel, o.gcpProject, geminiOpts...)
	if err != nil {
		closeCache()
		return nil, err
	}

	s, err := openSheet(ctx, logger, o)
	if err != nil {
		closeCache()
		return nil, fmt.Errorf("opening sheet: %w", err)
	}

	pipelineOpts := []enrich.Option{enrich.WithLogger(logger), enrich.WithLimit(o.limit)}
	if o.paceSet {
		pipelineOpts = append(pipelineOpts, enrich.WithPace(o.pace))
	}

	logger.Debug("scout ready", "model", model.Model(), "cache", cache != nil)
	return &Scout{
		logger:   logger,
		cache:    cache,
		sheet:    s,
		pipeline: enrich.New(s, gatherer, model, pipelineOpts...),
	}, nil
}

// New builds a Scout with the default logger.
func New(ctx context.Context, opts ...Option) (*Scout, error) {
	return NewWithLogger(ctx, slog.Default(), opts...)
}

// Pipeline returns the enrichment pipeline.
func (s *Scout) Pipeline() *enrich.Pipeline {
	return s.pipeline
}

// Close releases the sheet and saves the cache to disk.
func (s *Scout) Close() error {
	var errs []error
	if err := s.sheet.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing sheet: %w", err))
	}
	if s.cache != nil {
		s.logger.Debug("saving cache", "entries", s.cache.Len())
		if err := s.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing cache: %w", err))
		}
	}
	return errors.Join(errs...)
}
