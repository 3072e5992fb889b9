package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/scout/pkg/intel"
	"github.com/codeGROOVE-dev/scout/pkg/lead"
	"github.com/codeGROOVE-dev/scout/pkg/sheet"
)

const (
	// DefaultLimit caps the number of leads enriched in one run.
	DefaultLimit = 50
	// DefaultPace is the pause after each attempted lead.
	DefaultPace = time.Second
)

var (
	// ErrSkipped is returned for leads that cannot be researched.
	ErrSkipped = errors.New("lead skipped: no LinkedIn URL")
	// ErrRowNotFound is returned by ProcessRow for rows outside the sheet.
	ErrRowNotFound = errors.New("row not found")
)

// Gatherer collects intel for a lead.
type Gatherer interface {
	Gather(ctx context.Context, name, firm, linkedInURL, website string) (*intel.Intel, error)
}

// Result is what Process wrote for one lead.
type Result struct {
	Analysis *Analysis `json:"analysis"`
	Guess    *Guess    `json:"guess,omitempty"`
	Dossier  string    `json:"dossier"`
	Draft    string    `json:"draft_email"`
	ImageURL string    `json:"profile_image,omitempty"`
	Row      int       `json:"row"`
}

// Summary counts the outcome of a Run.
type Summary struct {
	Processed    int  `json:"processed"`
	Skipped      int  `json:"skipped"`
	Failed       int  `json:"failed"`
	LimitReached bool `json:"limit_reached"`
}

// Pipeline enriches leads from a sheet.
type Pipeline struct {
	sheet    sheet.Sheet
	gatherer Gatherer
	analyst  *Analyst
	logger   *slog.Logger
	offer    string
	limit    int
	pace     time.Duration
	sleep    func(context.Context, time.Duration) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLimit sets the maximum number of successfully enriched leads per run.
func WithLimit(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.limit = n
		}
	}
}

// WithPace sets the pause after each attempted lead. Zero disables it.
func WithPace(d time.Duration) Option {
	return func(p *Pipeline) {
		if d >= 0 {
			p.pace = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithOffer overrides the product pitched in draft emails.
func WithOffer(offer string) Option {
	return func(p *Pipeline) {
		p.offer = offer
	}
}

// New creates a Pipeline.
func New(s sheet.Sheet, gatherer Gatherer, model Generator, opts ...Option) *Pipeline {
	p := &Pipeline{
		sheet:    s,
		gatherer: gatherer,
		logger:   slog.Default(),
		limit:    DefaultLimit,
		pace:     DefaultPace,
		sleep:    sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.analyst = NewAnalyst(model, p.offer, p.logger)
	return p
}

// Leads loads every lead from the sheet.
func (p *Pipeline) Leads(ctx context.Context) ([]*lead.Lead, error) {
	records, err := p.sheet.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading leads: %w", err)
	}
	leads := make([]*lead.Lead, 0, len(records))
	for _, r := range records {
		leads = append(leads, lead.FromRecord(r.Row, r.Fields))
	}
	return leads, nil
}

func (p *Pipeline) headers(ctx context.Context) ([]string, error) {
	headers, err := p.sheet.Headers(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading headers: %w", err)
	}
	return sheet.EnsureColumns(ctx, p.sheet, headers, lead.EnrichmentColumns, p.logger)
}

// write stores value in the named column. Missing columns are logged when
// optional and returned as errors otherwise.
func (p *Pipeline) write(ctx context.Context, headers []string, row int, column, value string, required bool) error {
	col, err := sheet.ColumnIndex(headers, column)
	if err != nil {
		if required {
			return err
		}
		p.logger.Warn("column missing, not writing", "column", column, "row", row)
		return nil
	}
	if err := p.sheet.UpdateCell(ctx, row, col, value); err != nil {
		return fmt.Errorf("writing %s for row %d: %w", column, row, err)
	}
	return nil
}

// Process researches and writes one lead. headers must be the sheet's current
// header row.
func (p *Pipeline) Process(ctx context.Context, headers []string, l *lead.Lead) (*Result, error) {
	if !l.Enrichable() {
		return nil, ErrSkipped
	}
	name := l.FullName()
	p.logger.Info("processing lead", "name", name, "firm", l.Firm, "row", l.Row)

	in, err := p.gatherer.Gather(ctx, name, l.Firm, l.LinkedInURL, l.Website)
	if err != nil {
		return nil, fmt.Errorf("gathering intel for %s: %w", name, err)
	}
	text := in.Text()
	res := &Result{Row: l.Row, ImageURL: in.ImageURL}

	if l.NeedsEmailGuess() {
		g := p.analyst.GuessEmail(ctx, name, l.Firm, text)
		res.Guess = &g
		if err := p.write(ctx, headers, l.Row, lead.ColFoundEmail, g.String(), false); err != nil {
			return nil, err
		}
	}

	analysis, err := p.analyst.Classify(ctx, text, name, l.Firm)
	if err != nil {
		p.logger.Warn("classification failed, writing empty dossier", "name", name, "error", err)
	}
	res.Analysis = analysis
	res.Dossier = Dossier(analysis)

	draft, err := p.analyst.DraftEmail(ctx, analysis, l.FirstName)
	if err != nil {
		p.logger.Warn("email draft failed", "name", name, "error", err)
	}
	res.Draft = draft

	if err := p.write(ctx, headers, l.Row, lead.ColDossier, res.Dossier, true); err != nil {
		return nil, err
	}
	if err := p.write(ctx, headers, l.Row, lead.ColDraftEmail, res.Draft, true); err != nil {
		return nil, err
	}

	optional := []struct{ column, value string }{
		{lead.ColProfileImage, in.ImageURL},
		{lead.ColPodcastName, analysis.PodcastName},
		{lead.ColPodcastURL, analysis.PodcastURL},
	}
	for _, o := range optional {
		if o.value == "" {
			continue
		}
		if err := p.write(ctx, headers, l.Row, o.column, o.value, false); err != nil {
			return nil, err
		}
	}

	p.logger.Info("lead enriched", "name", name, "archetype", analysis.Archetype())
	return res, nil
}

// ProcessRow re-runs enrichment for the lead on the given sheet row.
func (p *Pipeline) ProcessRow(ctx context.Context, row int) (*Result, error) {
	headers, err := p.headers(ctx)
	if err != nil {
		return nil, err
	}
	leads, err := p.Leads(ctx)
	if err != nil {
		return nil, err
	}
	for _, l := range leads {
		if l.Row == row {
			return p.Process(ctx, headers, l)
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrRowNotFound, row)
}

// Run enriches every eligible lead in sheet order until the limit is hit.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	headers, err := p.headers(ctx)
	if err != nil {
		return sum, err
	}
	leads, err := p.Leads(ctx)
	if err != nil {
		return sum, err
	}
	p.logger.Info("starting run", "leads", len(leads), "limit", p.limit)

	for _, l := range leads {
		if sum.Processed >= p.limit {
			p.logger.Warn("safety limit reached, stopping", "limit", p.limit)
			sum.LimitReached = true
			break
		}
		if !l.Enrichable() {
			p.logger.Debug("skipping lead without LinkedIn URL", "row", l.Row, "name", l.FullName())
			sum.Skipped++
			continue
		}

		if _, err := p.Process(ctx, headers, l); err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			p.logger.Error("lead failed", "row", l.Row, "name", l.FullName(), "error", err)
			sum.Failed++
		} else {
			sum.Processed++
		}

		if err := p.sleep(ctx, p.pace); err != nil {
			return sum, err
		}
	}

	p.logger.Info("run complete", "processed", sum.Processed, "skipped", sum.Skipped, "failed", sum.Failed)
	return sum, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
