// Package intel gathers public web evidence about a lead.
package intel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/go-shiori/go-readability"
	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/scout/pkg/search"
)

const (
	maxConcurrentQueries = 3
	maxWebsiteBytes      = 512 * 1024
	maxWebsiteChars      = 2000
	minReadableChars     = 500
)

// Searcher runs text and image searches.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
	Image(ctx context.Context, query string) (string, error)
}

// Doer fetches web pages.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Intel is the raw evidence collected for one lead.
type Intel struct {
	Bio      string
	Posts    string
	Articles string
	Podcasts string
	News     string
	Website  string // markdown of the firm's site, when the lead has one
	ImageURL string
}

// Text renders the evidence block handed to the classifier.
func (i *Intel) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "BIO:\n%s\n\nPOSTS:\n%s\n\nARTICLES:\n%s\n\nPODCASTS/INTERVIEWS:\n%s\n\nNEWS/PR:\n%s",
		i.Bio, i.Posts, i.Articles, i.Podcasts, i.News)
	if i.Website != "" {
		fmt.Fprintf(&b, "\n\nCOMPANY SITE:\n%s", i.Website)
	}
	return b.String()
}

// Queries are the search templates issued for one lead.
type Queries struct {
	Bio      string
	Posts    string
	Articles string
	Podcasts string
	News     string
	Image    string
}

// BuildQueries returns the fixed search templates for a lead. An existing
// LinkedIn profile URL is searched directly; otherwise the bio search looks
// for the lead's current role at the firm.
func BuildQueries(name, firm, linkedInURL string) Queries {
	q := Queries{
		Posts:    fmt.Sprintf(`site:linkedin.com/posts/ "%s" "%s"`, name, firm),
		Articles: fmt.Sprintf(`site:linkedin.com/pulse/ "%s"`, name),
		Podcasts: fmt.Sprintf(`site:youtube.com OR site:spotify.com OR site:apple.com/podcasts "%s" "%s" interview`, name, firm),
		News:     fmt.Sprintf(`"%s" "%s" press release OR announced OR award OR speaker`, name, firm),
		Image:    fmt.Sprintf(`site:linkedin.com/in/ "%s" "%s" profile picture`, name, firm),
	}
	if strings.Contains(linkedInURL, "linkedin.com/in/") {
		q.Bio = "site:" + linkedInURL
	} else {
		q.Bio = fmt.Sprintf(`site:linkedin.com/in/ "%s" "%s" "Present"`, name, firm)
	}
	return q
}

// Gatherer collects Intel using a Searcher.
type Gatherer struct {
	searcher Searcher
	http     Doer
	logger   *slog.Logger
}

// NewGatherer creates a Gatherer. A nil httpClient disables website fetching.
func NewGatherer(searcher Searcher, httpClient Doer, logger *slog.Logger) *Gatherer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gatherer{searcher: searcher, http: httpClient, logger: logger}
}

// Gather runs every query for the lead. Individual search failures are logged
// and leave their section empty; Gather only fails when ctx is done.
func (g *Gatherer) Gather(ctx context.Context, name, firm, linkedInURL, website string) (*Intel, error) {
	g.logger.Info("gathering intel", "name", name, "firm", firm)
	q := BuildQueries(name, firm, linkedInURL)
	out := &Intel{}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentQueries)

	text := func(dst *string, section, query string) {
		eg.Go(func() error {
			s, err := g.searcher.Search(egCtx, query)
			if err != nil {
				if errors.Is(err, search.ErrNoAPIKey) {
					g.logger.Warn("search skipped: no API key", "section", section)
				} else {
					g.logger.Warn("search failed", "section", section, "query", query, "error", err)
				}
				return nil
			}
			*dst = s
			return nil
		})
	}
	text(&out.Bio, "bio", q.Bio)
	text(&out.Posts, "posts", q.Posts)
	text(&out.Articles, "articles", q.Articles)
	text(&out.Podcasts, "podcasts", q.Podcasts)
	text(&out.News, "news", q.News)

	eg.Go(func() error {
		img, err := g.searcher.Image(egCtx, q.Image)
		if err != nil {
			g.logger.Warn("image search failed", "query", q.Image, "error", err)
			return nil
		}
		out.ImageURL = img
		return nil
	})

	if website != "" && g.http != nil {
		eg.Go(func() error {
			out.Website = g.fetchWebsite(egCtx, website)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("gathering intel for %s: %w", name, err)
	}
	return out, nil
}

// fetchWebsite returns the firm's home page as truncated markdown, or "".
func (g *Gatherer) fetchWebsite(ctx context.Context, raw string) string {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		g.logger.Debug("invalid website URL", "url", raw, "error", err)
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; scout/1.0)")

	resp, err := g.http.Do(req)
	if err != nil {
		g.logger.Debug("website fetch failed", "url", u.String(), "error", err)
		return ""
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			g.logger.Debug("failed to close website body", "error", err)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		g.logger.Debug("website returned non-200", "url", u.String(), "status", resp.StatusCode)
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWebsiteBytes))
	if err != nil {
		return ""
	}
	markdown, err := md.ConvertString(g.mainContent(body, u))
	if err != nil {
		g.logger.Debug("HTML to markdown conversion failed", "url", u.String(), "error", err)
		return ""
	}
	markdown = strings.TrimSpace(markdown)
	if r := []rune(markdown); len(r) > maxWebsiteChars {
		markdown = string(r[:maxWebsiteChars])
	}
	return markdown
}

// mainContent strips navigation and boilerplate from long pages. Short pages,
// or pages readability cannot parse, are used whole.
func (g *Gatherer) mainContent(body []byte, u *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		g.logger.Debug("readability failed, using full page", "url", u.String(), "error", err)
		return string(body)
	}
	if len(strings.TrimSpace(article.TextContent)) < minReadableChars {
		return string(body)
	}
	if title := strings.TrimSpace(article.Title); title != "" {
		return "<h1>" + html.EscapeString(title) + "</h1>" + article.Content
	}
	return article.Content
}
