package sheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Google is a worksheet inside a Google Sheets spreadsheet.
type Google struct {
	svc           *sheets.Service
	logger        *slog.Logger
	spreadsheetID string
	worksheet     string
	retryDelay    time.Duration
}

// NewGoogle connects to a spreadsheet using a service-account credentials file.
// Extra client options (endpoint, HTTP client) are passed through to the API
// client; when credentialsFile is empty the options must supply auth.
func NewGoogle(ctx context.Context, credentialsFile, spreadsheetID, worksheet string, logger *slog.Logger, opts ...option.ClientOption) (*Google, error) {
	if spreadsheetID == "" {
		return nil, errors.New("spreadsheet ID is required")
	}
	if worksheet == "" {
		worksheet = "Sheet1"
	}
	if logger == nil {
		logger = slog.Default()
	}

	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("credentials file %q: %w", credentialsFile, err)
		}
		opts = append([]option.ClientOption{
			option.WithCredentialsFile(credentialsFile),
			option.WithScopes(sheets.SpreadsheetsScope),
		}, opts...)
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("authenticating with Google: %w", err)
	}
	return &Google{
		svc:           svc,
		logger:        logger,
		spreadsheetID: spreadsheetID,
		worksheet:     worksheet,
		retryDelay:    2 * time.Second,
	}, nil
}

func (g *Google) rangeFor(a1 string) string {
	name := "'" + strings.ReplaceAll(g.worksheet, "'", "''") + "'"
	if a1 == "" {
		return name
	}
	return name + "!" + a1
}

// isQuotaError reports whether a Sheets API error is worth retrying.
func isQuotaError(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= http.StatusInternalServerError
	}
	return false
}

func (g *Google) do(ctx context.Context, op string, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(g.retryDelay),
		retry.MaxDelay(time.Minute),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(g.retryDelay/2+time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(isQuotaError),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Warn("Sheets API quota hit, backing off", "op", op, "attempt", n+1, "error", err)
		}),
	)
}

func (g *Google) values(ctx context.Context) ([][]string, error) {
	var resp *sheets.ValueRange
	err := g.do(ctx, "get", func() error {
		var err error
		resp, err = g.svc.Spreadsheets.Values.Get(g.spreadsheetID, g.rangeFor("")).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading worksheet %q: %w", g.worksheet, err)
	}

	grid := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		grid[i] = cells
	}
	return grid, nil
}

// Headers returns row 1.
func (g *Google) Headers(ctx context.Context) ([]string, error) {
	grid, err := g.values(ctx)
	if err != nil {
		return nil, err
	}
	if len(grid) == 0 {
		return nil, nil
	}
	return grid[0], nil
}

// Records returns every row below the header.
func (g *Google) Records(ctx context.Context) ([]Record, error) {
	grid, err := g.values(ctx)
	if err != nil {
		return nil, err
	}
	return recordsFromValues(grid), nil
}

// UpdateCell overwrites one cell. Values are written raw so that text such as
// "[GUESS] a@b.com" is never interpreted as a formula.
func (g *Google) UpdateCell(ctx context.Context, row, col int, value string) error {
	a1 := fmt.Sprintf("%s%d", ColumnLetter(col), row)
	vr := &sheets.ValueRange{Values: [][]any{{value}}}
	err := g.do(ctx, "update", func() error {
		_, err := g.svc.Spreadsheets.Values.Update(g.spreadsheetID, g.rangeFor(a1), vr).
			ValueInputOption("RAW").Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("updating %s: %w", a1, err)
	}
	return nil
}

// Close is a no-op; the API client holds no resources.
func (*Google) Close() error {
	return nil
}
