package edgar

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// BatchOptions selects the filings FetchFilingTexts downloads
type BatchOptions struct {
	CIK              string // Required
	FormType         string // Required, matched with FilterByForm
	DateFrom         string // Optional YYYY-MM-DD, empty = no lower bound
	DateTo           string // Optional YYYY-MM-DD, empty = no upper bound
	IncludePaginated bool   // Also fetch the older, paginated filings (slow for large filers)
	Limit            int    // Optional cap on documents fetched, most recent first
}

// FilingText is a filing's primary document reduced to visible text
type FilingText struct {
	Filing Filing
	Text   string
}

// BatchResult holds the documents fetched by FetchFilingTexts
type BatchResult struct {
	Documents  []FilingText
	TotalFound int     // filings matching the options
	Fetched    int     // documents downloaded and extracted
	Errors     []error // per-document failures; the batch keeps going
}

func (o BatchOptions) validate() error {
	if o.CIK == "" {
		return errors.New("CIK is required")
	}
	if o.FormType == "" {
		return errors.New("FormType is required")
	}
	return nil
}

// SelectFilings fetches a company's submissions and returns the filings matching opts
func (c *Client) SelectFilings(ctx context.Context, opts BatchOptions) ([]Filing, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	subs, err := c.FetchSubmissions(ctx, opts.CIK)
	if err != nil {
		return nil, err
	}

	filings := subs.GetRecentFilings()
	if opts.IncludePaginated {
		if filings, err = subs.GetAllFilings(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to fetch paginated filings: %w", err)
		}
	}

	filings = FilterByForm(filings, opts.FormType)
	if opts.DateFrom != "" || opts.DateTo != "" {
		from, to := opts.DateFrom, opts.DateTo
		if from == "" {
			from = "1900-01-01"
		}
		if to == "" {
			to = "2099-12-31"
		}
		filings = FilterByDateRange(filings, from, to)
	}
	return filings, nil
}

// FetchFilingTexts downloads the primary document of every selected filing and
// extracts its text. Individual failures are collected in BatchResult.Errors.
func (c *Client) FetchFilingTexts(ctx context.Context, opts BatchOptions) (*BatchResult, error) {
	filings, err := c.SelectFilings(ctx, opts)
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(filings) > opts.Limit {
		filings = filings[:opts.Limit]
	}

	result := &BatchResult{TotalFound: len(filings)}
	logger := c.logger.With(zap.String("cik", FormatCIK(opts.CIK)), zap.String("form", opts.FormType))
	logger.Info("fetching filing documents", zap.Int("filings", len(filings)))

	for i, filing := range filings {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		text, err := c.FetchDocumentText(ctx, filing)
		if err != nil {
			result.Errors = append(result.Errors, err)
			logger.Warn("skipping filing", zap.String("accession", filing.AccessionNumber), zap.Error(err))
			continue
		}

		result.Documents = append(result.Documents, FilingText{Filing: filing, Text: text})
		result.Fetched++
		if (i+1)%10 == 0 {
			logger.Debug("batch progress", zap.Int("done", i+1), zap.Int("total", len(filings)))
		}
	}

	logger.Info("fetched filing documents", zap.Int("fetched", result.Fetched), zap.Int("errors", len(result.Errors)))
	return result, nil
}
