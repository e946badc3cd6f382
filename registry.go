package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/samber/lo"
)

// Exchange is a listing venue as named in company_tickers_exchange.json
type Exchange string

const (
	ExchangeNasdaq Exchange = "Nasdaq"
	ExchangeOTC    Exchange = "OTC"
	ExchangeCBOE   Exchange = "CBOE"
	ExchangeNYSE   Exchange = "NYSE"
	ExchangeNone   Exchange = ""
)

// Company is one row of the ticker/CIK/exchange listing.
// Equality is structural.
type Company struct {
	CIK      string   `json:"cik"`
	Name     string   `json:"name"`
	Ticker   string   `json:"ticker"`
	Exchange Exchange `json:"exchange"`
}

// Resolver maps CIKs to tickers and back. *Registry implements it.
type Resolver interface {
	// TickerForCIK returns false when the CIK has no listed ticker
	TickerForCIK(cik string) (string, bool)
	CIKForTicker(ticker string) (string, error)
}

// Registry is the ticker -> company listing, built once per session.
// Unlisted companies do not appear in it.
type Registry struct {
	companies []Company
	byTicker  map[string]Company
	byCIK     map[string]Company
}

// NewRegistry builds a registry from explicit rows. For CIKs with several
// tickers the first row wins the CIK lookup; for repeated tickers the last row wins.
func NewRegistry(companies []Company) *Registry {
	r := &Registry{
		companies: make([]Company, 0, len(companies)),
		byTicker:  make(map[string]Company, len(companies)),
		byCIK:     make(map[string]Company, len(companies)),
	}
	for _, c := range companies {
		c.CIK = FormatCIK(c.CIK)
		r.companies = append(r.companies, c)
		r.byTicker[c.Ticker] = c
		if _, ok := r.byCIK[c.CIK]; !ok {
			r.byCIK[c.CIK] = c
		}
	}
	return r
}

// LoadRegistry fetches company_tickers_exchange.json and builds a registry
func LoadRegistry(ctx context.Context, client *Client) (*Registry, error) {
	resp, err := client.Get(ctx, CompanyTickerExchangeURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch company tickers: %w", err)
	}
	defer resp.Body.Close()

	return ParseRegistry(resp.Body)
}

// ParseRegistry decodes the {"fields": [...], "data": [[cik, name, ticker, exchange], ...]}
// listing. Rows with the wrong shape are skipped.
func ParseRegistry(r io.Reader) (*Registry, error) {
	var listing struct {
		Fields []string `json:"fields"`
		Data   [][]any  `json:"data"`
	}
	if err := json.NewDecoder(r).Decode(&listing); err != nil {
		return nil, fmt.Errorf("failed to parse company tickers JSON: %w", err)
	}

	companies := make([]Company, 0, len(listing.Data))
	for _, row := range listing.Data {
		company, ok := companyFromRow(row)
		if !ok {
			continue
		}
		companies = append(companies, company)
	}
	return NewRegistry(companies), nil
}

func companyFromRow(row []any) (Company, bool) {
	if len(row) != 4 {
		return Company{}, false
	}

	cik, ok := row[0].(float64)
	if !ok {
		return Company{}, false
	}
	name, ok := row[1].(string)
	if !ok {
		return Company{}, false
	}
	ticker, ok := row[2].(string)
	if !ok {
		return Company{}, false
	}
	// Exchange is null for some delisted rows
	exchange, _ := row[3].(string)

	return Company{
		CIK:      FormatCIK(cik),
		Name:     name,
		Ticker:   ticker,
		Exchange: Exchange(exchange),
	}, true
}

// Ticker looks up a company by ticker symbol
func (r *Registry) Ticker(ticker string) (Company, error) {
	c, ok := r.byTicker[ticker]
	if !ok {
		return Company{}, fmt.Errorf("%w: ticker %s", ErrNotFound, ticker)
	}
	return c, nil
}

// CIK looks up a company by CIK; false means the CIK is unknown
func (r *Registry) CIK(cik string) (Company, bool) {
	c, ok := r.byCIK[FormatCIK(cik)]
	return c, ok
}

// TickerForCIK implements Resolver
func (r *Registry) TickerForCIK(cik string) (string, bool) {
	c, ok := r.CIK(cik)
	if !ok {
		return "", false
	}
	return c.Ticker, true
}

// CIKForTicker implements Resolver
func (r *Registry) CIKForTicker(ticker string) (string, error) {
	c, err := r.Ticker(ticker)
	if err != nil {
		return "", err
	}
	return c.CIK, nil
}

// FilterByExchange returns every company listed on exchange, in listing order
func (r *Registry) FilterByExchange(exchange Exchange) []Company {
	return lo.Filter(r.companies, func(c Company, _ int) bool {
		return c.Exchange == exchange
	})
}

// TickerToCIK returns a ticker -> CIK mapping for every listed company
func (r *Registry) TickerToCIK() map[string]string {
	return lo.MapValues(r.byTicker, func(c Company, _ string) string {
		return c.CIK
	})
}

// Tickers lists every ticker in listing order
func (r *Registry) Tickers() []string {
	return lo.Map(r.companies, func(c Company, _ int) string { return c.Ticker })
}

// Names lists every non-empty company name in listing order
func (r *Registry) Names() []string {
	return lo.FilterMap(r.companies, func(c Company, _ int) (string, bool) {
		return c.Name, c.Name != ""
	})
}

// CIKs lists the CIK of every row in listing order
func (r *Registry) CIKs() []string {
	return lo.Map(r.companies, func(c Company, _ int) string { return c.CIK })
}

// Len returns the number of rows in the listing
func (r *Registry) Len() int {
	return len(r.companies)
}
