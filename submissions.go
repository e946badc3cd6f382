package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

// Submissions is a company's profile and filing history as served by the
// submissions endpoint and stored in submissions.zip
type Submissions struct {
	CIK                               string             `json:"cik"`
	EntityType                        string             `json:"entityType"`
	SIC                               string             `json:"sic"`
	SICDescription                    string             `json:"sicDescription"`
	InsiderTransactionForOwnerExists  int                `json:"insiderTransactionForOwnerExists"`  // 0 or 1
	InsiderTransactionForIssuerExists int                `json:"insiderTransactionForIssuerExists"` // 0 or 1
	Name                              string             `json:"name"`
	Tickers                           []string           `json:"tickers"`
	Exchanges                         []string           `json:"exchanges"`
	EIN                               string             `json:"ein"`
	Description                       string             `json:"description"`
	Website                           string             `json:"website"`
	InvestorWebsite                   string             `json:"investorWebsite"`
	Category                          string             `json:"category"`
	FiscalYearEnd                     string             `json:"fiscalYearEnd"`
	StateOfIncorporation              string             `json:"stateOfIncorporation"`
	StateOfIncorporationDescription   string             `json:"stateOfIncorporationDescription"`
	Addresses                         map[string]Address `json:"addresses"` // "mailing", "business"
	Phone                             string             `json:"phone"`
	Flags                             string             `json:"flags"`
	FormerNames                       []FormerName       `json:"formerNames"`
	Filings                           FilingsData        `json:"filings"`
}

// Address is a mailing or business address
type Address struct {
	Street1                   string `json:"street1"`
	Street2                   string `json:"street2"`
	City                      string `json:"city"`
	StateOrCountry            string `json:"stateOrCountry"`
	StateOrCountryDescription string `json:"stateOrCountryDescription"`
	ZipCode                   string `json:"zipCode"`
}

// FormerName is a name the company previously filed under
type FormerName struct {
	Name string `json:"name"`
	From string `json:"from"`
	To   string `json:"to"`
}

// FilingsData holds the most recent filings inline and points at pages of older ones
type FilingsData struct {
	Recent FilingArrays `json:"recent"`
	Files  []FilingFile `json:"files"`
}

// FilingFile is one page of older filings
type FilingFile struct {
	Name        string `json:"name"`
	FilingCount int    `json:"filingCount"`
	FilingFrom  string `json:"filingFrom"`
	FilingTo    string `json:"filingTo"`
}

// URL returns the submissions endpoint serving this page
func (f FilingFile) URL() string {
	return SubmissionsPageURL(f.Name)
}

// FilingArrays is the columnar filing table; index i of every column is one filing
type FilingArrays struct {
	AccessionNumber       []string `json:"accessionNumber"`
	FilingDate            []string `json:"filingDate"`
	ReportDate            []string `json:"reportDate"`
	AcceptanceDateTime    []string `json:"acceptanceDateTime"`
	Act                   []string `json:"act"`
	Form                  []string `json:"form"`
	FileNumber            []string `json:"fileNumber"`
	FilmNumber            []string `json:"filmNumber"`
	Items                 []string `json:"items"`
	Size                  []int    `json:"size"`
	IsXBRL                []int    `json:"isXBRL"`
	IsInlineXBRL          []int    `json:"isInlineXBRL"`
	PrimaryDocument       []string `json:"primaryDocument"`
	PrimaryDocDescription []string `json:"primaryDocDescription"`
}

// Filing is one row of the filing table
type Filing struct {
	AccessionNumber       string
	FilingDate            string
	ReportDate            string
	AcceptanceDateTime    string
	Act                   string
	Form                  string
	FileNumber            string
	FilmNumber            string
	Items                 string
	Size                  int
	IsXBRL                bool
	IsInlineXBRL          bool
	PrimaryDocument       string
	PrimaryDocDescription string

	CIK string
	URL string // primary document in the EDGAR archives
}

// ParseSubmissions decodes a submissions document from a reader (local files, tests)
func ParseSubmissions(r io.Reader) (*Submissions, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read submissions JSON: %w", err)
	}
	return ParseSubmissionsJSON(data)
}

// ParseSubmissionsJSON decodes one submissions document. Only the presence of
// "cik" and "filings" is checked; the CIK is normalized to ten digits.
func ParseSubmissionsJSON(data []byte) (*Submissions, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("failed to parse submissions JSON: invalid document")
	}
	fields := gjson.GetManyBytes(data, "cik", "filings")
	if !fields[0].Exists() {
		return nil, fmt.Errorf("failed to parse submissions JSON: missing cik")
	}
	if !fields[1].Exists() {
		return nil, fmt.Errorf("failed to parse submissions JSON: missing filings")
	}

	// cik is a string in the API but a number in some archive snapshots
	var subs Submissions
	var doc struct {
		*Submissions
		CIK json.RawMessage `json:"cik"`
	}
	doc.Submissions = &subs
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse submissions JSON: %w", err)
	}
	subs.CIK = FormatCIK(fields[0].String())
	return &subs, nil
}

// ParseFilingPage decodes a paginated filings file, which holds only the filing table
func ParseFilingPage(data []byte) (*FilingArrays, error) {
	var page FilingArrays
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("failed to parse paginated filings JSON: %w", err)
	}
	return &page, nil
}

// FetchSubmissions fetches a company's submissions from the REST API
func (c *Client) FetchSubmissions(ctx context.Context, cik string) (*Submissions, error) {
	url, err := SubmissionsURL(FormatCIK(cik))
	if err != nil {
		return nil, err
	}
	data, err := c.GetBytes(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch submissions for CIK %s: %w", cik, err)
	}
	return ParseSubmissionsJSON(data)
}

// FetchSubmissionsForTicker resolves ticker to a CIK and fetches its submissions
func (c *Client) FetchSubmissionsForTicker(ctx context.Context, resolver Resolver, ticker string) (*Submissions, error) {
	cik, err := resolver.CIKForTicker(ticker)
	if err != nil {
		return nil, err
	}
	return c.FetchSubmissions(ctx, cik)
}

// DownloadPrimaryDocument saves the filing's primary document, unmodified, to path.
// Like DownloadToFile it refuses to overwrite an existing file.
func (c *Client) DownloadPrimaryDocument(ctx context.Context, filing Filing, path string) (int64, error) {
	url := filing.URL
	if url == "" {
		url = filing.BuildURL()
	}
	n, err := c.DownloadToFile(ctx, url, path)
	if err != nil {
		return 0, fmt.Errorf("failed to download document %s: %w", filing.AccessionNumber, err)
	}
	return n, nil
}

// FetchPaginatedFilings fetches one page of older filings
// (e.g. "CIK0000078003-submissions-001.json")
func (c *Client) FetchPaginatedFilings(ctx context.Context, filename string) (*FilingArrays, error) {
	data, err := c.GetBytes(ctx, SubmissionsPageURL(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch paginated filings %s: %w", filename, err)
	}
	return ParseFilingPage(data)
}

// at returns s[i], or the zero value when the column is shorter than the table
func at[T any](s []T, i int) T {
	var zero T
	if i < len(s) {
		return s[i]
	}
	return zero
}

// GetFilings turns the columnar table into rows. The accession number column
// defines the row count; shorter columns leave fields empty.
func (fa *FilingArrays) GetFilings(cik string) []Filing {
	filings := make([]Filing, len(fa.AccessionNumber))
	for i := range filings {
		f := Filing{
			CIK:                   cik,
			AccessionNumber:       fa.AccessionNumber[i],
			FilingDate:            at(fa.FilingDate, i),
			ReportDate:            at(fa.ReportDate, i),
			AcceptanceDateTime:    at(fa.AcceptanceDateTime, i),
			Act:                   at(fa.Act, i),
			Form:                  at(fa.Form, i),
			FileNumber:            at(fa.FileNumber, i),
			FilmNumber:            at(fa.FilmNumber, i),
			Items:                 at(fa.Items, i),
			Size:                  at(fa.Size, i),
			IsXBRL:                at(fa.IsXBRL, i) != 0,
			IsInlineXBRL:          at(fa.IsInlineXBRL, i) != 0,
			PrimaryDocument:       at(fa.PrimaryDocument, i),
			PrimaryDocDescription: at(fa.PrimaryDocDescription, i),
		}
		f.URL = f.BuildURL()
		filings[i] = f
	}
	return filings
}

// BuildURL returns the EDGAR archives URL of the filing's primary document.
// XSL rendering prefixes ("xslF345X05/doc4.xml") are stripped to the raw document.
func (f *Filing) BuildURL() string {
	return ArchivesDocumentURL(f.CIK, f.AccessionNumber, documentName(f.PrimaryDocument))
}

func documentName(primary string) string {
	if primary == "" {
		return ""
	}
	return path.Base(primary)
}

// GetRecentFilings returns the inline filing table as rows
func (s *Submissions) GetRecentFilings() []Filing {
	return s.Filings.Recent.GetFilings(s.CIK)
}

// GetAllFilings returns the recent filings followed by every paginated page.
// Pages are fetched through the client, so the rate limit applies.
func (s *Submissions) GetAllFilings(ctx context.Context, client *Client) ([]Filing, error) {
	all := s.GetRecentFilings()
	for _, file := range s.Filings.Files {
		page, err := client.FetchPaginatedFilings(ctx, file.Name)
		if err != nil {
			return nil, err
		}
		all = append(all, page.GetFilings(s.CIK)...)
	}
	return all, nil
}

// FilterByForm keeps filings of one form type.
//   - "4" matches "4" only; amendments need "4/A"
//   - "13D" and "13G" match the "SC 13D"/"SC 13G" filings and their amendments
//   - "13" matches every Schedule 13 filing
func FilterByForm(filings []Filing, formType string) []Filing {
	return lo.Filter(filings, func(f Filing, _ int) bool {
		return matchesFormType(f.Form, formType)
	})
}

func matchesFormType(filingForm, requested string) bool {
	if requested == "13" {
		return strings.HasPrefix(filingForm, "SC 13D") || strings.HasPrefix(filingForm, "SC 13G")
	}

	want := normalizeFormType(requested)
	if filingForm == want {
		return true
	}
	// Schedule 13 requests include amendments
	return strings.HasPrefix(want, "SC 13") && strings.HasPrefix(filingForm, want+"/")
}

// normalizeFormType maps "13D", "13G/A", ... to the SEC's "SC 13D", "SC 13G/A"
func normalizeFormType(formType string) string {
	formType = strings.TrimSpace(formType)
	if strings.HasPrefix(formType, "13D") || strings.HasPrefix(formType, "13G") {
		return "SC " + formType
	}
	return formType
}

// FilterByDateRange keeps filings whose filing date falls in [from, to].
// Dates are YYYY-MM-DD.
func FilterByDateRange(filings []Filing, from, to string) []Filing {
	return lo.Filter(filings, func(f Filing, _ int) bool {
		return f.FilingDate >= from && f.FilingDate <= to
	})
}
