package edgar

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	baseSECURL     = "https://www.sec.gov"
	baseDataSECURL = "https://data.sec.gov"

	// CompanyTickerExchangeURL lists every ticker with its CIK, name, and exchange
	CompanyTickerExchangeURL = baseSECURL + "/files/company_tickers_exchange.json"

	// BulkCompanyFactsURL is the nightly archive of every company's XBRL facts
	// (refreshed around 3:00 AM ET)
	BulkCompanyFactsURL = baseSECURL + "/Archives/edgar/daily-index/xbrl/companyfacts.zip"

	// BulkSubmissionsURL is the nightly archive of every company's submissions history
	BulkSubmissionsURL = baseSECURL + "/Archives/edgar/daily-index/bulkdata/submissions.zip"
)

var periodFormat = regexp.MustCompile(`^CY\d{4}(Q\dI?)?$`)

// SubmissionsURL returns the submissions endpoint for a CIK
func SubmissionsURL(cik string) (string, error) {
	if err := ValidateCIK(cik); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/submissions/CIK%s.json", baseDataSECURL, cik), nil
}

// SubmissionsPageURL returns the URL of a paginated submissions file
// (e.g. "CIK0000078003-submissions-001.json")
func SubmissionsPageURL(filename string) string {
	return fmt.Sprintf("%s/submissions/%s", baseDataSECURL, filename)
}

// CompanyFactsURL returns the company facts endpoint for a CIK
func CompanyFactsURL(cik string) (string, error) {
	if err := ValidateCIK(cik); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", baseDataSECURL, cik), nil
}

// CompanyConceptURL returns the endpoint for a single concept of one company
func CompanyConceptURL(cik, taxonomy, concept string) (string, error) {
	if err := ValidateCIK(cik); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/api/xbrl/companyconcept/CIK%s/%s/%s.json",
		baseDataSECURL, cik, url.PathEscape(taxonomy), url.PathEscape(concept)), nil
}

// FramesURL returns the endpoint aggregating one concept across companies for a period.
// period must look like CY2023, CY2023Q1, or CY2023Q1I.
func FramesURL(taxonomy, concept, unit, period string) (string, error) {
	if !periodFormat.MatchString(period) {
		return "", fmt.Errorf("invalid period format %q: expected CY####, CY####Q#, or CY####Q#I", period)
	}
	return fmt.Sprintf("%s/api/xbrl/frames/%s/%s/%s/%s.json",
		baseDataSECURL, url.PathEscape(taxonomy), url.PathEscape(concept), url.PathEscape(unit), period), nil
}

// ArchivesDocumentURL returns the EDGAR archives URL of a filing document
// https://www.sec.gov/Archives/edgar/data/{CIK}/{ACCESSION}/{DOCUMENT}
func ArchivesDocumentURL(cik, accessionNumber, document string) string {
	return fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s",
		baseSECURL,
		trimCIK(cik),
		strings.ReplaceAll(accessionNumber, "-", ""),
		document,
	)
}
