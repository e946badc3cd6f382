package edgar

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// FiledDateLayout is the layout of the "filed", "start" and "end" fields
const FiledDateLayout = "2006-01-02"

// CompanyFacts is every XBRL fact a company has reported, grouped by
// taxonomy (us-gaap, dei, ...) and concept name
type CompanyFacts struct {
	CIK        string
	EntityName string
	Taxonomies map[string]map[string]*Concept
}

// Concept is one financial concept (Assets, AccountsPayableCurrent, ...)
// measured in one or more units
type Concept struct {
	Taxonomy    string
	Name        string
	Label       string
	Description string
	Units       map[string][]Fact
}

// Fact is the value of a concept in one unit as reported by one filing
type Fact struct {
	Taxonomy     string          `json:"-"`
	Concept      string          `json:"-"`
	Unit         string          `json:"-"`
	Start        string          `json:"start,omitempty"`
	End          string          `json:"end"`
	Value        decimal.Decimal `json:"val"`
	Accn         string          `json:"accn"`
	FiscalYear   int             `json:"fy"`
	FiscalPeriod string          `json:"fp"`
	Form         string          `json:"form"`
	Filed        string          `json:"filed"`
	Frame        string          `json:"frame,omitempty"`
}

// FormFrame returns "<form>_<frame>", falling back to CY<fy><fp> when the
// fact carries no frame
func (f Fact) FormFrame() string {
	frame := f.Frame
	if frame == "" {
		frame = fmt.Sprintf("CY%d%s", f.FiscalYear, f.FiscalPeriod)
	}
	return f.Form + "_" + frame
}

// FiledAt parses the filing date
func (f Fact) FiledAt() (time.Time, error) {
	return time.Parse(FiledDateLayout, f.Filed)
}

type rawConcept struct {
	Label       string            `json:"label"`
	Description string            `json:"description"`
	Units       map[string][]Fact `json:"units"`
}

// ParseCompanyFacts parses one companyfacts document, as found in
// companyfacts.zip or returned by the companyfacts endpoint
func ParseCompanyFacts(data []byte) (*CompanyFacts, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("failed to parse company facts JSON: invalid document")
	}
	cik := gjson.GetBytes(data, "cik")
	if !cik.Exists() {
		return nil, fmt.Errorf("failed to parse company facts JSON: missing cik")
	}

	var doc struct {
		EntityName string                           `json:"entityName"`
		Facts      map[string]map[string]rawConcept `json:"facts"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse company facts JSON: %w", err)
	}

	cf := &CompanyFacts{
		CIK:        FormatCIK(cik.String()),
		EntityName: doc.EntityName,
		Taxonomies: make(map[string]map[string]*Concept, len(doc.Facts)),
	}
	for taxonomy, concepts := range doc.Facts {
		parsed := make(map[string]*Concept, len(concepts))
		for name, raw := range concepts {
			parsed[name] = newConcept(taxonomy, name, raw)
		}
		cf.Taxonomies[taxonomy] = parsed
	}
	return cf, nil
}

func newConcept(taxonomy, name string, raw rawConcept) *Concept {
	c := &Concept{
		Taxonomy:    taxonomy,
		Name:        name,
		Label:       raw.Label,
		Description: raw.Description,
		Units:       make(map[string][]Fact, len(raw.Units)),
	}
	for unit, facts := range raw.Units {
		for i := range facts {
			facts[i].Taxonomy = taxonomy
			facts[i].Concept = name
			facts[i].Unit = unit
		}
		c.Units[unit] = facts
	}
	return c
}

// TaxonomyNames lists the taxonomies present, sorted
func (cf *CompanyFacts) TaxonomyNames() []string {
	return slices.Sorted(maps.Keys(cf.Taxonomies))
}

// Taxonomy returns the concepts reported under one taxonomy
func (cf *CompanyFacts) Taxonomy(name string) (map[string]*Concept, error) {
	concepts, ok := cf.Taxonomies[name]
	if !ok {
		return nil, fmt.Errorf("%w: taxonomy %s for CIK %s", ErrNotFound, name, cf.CIK)
	}
	return concepts, nil
}

// Concept returns one concept, e.g. Concept("us-gaap", "Assets")
func (cf *CompanyFacts) Concept(taxonomy, name string) (*Concept, error) {
	concepts, err := cf.Taxonomy(taxonomy)
	if err != nil {
		return nil, err
	}
	c, ok := concepts[name]
	if !ok {
		return nil, fmt.Errorf("%w: concept %s:%s for CIK %s", ErrNotFound, taxonomy, name, cf.CIK)
	}
	return c, nil
}

// AllConcepts returns every concept across taxonomies, ordered by taxonomy then name
func (cf *CompanyFacts) AllConcepts() []*Concept {
	var all []*Concept
	for _, taxonomy := range cf.TaxonomyNames() {
		concepts := cf.Taxonomies[taxonomy]
		for _, name := range slices.Sorted(maps.Keys(concepts)) {
			all = append(all, concepts[name])
		}
	}
	return all
}

// StandardizedConcept returns the first concept behind a standardized label
// (see StandardizedLabels) that the company actually reports
func (cf *CompanyFacts) StandardizedConcept(label string) (*Concept, error) {
	concepts, err := ConceptsForLabel(label)
	if err != nil {
		return nil, err
	}
	for _, qualified := range concepts {
		taxonomy, name, ok := splitConcept(qualified)
		if !ok {
			continue
		}
		if c, err := cf.Concept(taxonomy, name); err == nil {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: no concept for %q reported by CIK %s", ErrNotFound, label, cf.CIK)
}

// StandardizedFacts returns the facts for a standardized label in one unit
func (cf *CompanyFacts) StandardizedFacts(label, unit string) ([]Fact, error) {
	c, err := cf.StandardizedConcept(label)
	if err != nil {
		return nil, err
	}
	return c.Unit(unit)
}

// UnitNames lists the units the concept is measured in, sorted
func (c *Concept) UnitNames() []string {
	return slices.Sorted(maps.Keys(c.Units))
}

// Unit returns the facts measured in one unit (USD, USD/shares, shares, ...)
func (c *Concept) Unit(unit string) ([]Fact, error) {
	facts, ok := c.Units[unit]
	if !ok {
		return nil, fmt.Errorf("%w: unit %s for concept %s:%s", ErrNotFound, unit, c.Taxonomy, c.Name)
	}
	return facts, nil
}

// Statement aggregates every fact reported by one filing (accession number)
type Statement struct {
	Accn         string
	FiscalYear   int
	FiscalPeriod string
	Form         string
	Filed        string
	// Facts maps concept name -> unit -> facts
	Facts map[string]map[string][]Fact
}

// FactsForUnit returns the statement's facts for one concept and unit
func (s *Statement) FactsForUnit(concept, unit string) ([]Fact, error) {
	facts, ok := s.Facts[concept][unit]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s for statement %s", ErrNotFound, concept, unit, s.Accn)
	}
	return facts, nil
}

// ConceptNames lists the concepts reported in the statement, sorted
func (s *Statement) ConceptNames() []string {
	return slices.Sorted(maps.Keys(s.Facts))
}

// StatementHistory is a company's facts regrouped by filing
type StatementHistory struct {
	statements []*Statement
	byAccn     map[string]*Statement
}

// StatementHistory groups every fact by accession number. Statement metadata
// comes from the first fact seen for each filing.
func (cf *CompanyFacts) StatementHistory() *StatementHistory {
	h := &StatementHistory{byAccn: make(map[string]*Statement)}
	for _, c := range cf.AllConcepts() {
		for _, unit := range c.UnitNames() {
			for _, fact := range c.Units[unit] {
				h.add(fact)
			}
		}
	}
	slices.SortStableFunc(h.statements, func(a, b *Statement) int {
		return cmp.Or(cmp.Compare(a.Filed, b.Filed), cmp.Compare(a.Accn, b.Accn))
	})
	return h
}

func (h *StatementHistory) add(fact Fact) {
	s, ok := h.byAccn[fact.Accn]
	if !ok {
		s = &Statement{
			Accn:         fact.Accn,
			FiscalYear:   fact.FiscalYear,
			FiscalPeriod: fact.FiscalPeriod,
			Form:         fact.Form,
			Filed:        fact.Filed,
			Facts:        make(map[string]map[string][]Fact),
		}
		h.byAccn[fact.Accn] = s
		h.statements = append(h.statements, s)
	}
	units, ok := s.Facts[fact.Concept]
	if !ok {
		units = make(map[string][]Fact)
		s.Facts[fact.Concept] = units
	}
	units[fact.Unit] = append(units[fact.Unit], fact)
}

// Statements returns every statement ordered by filing date
func (h *StatementHistory) Statements() []*Statement {
	return slices.Clone(h.statements)
}

// Statement returns the statement for one accession number
func (h *StatementHistory) Statement(accn string) (*Statement, error) {
	s, ok := h.byAccn[accn]
	if !ok {
		return nil, fmt.Errorf("%w: statement %s", ErrNotFound, accn)
	}
	return s, nil
}

// StatementsForForm returns the statements filed on one form type (10-K, 10-Q, ...)
func (h *StatementHistory) StatementsForForm(form string) []*Statement {
	return lo.Filter(h.statements, func(s *Statement, _ int) bool {
		return s.Form == form
	})
}

// StatementsForDateRange returns statements filed strictly between start and end.
// A zero bound is open; at least one bound must be set and start must precede end.
func (h *StatementHistory) StatementsForDateRange(start, end time.Time) ([]*Statement, error) {
	if start.IsZero() && end.IsZero() {
		return nil, fmt.Errorf("at least one of start or end must be set")
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return nil, fmt.Errorf("start %s must be before end %s", start.Format(FiledDateLayout), end.Format(FiledDateLayout))
	}

	var out []*Statement
	for _, s := range h.statements {
		filed, err := time.Parse(FiledDateLayout, s.Filed)
		if err != nil {
			return nil, fmt.Errorf("failed to parse filed date of statement %s: %w", s.Accn, err)
		}
		if !start.IsZero() && !filed.After(start) {
			continue
		}
		if !end.IsZero() && !filed.Before(end) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// GetCompanyFacts fetches one company's facts from the REST API
func (c *Client) GetCompanyFacts(ctx context.Context, cik string) (*CompanyFacts, error) {
	url, err := CompanyFactsURL(FormatCIK(cik))
	if err != nil {
		return nil, err
	}
	data, err := c.GetBytes(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch company facts for CIK %s: %w", cik, err)
	}
	return ParseCompanyFacts(data)
}

// GetCompanyFactsForTicker resolves ticker to a CIK and fetches that company's facts
func (c *Client) GetCompanyFactsForTicker(ctx context.Context, resolver Resolver, ticker string) (*CompanyFacts, error) {
	cik, err := resolver.CIKForTicker(ticker)
	if err != nil {
		return nil, err
	}
	return c.GetCompanyFacts(ctx, cik)
}

// GetCompanyConceptForTicker is GetCompanyConcept keyed by ticker
func (c *Client) GetCompanyConceptForTicker(ctx context.Context, resolver Resolver, ticker, taxonomy, concept string) (*Concept, error) {
	cik, err := resolver.CIKForTicker(ticker)
	if err != nil {
		return nil, err
	}
	return c.GetCompanyConcept(ctx, cik, taxonomy, concept)
}

// GetCompanyConcept fetches a single concept for one company, e.g.
// GetCompanyConcept(ctx, "320193", "us-gaap", "AccountsPayableCurrent")
func (c *Client) GetCompanyConcept(ctx context.Context, cik, taxonomy, concept string) (*Concept, error) {
	url, err := CompanyConceptURL(FormatCIK(cik), taxonomy, concept)
	if err != nil {
		return nil, err
	}
	var raw rawConcept
	if err := c.GetJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch concept %s:%s for CIK %s: %w", taxonomy, concept, cik, err)
	}
	return newConcept(taxonomy, concept, raw), nil
}

// FrameFact is one company's value in a frame
type FrameFact struct {
	Accn       string          `json:"accn"`
	CIK        int64           `json:"cik"`
	EntityName string          `json:"entityName"`
	Location   string          `json:"loc"`
	Start      string          `json:"start,omitempty"`
	End        string          `json:"end"`
	Value      decimal.Decimal `json:"val"`
}

// Frame is one concept/unit/period aggregated across every reporting company
type Frame struct {
	Taxonomy    string      `json:"taxonomy"`
	Tag         string      `json:"tag"`
	Period      string      `json:"ccp"`
	Unit        string      `json:"uom"`
	Label       string      `json:"label"`
	Description string      `json:"description"`
	Points      int         `json:"pts"`
	Data        []FrameFact `json:"data"`
}

// GetFrames fetches a frame, e.g. GetFrames(ctx, "us-gaap", "AccountsPayableCurrent", "USD", "CY2019Q1I")
func (c *Client) GetFrames(ctx context.Context, taxonomy, concept, unit, period string) (*Frame, error) {
	url, err := FramesURL(taxonomy, concept, unit, period)
	if err != nil {
		return nil, err
	}
	var frame Frame
	if err := c.GetJSON(ctx, url, &frame); err != nil {
		return nil, fmt.Errorf("failed to fetch frame %s:%s/%s/%s: %w", taxonomy, concept, unit, period, err)
	}
	return &frame, nil
}
