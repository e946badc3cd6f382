package edgar

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

//go:embed concept_mappings.json
var conceptMappingsJSON []byte

// ConceptDefinition lists the XBRL concepts ("taxonomy:Name") behind one standardized label
type ConceptDefinition struct {
	Concepts []string `json:"concepts"`
	Notes    string   `json:"notes"`
}

// labelMapper resolves XBRL concepts to standardized labels and back
type labelMapper struct {
	byLabel   map[string]ConceptDefinition
	byConcept map[string]string // lower-cased "taxonomy:Name" -> label
}

var loadMapper = sync.OnceValues(func() (*labelMapper, error) {
	return newLabelMapper(conceptMappingsJSON)
})

func newLabelMapper(data []byte) (*labelMapper, error) {
	var file struct {
		Mappings map[string]ConceptDefinition `json:"mappings"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse concept_mappings.json: %w", err)
	}

	m := &labelMapper{
		byLabel:   file.Mappings,
		byConcept: make(map[string]string),
	}
	for label, def := range file.Mappings {
		for _, concept := range def.Concepts {
			m.byConcept[strings.ToLower(concept)] = label
		}
	}
	return m, nil
}

func mapper() *labelMapper {
	m, err := loadMapper()
	if err != nil {
		// The mappings are embedded at build time
		panic(err)
	}
	return m
}

// StandardizedLabel returns the standardized label for a concept such as
// "us-gaap:Assets", or "" when the concept is unmapped. Matching ignores case.
func StandardizedLabel(concept string) string {
	return mapper().byConcept[strings.ToLower(concept)]
}

// ConceptsForLabel returns the XBRL concepts behind a standardized label, in preference order
func ConceptsForLabel(label string) ([]string, error) {
	def, ok := mapper().byLabel[label]
	if !ok {
		return nil, fmt.Errorf("%w: standardized label %q", ErrNotFound, label)
	}
	return slices.Clone(def.Concepts), nil
}

// StandardizedLabels returns every standardized label, sorted
func StandardizedLabels() []string {
	return slices.Sorted(maps.Keys(mapper().byLabel))
}

// splitConcept splits "us-gaap:Assets" into its taxonomy and name
func splitConcept(concept string) (taxonomy, name string, ok bool) {
	return strings.Cut(concept, ":")
}
