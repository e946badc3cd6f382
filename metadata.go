package edgar

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var archivesPath = regexp.MustCompile(`/edgar/data/(\d+)/(\d{18})/([^/?#]+)`)

// DocumentRef identifies one document in the EDGAR archives
type DocumentRef struct {
	CIK       string // normalized to ten digits
	Accession string // dashed form, e.g. 0001193125-25-314736
	Document  string
}

// ParseDocumentURL extracts the CIK, accession number, and document name from an archives URL
// Example: https://www.sec.gov/Archives/edgar/data/1631574/000119312525314736/ownership.xml
func ParseDocumentURL(url string) (DocumentRef, error) {
	m := archivesPath.FindStringSubmatch(url)
	if m == nil {
		return DocumentRef{}, fmt.Errorf("could not extract CIK and accession from URL %s", url)
	}
	acc := m[2]
	return DocumentRef{
		CIK:       FormatCIK(m[1]),
		Accession: acc[:10] + "-" + acc[10:12] + "-" + acc[12:],
		Document:  m[3],
	}, nil
}

// Ref returns the archive reference of a filing's primary document
func (f *Filing) Ref() DocumentRef {
	return DocumentRef{
		CIK:       FormatCIK(f.CIK),
		Accession: f.AccessionNumber,
		Document:  documentName(f.PrimaryDocument),
	}
}

// URL returns the archives URL of the document
func (r DocumentRef) URL() string {
	return ArchivesDocumentURL(r.CIK, r.Accession, r.Document)
}

// Filename names a local copy: {CIK}-{accession}_{label}.{ext}, e.g.
// 0000078003-0000078003-24-000005_10-K.txt. Slashes in label ("10-K/A") become underscores.
func (r DocumentRef) Filename(label, ext string) string {
	label = strings.NewReplacer("/", "_", " ", "_").Replace(label)
	if r.Accession == "" {
		return fmt.Sprintf("%s_%s.%s", r.CIK, label, ext)
	}
	return fmt.Sprintf("%s-%s_%s.%s", r.CIK, r.Accession, label, ext)
}

// SaveText writes extracted document text into dir and returns the file path
func SaveText(dir string, ref DocumentRef, label, text string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, ref.Filename(label, "txt"))
	if err := os.WriteFile(path, []byte(text+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
