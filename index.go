package edgar

import (
	"archive/zip"
	"fmt"
	"io"
	"maps"
	"regexp"
	"slices"

	"github.com/tidwall/gjson"
)

// archiveFilename matches per-company entries in the bulk archives
var archiveFilename = regexp.MustCompile(`^CIK\d{10}\.json$`)

// DuplicatePolicy decides what the index keeps when an archive holds several
// entries for the same CIK
type DuplicatePolicy int

const (
	// KeepLast keeps only the last entry seen per CIK
	KeepLast DuplicatePolicy = iota
	// KeepAll keeps every entry per CIK; single-file lookups return the last one
	KeepAll
)

func (p DuplicatePolicy) String() string {
	switch p {
	case KeepLast:
		return "keep-last"
	case KeepAll:
		return "keep-all"
	default:
		return fmt.Sprintf("DuplicatePolicy(%d)", int(p))
	}
}

// ArchiveEntry is one indexed company file. The index hands out copies, so
// changing a returned entry never changes the index.
type ArchiveEntry struct {
	CIK      string
	Filename string
	Ticker   string // empty when the CIK is not in the registry

	file *zip.File
}

// Listed reports whether the entry resolved to a ticker
func (e ArchiveEntry) Listed() bool {
	return e.Ticker != ""
}

// Index maps tickers and CIKs to entries of one opened bulk archive.
// It is built once and never mutated; a new archive gets a new Index.
type Index struct {
	files    []*zip.File
	byName   map[string]*zip.File
	byTicker map[string]ArchiveEntry
	byCIK    map[string][]ArchiveEntry
	unlisted []string
	policy   DuplicatePolicy
}

// NewIndex builds the ticker and CIK maps in one pass over the archive.
// Entries whose CIK has no registry match are still indexed by CIK and
// reported by Unlisted.
func NewIndex(zr *zip.Reader, resolver Resolver, policy DuplicatePolicy) *Index {
	idx := &Index{
		files:    zr.File,
		byName:   make(map[string]*zip.File, len(zr.File)),
		byTicker: make(map[string]ArchiveEntry),
		byCIK:    make(map[string][]ArchiveEntry),
		policy:   policy,
	}

	for _, f := range zr.File {
		idx.byName[f.Name] = f

		if !archiveFilename.MatchString(f.Name) {
			continue
		}

		cik := cikFromFilename(f.Name)
		entry := ArchiveEntry{CIK: cik, Filename: f.Name, file: f}
		if ticker, ok := resolver.TickerForCIK(cik); ok {
			entry.Ticker = ticker
		}

		_, seen := idx.byCIK[cik]
		switch policy {
		case KeepAll:
			idx.byCIK[cik] = append(idx.byCIK[cik], entry)
		default:
			idx.byCIK[cik] = []ArchiveEntry{entry}
		}

		if !entry.Listed() {
			if !seen {
				idx.unlisted = append(idx.unlisted, cik)
			}
			continue
		}
		idx.byTicker[entry.Ticker] = entry
	}

	return idx
}

// Policy returns the duplicate policy the index was built with
func (idx *Index) Policy() DuplicatePolicy {
	return idx.policy
}

// EntryForTicker returns the indexed entry for a ticker
func (idx *Index) EntryForTicker(ticker string) (ArchiveEntry, error) {
	entry, ok := idx.byTicker[ticker]
	if !ok {
		return ArchiveEntry{}, fmt.Errorf("%w: ticker %s not in archive", ErrNotFound, ticker)
	}
	return entry, nil
}

// EntryForCIK returns the last indexed entry for a CIK
func (idx *Index) EntryForCIK(cik string) (ArchiveEntry, error) {
	entries, ok := idx.byCIK[FormatCIK(cik)]
	if !ok || len(entries) == 0 {
		return ArchiveEntry{}, fmt.Errorf("%w: CIK %s not in archive", ErrNotFound, cik)
	}
	return entries[len(entries)-1], nil
}

// FilenameForTicker returns the archive filename holding a ticker's data
func (idx *Index) FilenameForTicker(ticker string) (string, error) {
	entry, err := idx.EntryForTicker(ticker)
	if err != nil {
		return "", err
	}
	return entry.Filename, nil
}

// FilenameForCIK returns the archive filename holding a CIK's data
func (idx *Index) FilenameForCIK(cik string) (string, error) {
	entry, err := idx.EntryForCIK(cik)
	if err != nil {
		return "", err
	}
	return entry.Filename, nil
}

// FilenamesForCIK returns every filename retained for a CIK, in archive order.
// Under KeepLast this is at most one filename.
func (idx *Index) FilenamesForCIK(cik string) ([]string, error) {
	entries, ok := idx.byCIK[FormatCIK(cik)]
	if !ok || len(entries) == 0 {
		return nil, fmt.Errorf("%w: CIK %s not in archive", ErrNotFound, cik)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Filename
	}
	return names, nil
}

// ReadEntry returns the raw JSON document stored under filename
func (idx *Index) ReadEntry(filename string) ([]byte, error) {
	f, ok := idx.byName[filename]
	if !ok {
		return nil, fmt.Errorf("%w: %s not in archive", ErrNotFound, filename)
	}
	return readZipJSON(f)
}

// Read returns the raw JSON document of an indexed entry
func (idx *Index) Read(entry ArchiveEntry) ([]byte, error) {
	if entry.file == nil {
		return idx.ReadEntry(entry.Filename)
	}
	return readZipJSON(entry.file)
}

func readZipJSON(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", ErrCorruptArchive, f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrCorruptArchive, f.Name, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: %s is not valid JSON", ErrCorruptArchive, f.Name)
	}
	return data, nil
}

// Files lists every file in the archive, including entries that do not match
// the company naming pattern. Directory entries are skipped.
func (idx *Index) Files() []string {
	names := make([]string, 0, len(idx.files))
	for _, f := range idx.files {
		if f.FileInfo().IsDir() {
			continue
		}
		names = append(names, f.Name)
	}
	return names
}

// Entries lists every indexed entry in archive order
func (idx *Index) Entries() []ArchiveEntry {
	var entries []ArchiveEntry
	for _, f := range idx.files {
		if !archiveFilename.MatchString(f.Name) {
			continue
		}
		for _, e := range idx.byCIK[cikFromFilename(f.Name)] {
			if e.file == f {
				entries = append(entries, e)
			}
		}
	}
	return entries
}

// Unlisted returns the CIKs present in the archive but absent from the registry,
// each exactly once, in archive order
func (idx *Index) Unlisted() []string {
	return slices.Clone(idx.unlisted)
}

// TickerFilenames returns a copy of the ticker -> filename map
func (idx *Index) TickerFilenames() map[string]string {
	out := make(map[string]string, len(idx.byTicker))
	for ticker, e := range idx.byTicker {
		out[ticker] = e.Filename
	}
	return out
}

// CIKFilenames returns a copy of the CIK -> filename map (last entry per CIK)
func (idx *Index) CIKFilenames() map[string]string {
	out := make(map[string]string, len(idx.byCIK))
	for cik, entries := range idx.byCIK {
		out[cik] = entries[len(entries)-1].Filename
	}
	return out
}

// Tickers returns the indexed tickers in sorted order
func (idx *Index) Tickers() []string {
	return slices.Sorted(maps.Keys(idx.byTicker))
}
