package edgar

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ArchiveState is the lifecycle state of a BulkArchive
type ArchiveState int

const (
	// StateUnloaded means no archive file is open
	StateUnloaded ArchiveState = iota
	// StateLoaded means a temporary archive owned by the controller is open
	StateLoaded
	// StatePersisted means the archive lives at a caller-owned path
	StatePersisted
)

func (s ArchiveState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StatePersisted:
		return "persisted"
	default:
		return fmt.Sprintf("ArchiveState(%d)", int(s))
	}
}

// Parser converts one decoded archive entry into a typed record
type Parser[T any] func(data []byte) (T, error)

type archiveConfig struct {
	existing string
	tempDir  string
	policy   DuplicatePolicy
	logger   *zap.Logger
}

// ArchiveOption customizes a BulkArchive
type ArchiveOption func(*archiveConfig)

// WithExistingArchive opens a ZIP already on disk instead of downloading one.
// The caller keeps ownership of the file; Close never deletes it.
func WithExistingArchive(path string) ArchiveOption {
	return func(c *archiveConfig) {
		c.existing = path
	}
}

// WithTempDir sets the directory downloads are written to (default os.TempDir())
func WithTempDir(dir string) ArchiveOption {
	return func(c *archiveConfig) {
		c.tempDir = dir
	}
}

// WithDuplicatePolicy sets how the index treats repeated CIKs (default KeepLast)
func WithDuplicatePolicy(policy DuplicatePolicy) ArchiveOption {
	return func(c *archiveConfig) {
		c.policy = policy
	}
}

// WithArchiveLogger sets the structured logger
func WithArchiveLogger(logger *zap.Logger) ArchiveOption {
	return func(c *archiveConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// loadedArchive is everything tied to one archive file. It is replaced as a
// whole so readers never see a path from one archive with the index of another.
type loadedArchive struct {
	path      string
	reader    *zip.ReadCloser
	index     *Index
	persisted bool
}

// BulkArchive downloads one of the SEC bulk ZIP archives and serves typed
// records out of it.
//
// The archive is fetched lazily on first use into a temporary file that the
// controller owns. Call Close when done (typically deferred right after
// construction): it deletes the temporary file unless Persist moved it to a
// caller-owned path.
type BulkArchive[T any] struct {
	client   Downloader
	resolver Resolver
	url      string
	parse    Parser[T]
	cfg      archiveConfig
	logger   *zap.Logger

	current   atomic.Pointer[loadedArchive]
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewBulkArchive creates a controller for the archive at url.
// Nothing is downloaded until Download or the first record lookup.
func NewBulkArchive[T any](client Downloader, resolver Resolver, url string, parse Parser[T], opts ...ArchiveOption) (*BulkArchive[T], error) {
	if client == nil {
		return nil, errors.New("bulk archive requires a downloader")
	}
	if resolver == nil {
		return nil, errors.New("bulk archive requires a ticker resolver")
	}
	if parse == nil {
		return nil, errors.New("bulk archive requires a record parser")
	}

	cfg := archiveConfig{
		tempDir: os.TempDir(),
		policy:  KeepLast,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	a := &BulkArchive[T]{
		client:   client,
		resolver: resolver,
		url:      url,
		parse:    parse,
		cfg:      cfg,
		logger:   cfg.logger.With(zap.String("archive_url", url)),
	}

	if cfg.existing != "" {
		loaded, err := a.open(cfg.existing, true)
		if err != nil {
			return nil, err
		}
		a.current.Store(loaded)
	}

	return a, nil
}

// NewCompanyFactsArchive creates a controller for companyfacts.zip
func NewCompanyFactsArchive(client Downloader, resolver Resolver, opts ...ArchiveOption) (*BulkArchive[*CompanyFacts], error) {
	return NewBulkArchive[*CompanyFacts](client, resolver, BulkCompanyFactsURL, ParseCompanyFacts, opts...)
}

// NewSubmissionsArchive creates a controller for submissions.zip
func NewSubmissionsArchive(client Downloader, resolver Resolver, opts ...ArchiveOption) (*BulkArchive[*Submissions], error) {
	return NewBulkArchive[*Submissions](client, resolver, BulkSubmissionsURL, ParseSubmissionsJSON, opts...)
}

// State reports the lifecycle state
func (a *BulkArchive[T]) State() ArchiveState {
	cur := a.current.Load()
	switch {
	case cur == nil:
		return StateUnloaded
	case cur.persisted:
		return StatePersisted
	default:
		return StateLoaded
	}
}

// Path returns the archive location on disk, or "" when unloaded
func (a *BulkArchive[T]) Path() string {
	if cur := a.current.Load(); cur != nil {
		return cur.path
	}
	return ""
}

// Index returns the current index, or nil when unloaded
func (a *BulkArchive[T]) Index() *Index {
	if cur := a.current.Load(); cur != nil {
		return cur.index
	}
	return nil
}

// Download fetches the archive into a fresh temporary file and indexes it.
// When an archive is already open this is a no-op unless override is set.
// A failed download installs nothing and leaves the previous state in place.
func (a *BulkArchive[T]) Download(ctx context.Context, override bool) error {
	if a.closed.Load() {
		return ErrArchiveClosed
	}

	if cur := a.current.Load(); cur != nil && !override {
		a.logger.Warn("archive already exists, skipping download", zap.String("path", cur.path))
		return nil
	}

	path := a.tempPath()
	a.logger.Info("downloading bulk archive", zap.String("path", path))

	if _, err := a.client.DownloadToFile(ctx, a.url, path); err != nil {
		removeIfExists(path)
		return fmt.Errorf("failed to download bulk archive: %w", err)
	}

	next, err := a.open(path, false)
	if err != nil {
		removeIfExists(path)
		return err
	}

	if prev := a.current.Swap(next); prev != nil {
		if err := a.release(prev); err != nil {
			a.logger.Warn("failed to release previous archive", zap.String("path", prev.path), zap.Error(err))
		}
	}

	// Close ran while the download was in flight
	if a.closed.Load() {
		if cur := a.current.Swap(nil); cur != nil {
			if err := a.release(cur); err != nil {
				a.logger.Warn("failed to release archive after close", zap.String("path", cur.path), zap.Error(err))
			}
		}
		return ErrArchiveClosed
	}
	return nil
}

// Record returns the parsed record for a ticker, downloading the archive first if needed.
// Secondary tickers of a company (GOOG next to GOOGL) are found through the
// resolver's CIK for the ticker.
func (a *BulkArchive[T]) Record(ctx context.Context, ticker string) (T, error) {
	var zero T
	cur, err := a.ensureLoaded(ctx)
	if err != nil {
		return zero, err
	}

	entry, err := cur.index.EntryForTicker(ticker)
	if errors.Is(err, ErrNotFound) {
		if cik, cikErr := a.resolver.CIKForTicker(ticker); cikErr == nil {
			if byCIK, cikErr := cur.index.EntryForCIK(cik); cikErr == nil {
				entry, err = byCIK, nil
			}
		}
	}
	if err != nil {
		return zero, err
	}
	return a.parseEntry(cur.index, entry)
}

// RecordByCIK returns the parsed record for a CIK, downloading the archive first if needed
func (a *BulkArchive[T]) RecordByCIK(ctx context.Context, cik string) (T, error) {
	var zero T
	cik = FormatCIK(cik)
	if err := ValidateCIK(cik); err != nil {
		return zero, err
	}

	cur, err := a.ensureLoaded(ctx)
	if err != nil {
		return zero, err
	}

	entry, err := cur.index.EntryForCIK(cik)
	if err != nil {
		return zero, err
	}
	return a.parseEntry(cur.index, entry)
}

// Persist moves the downloaded archive to outputPath and reindexes it there.
// From then on the caller owns the file and Close leaves it alone.
func (a *BulkArchive[T]) Persist(outputPath string) error {
	cur := a.current.Load()
	if cur != nil && cur.persisted {
		return fmt.Errorf("%w: archive at %s", ErrAlreadyPersisted, cur.path)
	}
	if cur == nil || !fileExists(cur.path) {
		return ErrNoArchiveLoaded
	}

	if err := cur.reader.Close(); err != nil {
		a.logger.Warn("failed to close archive before move", zap.String("path", cur.path), zap.Error(err))
	}

	if err := moveFile(cur.path, outputPath); err != nil {
		// Keep serving from the original location
		reopened, openErr := a.open(cur.path, false)
		if openErr != nil {
			a.current.Store(nil)
			removeIfExists(cur.path)
		} else {
			a.current.Store(reopened)
		}
		return fmt.Errorf("failed to persist archive to %s: %w", outputPath, err)
	}

	next, err := a.open(outputPath, true)
	if err != nil {
		a.current.Store(nil)
		return err
	}
	a.current.Store(next)

	a.logger.Info("persisted bulk archive", zap.String("from", cur.path), zap.String("to", outputPath))
	return nil
}

// Records lazily parses every file in the archive, in archive order.
// Read and parse failures are yielded alongside a zero record and the scan
// continues; stopping early is up to the consumer.
func (a *BulkArchive[T]) Records(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		cur, err := a.ensureLoaded(ctx)
		if err != nil {
			yield(zero, err)
			return
		}

		for _, name := range cur.index.Files() {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}

			data, err := cur.index.ReadEntry(name)
			if err != nil {
				if !yield(zero, err) {
					return
				}
				continue
			}

			record, err := a.parse(data)
			if err != nil {
				if !yield(zero, fmt.Errorf("failed to parse %s: %w", name, err)) {
					return
				}
				continue
			}

			if !yield(record, nil) {
				return
			}
		}
	}
}

// ForEach applies fn to every record of the archive and collects the results.
// It stops at the first error and returns the results gathered so far.
func ForEach[T, R any](ctx context.Context, a *BulkArchive[T], fn func(T) R) ([]R, error) {
	var results []R
	for record, err := range a.Records(ctx) {
		if err != nil {
			return results, err
		}
		results = append(results, fn(record))
	}
	return results, nil
}

// ForAll hands the whole lazy record sequence to reducer and returns its result,
// e.g. to compute an aggregate over every company.
func ForAll[T, R any](ctx context.Context, a *BulkArchive[T], reducer func(iter.Seq2[T, error]) (R, error)) (R, error) {
	if _, err := a.ensureLoaded(ctx); err != nil {
		var zero R
		return zero, err
	}
	return reducer(a.Records(ctx))
}

// Close releases the archive: it closes the ZIP handle and deletes the
// temporary file unless it was persisted. Safe to call more than once.
func (a *BulkArchive[T]) Close() error {
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		if cur := a.current.Swap(nil); cur != nil {
			a.closeErr = a.release(cur)
		}
	})
	return a.closeErr
}

func (a *BulkArchive[T]) ensureLoaded(ctx context.Context) (*loadedArchive, error) {
	if cur := a.current.Load(); cur != nil {
		return cur, nil
	}
	if err := a.Download(ctx, false); err != nil {
		return nil, err
	}
	cur := a.current.Load()
	if cur == nil {
		return nil, ErrNoArchiveLoaded
	}
	return cur, nil
}

func (a *BulkArchive[T]) parseEntry(idx *Index, entry ArchiveEntry) (T, error) {
	var zero T
	data, err := idx.Read(entry)
	if err != nil {
		return zero, err
	}
	record, err := a.parse(data)
	if err != nil {
		return zero, fmt.Errorf("failed to parse %s: %w", entry.Filename, err)
	}
	return record, nil
}

func (a *BulkArchive[T]) open(path string, persisted bool) (*loadedArchive, error) {
	rc, err := zip.OpenReader(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open archive %s: %v", ErrCorruptArchive, path, err)
	}

	start := time.Now()
	idx := NewIndex(&rc.Reader, a.resolver, a.cfg.policy)
	a.logger.Info("indexed bulk archive",
		zap.String("path", path),
		zap.Int("files", len(rc.File)),
		zap.Int("tickers", len(idx.byTicker)),
		zap.Int("unlisted", len(idx.unlisted)),
		zap.Stringer("duplicate_policy", idx.policy),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &loadedArchive{path: path, reader: rc, index: idx, persisted: persisted}, nil
}

// release closes the handle and deletes the file if the controller owns it
func (a *BulkArchive[T]) release(cur *loadedArchive) error {
	closeErr := cur.reader.Close()
	if cur.persisted {
		return closeErr
	}

	if err := os.Remove(cur.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove temporary archive %s: %w", cur.path, err)
	}
	a.logger.Debug("removed temporary archive", zap.String("path", cur.path))
	return nil
}

// tempPath names a download after the current time, e.g. /tmp/1718000000123456789.zip
func (a *BulkArchive[T]) tempPath() string {
	for {
		name := strconv.FormatInt(time.Now().UnixNano(), 10) + ".zip"
		path := filepath.Join(a.cfg.tempDir, name)
		if !fileExists(path) {
			return path
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func removeIfExists(path string) {
	_ = os.Remove(path)
}

// moveFile renames src to dst, falling back to copy and delete across filesystems
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}

	in.Close()
	return os.Remove(src)
}
