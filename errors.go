package edgar

import "errors"

var (
	// ErrInvalidCIK is returned when a CIK is not a 10 digit numeric string
	ErrInvalidCIK = errors.New("invalid CIK")

	// ErrNotFound is returned when a ticker or CIK is absent from the registry or an archive
	ErrNotFound = errors.New("not found")

	// ErrCorruptArchive is returned when an archive entry cannot be read or decoded
	ErrCorruptArchive = errors.New("corrupt archive entry")

	// ErrNoArchiveLoaded is returned by Persist when there is no archive file on disk
	ErrNoArchiveLoaded = errors.New("bulk archive not loaded, nothing to save")

	// ErrAlreadyPersisted is returned by Persist when the archive already lives at a caller path
	ErrAlreadyPersisted = errors.New("bulk archive already persisted")

	// ErrArchiveClosed is returned by a BulkArchive after Close
	ErrArchiveClosed = errors.New("bulk archive is closed")

	// ErrEmptyUserAgent is returned when a client is built without an identifying User-Agent
	ErrEmptyUserAgent = errors.New("user agent is required for SEC requests")
)
