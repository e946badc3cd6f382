package edgar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CIKLength is the width of a normalized CIK
const CIKLength = 10

var digitRuns = regexp.MustCompile(`\d+`)

// ValidateCIK checks that cik is exactly 10 ASCII digits
func ValidateCIK(cik string) error {
	if len(cik) != CIKLength {
		return fmt.Errorf("%w: %q must be a %d digit number", ErrInvalidCIK, cik, CIKLength)
	}
	for i := 0; i < len(cik); i++ {
		if cik[i] < '0' || cik[i] > '9' {
			return fmt.Errorf("%w: %q is non-numeric", ErrInvalidCIK, cik)
		}
	}
	return nil
}

// FormatCIK left-pads a CIK with zeros to 10 characters.
// Accepts integers, numeric strings, and float64 (JSON numbers).
// Values wider than 10 characters are returned unpadded.
func FormatCIK(raw any) string {
	var s string
	switch v := raw.(type) {
	case string:
		s = strings.TrimSpace(v)
	case int:
		s = strconv.Itoa(v)
	case int32:
		s = strconv.FormatInt(int64(v), 10)
	case int64:
		s = strconv.FormatInt(v, 10)
	case uint32:
		s = strconv.FormatUint(uint64(v), 10)
	case uint64:
		s = strconv.FormatUint(v, 10)
	case float64:
		s = strconv.FormatInt(int64(v), 10)
	default:
		s = fmt.Sprint(v)
	}

	if len(s) >= CIKLength {
		return s
	}
	return strings.Repeat("0", CIKLength-len(s)) + s
}

// trimCIK drops leading zeros, as used in EDGAR archive paths
func trimCIK(cik string) string {
	trimmed := strings.TrimLeft(cik, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// cikFromFilename concatenates every digit run in an archive filename
// Example: "CIK0000001750.json" -> "0000001750"
func cikFromFilename(name string) string {
	return FormatCIK(strings.Join(digitRuns.FindAllString(name, -1), ""))
}
