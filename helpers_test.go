package edgar_test

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/RxDataLab/go-edgar-bulk"
	"github.com/stretchr/testify/require"
)

// zipFile is one archive member; a trailing "/" makes a directory
type zipFile struct {
	Name string
	Body string
}

func buildZip(t *testing.T, files ...zipFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.Name)
		require.NoError(t, err)
		_, err = w.Write([]byte(f.Body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func openZip(t *testing.T, files ...zipFile) *zip.Reader {
	t.Helper()
	data := buildZip(t, files...)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return zr
}

func factsJSON(cik int, name string) string {
	return fmt.Sprintf(`{"cik": %d, "entityName": %q, "facts": {}}`, cik, name)
}

// scenarioFiles is the five-company archive: 0000002034 has no ticker
func scenarioFiles() []zipFile {
	return []zipFile{
		{"CIK0000001750.json", factsJSON(1750, "AAR CORP")},
		{"CIK0000001800.json", factsJSON(1800, "ABBOTT LABORATORIES")},
		{"CIK0000001961.json", factsJSON(1961, "WORLDS INC")},
		{"CIK0000002034.json", factsJSON(2034, "UNLISTED CO")},
		{"CIK0000002098.json", factsJSON(2098, "ACME UNITED CORP")},
	}
}

func scenarioRegistry() *edgar.Registry {
	return edgar.NewRegistry([]edgar.Company{
		{CIK: "0000001750", Name: "AAR CORP", Ticker: "AIR", Exchange: edgar.ExchangeNYSE},
		{CIK: "0000001800", Name: "ABBOTT LABORATORIES", Ticker: "ABT", Exchange: edgar.ExchangeNYSE},
		{CIK: "0000001961", Name: "WORLDS INC", Ticker: "WDDD", Exchange: edgar.ExchangeOTC},
		{CIK: "0000002098", Name: "ACME UNITED CORP", Ticker: "ACU", Exchange: edgar.ExchangeNYSE},
	})
}

// fakeDownloader serves a fixed archive. When err is set it leaves a partial
// file behind and fails, like an interrupted transfer.
type fakeDownloader struct {
	data  []byte
	err   error
	calls atomic.Int32
	// afterWrite runs once the file is on disk, before DownloadToFile returns
	afterWrite func()
}

func (d *fakeDownloader) DownloadToFile(_ context.Context, _ string, path string) (int64, error) {
	d.calls.Add(1)
	if d.err != nil {
		_ = os.WriteFile(path, []byte("partial"), 0o644)
		return 0, d.err
	}
	if err := os.WriteFile(path, d.data, 0o644); err != nil {
		return 0, err
	}
	if d.afterWrite != nil {
		d.afterWrite()
	}
	return int64(len(d.data)), nil
}

// zipsIn lists the .zip files left in dir
func zipsIn(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.zip"))
	require.NoError(t, err)
	return matches
}
