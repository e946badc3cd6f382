package edgar_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RxDataLab/go-edgar-bulk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testUserAgent = "go-edgar/test (dev@rxdatalab.com)"

func newTestClient(t *testing.T, opts ...edgar.ClientOption) *edgar.Client {
	t.Helper()
	opts = append([]edgar.ClientOption{
		edgar.WithRetryInterval(time.Millisecond),
		edgar.WithLogger(zaptest.NewLogger(t)),
	}, opts...)
	client, err := edgar.NewClient(testUserAgent, opts...)
	require.NoError(t, err)
	return client
}

// flakyServer fails the first `failures` requests with status, then serves body
func flakyServer(t *testing.T, failures int32, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= failures {
			w.WriteHeader(status)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestNewClient_Validation(t *testing.T) {
	_, err := edgar.NewClient("  ")
	assert.ErrorIs(t, err, edgar.ErrEmptyUserAgent)

	_, err = edgar.NewClient(testUserAgent, edgar.WithRateLimit(edgar.MaxRequestsPerSecond+1))
	assert.Error(t, err)

	_, err = edgar.NewClient(testUserAgent, edgar.WithRateLimit(0))
	assert.Error(t, err)

	_, err = edgar.NewClient(testUserAgent, edgar.WithMaxRetries(0))
	assert.Error(t, err)

	client, err := edgar.NewClient(testUserAgent)
	require.NoError(t, err)
	assert.Equal(t, testUserAgent, client.UserAgent())
}

func TestBuildUserAgent(t *testing.T) {
	assert.Equal(t, "go-edgar-bulk/"+edgar.VERSION+" (dev@rxdatalab.com)", edgar.BuildUserAgent("dev@rxdatalab.com"))
	assert.NoError(t, edgar.ValidateEmail("dev@rxdatalab.com"))
	assert.Error(t, edgar.ValidateEmail("not-an-email"))
	assert.Error(t, edgar.ValidateEmail("someone@example.com"))
}

func TestClient_SendsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		fmt.Fprint(w, `{"ok": true}`)
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, newTestClient(t).GetJSON(context.Background(), srv.URL, &out))
	assert.True(t, out.OK)
	assert.Equal(t, testUserAgent, got)
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv, hits := flakyServer(t, 2, status, "payload")

			data, err := newTestClient(t).GetBytes(context.Background(), srv.URL)
			require.NoError(t, err)
			assert.Equal(t, "payload", string(data))
			assert.Equal(t, int32(3), hits.Load())
		})
	}
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	srv, hits := flakyServer(t, 100, http.StatusServiceUnavailable, "")

	_, err := newTestClient(t, edgar.WithMaxRetries(3)).GetBytes(context.Background(), srv.URL)
	require.Error(t, err)

	var statusErr *edgar.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.True(t, statusErr.Temporary())
	assert.Equal(t, int32(3), hits.Load())
}

func TestClient_PermanentFailuresAreNotRetried(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		srv, hits := flakyServer(t, 100, http.StatusNotFound, "")

		_, err := newTestClient(t).GetBytes(context.Background(), srv.URL)
		assert.ErrorIs(t, err, edgar.ErrNotFound)
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("forbidden", func(t *testing.T) {
		srv, hits := flakyServer(t, 100, http.StatusForbidden, "")

		_, err := newTestClient(t).GetBytes(context.Background(), srv.URL)
		var statusErr *edgar.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("bad JSON", func(t *testing.T) {
		srv, hits := flakyServer(t, 0, http.StatusOK, "{not json")

		var v map[string]any
		err := newTestClient(t).GetJSON(context.Background(), srv.URL, &v)
		assert.Error(t, err)
		assert.Equal(t, int32(1), hits.Load())
	})
}

func TestClient_ContextCancelled(t *testing.T) {
	srv, _ := flakyServer(t, 100, http.StatusServiceUnavailable, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t).GetBytes(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_Metrics(t *testing.T) {
	srv, _ := flakyServer(t, 1, http.StatusServiceUnavailable, "zipbytes")
	reg := prometheus.NewRegistry()
	client := newTestClient(t, edgar.WithMetrics(reg))

	path := filepath.Join(t.TempDir(), "archive.zip")
	_, err := client.DownloadToFile(context.Background(), srv.URL, path)
	require.NoError(t, err)

	expected := `
# HELP edgar_download_bytes_total Bytes written to disk by archive downloads.
# TYPE edgar_download_bytes_total counter
edgar_download_bytes_total 8
# HELP edgar_http_requests_total SEC requests by final outcome, after retries.
# TYPE edgar_http_requests_total counter
edgar_http_requests_total{outcome="success"} 1
# HELP edgar_http_retries_total SEC request attempts that were retried.
# TYPE edgar_http_retries_total counter
edgar_http_retries_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"edgar_download_bytes_total", "edgar_http_requests_total", "edgar_http_retries_total"))

	// A second client cannot register the same collectors
	_, err = edgar.NewClient(testUserAgent, edgar.WithMetrics(reg))
	assert.Error(t, err)
}

func TestDownloadToFile(t *testing.T) {
	body := strings.Repeat("x", 100_000)
	srv, hits := flakyServer(t, 1, http.StatusBadGateway, body)
	path := filepath.Join(t.TempDir(), "download.zip")

	n, err := newTestClient(t, edgar.WithChunkSize(4096)).DownloadToFile(context.Background(), srv.URL, path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), n)
	assert.Equal(t, int32(2), hits.Load())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}

func TestDownloadToFile_RefusesExistingPath(t *testing.T) {
	srv, hits := flakyServer(t, 0, http.StatusOK, "new")
	path := filepath.Join(t.TempDir(), "existing.zip")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	_, err := newTestClient(t).DownloadToFile(context.Background(), srv.URL, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.Equal(t, int32(0), hits.Load())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestDownloadToFile_RemovesPartialFileOnFailure(t *testing.T) {
	srv, _ := flakyServer(t, 100, http.StatusNotFound, "")
	path := filepath.Join(t.TempDir(), "missing.zip")

	_, err := newTestClient(t).DownloadToFile(context.Background(), srv.URL, path)
	assert.ErrorIs(t, err, edgar.ErrNotFound)
	assert.NoFileExists(t, path)
}

func TestFetchSubmissions_RealSEC(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	email, err := edgar.GetSecEmail()
	if err != nil {
		t.Skip("SEC_EMAIL not set")
	}

	client, err := edgar.NewClient(edgar.BuildUserAgent(email))
	require.NoError(t, err)

	subs, err := client.FetchSubmissions(context.Background(), "78003")
	require.NoError(t, err)
	assert.Equal(t, "0000078003", subs.CIK)
	assert.Equal(t, "PFIZER INC", subs.Name)
	assert.NotEmpty(t, subs.GetRecentFilings())
}

func TestGetCompanyFacts_RealSEC(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	email, err := edgar.GetSecEmail()
	if err != nil {
		t.Skip("SEC_EMAIL not set")
	}

	client, err := edgar.NewClient(edgar.BuildUserAgent(email))
	require.NoError(t, err)

	facts, err := client.GetCompanyFacts(context.Background(), "320193")
	require.NoError(t, err)
	assert.Equal(t, "0000320193", facts.CIK)

	assets, err := facts.Concept("us-gaap", "Assets")
	require.NoError(t, err)
	assert.Contains(t, assets.UnitNames(), "USD")

	_, err = client.GetCompanyFacts(context.Background(), "AAPL")
	assert.True(t, errors.Is(err, edgar.ErrInvalidCIK))
}
