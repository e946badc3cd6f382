package edgar_test

import (
	"slices"
	"testing"

	"github.com/RxDataLab/go-edgar-bulk"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_Scenario(t *testing.T) {
	idx := edgar.NewIndex(openZip(t, scenarioFiles()...), scenarioRegistry(), edgar.KeepLast)

	name, err := idx.FilenameForCIK("0000002034")
	require.NoError(t, err)
	assert.Equal(t, "CIK0000002034.json", name)

	assert.Equal(t, []string{"0000002034"}, idx.Unlisted())

	name, err = idx.FilenameForTicker("AIR")
	require.NoError(t, err)
	assert.Equal(t, "CIK0000001750.json", name)

	_, err = idx.FilenameForTicker("ZZZZ")
	assert.ErrorIs(t, err, edgar.ErrNotFound)

	_, err = idx.FilenameForCIK("0000009999")
	assert.ErrorIs(t, err, edgar.ErrNotFound)
}

func TestIndex_CompletenessAndSoundness(t *testing.T) {
	files := append(scenarioFiles(),
		zipFile{"README.txt", "not a company"},
		zipFile{"cik0000001750.json", "{}"},
		zipFile{"CIK0000078003-submissions-001.json", "{}"},
		zipFile{"CIK00000017500.json", "{}"},
		zipFile{"nested/CIK0000001800.json", "{}"},
		zipFile{"archive/", ""},
	)
	idx := edgar.NewIndex(openZip(t, files...), scenarioRegistry(), edgar.KeepLast)

	want := map[string]string{
		"0000001750": "CIK0000001750.json",
		"0000001800": "CIK0000001800.json",
		"0000001961": "CIK0000001961.json",
		"0000002034": "CIK0000002034.json",
		"0000002098": "CIK0000002098.json",
	}
	if diff := cmp.Diff(want, idx.CIKFilenames()); diff != "" {
		t.Errorf("CIKFilenames mismatch (-want +got):\n%s", diff)
	}

	wantTickers := map[string]string{
		"AIR":  "CIK0000001750.json",
		"ABT":  "CIK0000001800.json",
		"WDDD": "CIK0000001961.json",
		"ACU":  "CIK0000002098.json",
	}
	if diff := cmp.Diff(wantTickers, idx.TickerFilenames()); diff != "" {
		t.Errorf("TickerFilenames mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"ABT", "ACU", "AIR", "WDDD"}, idx.Tickers())

	// Full listing keeps non-matching files but not directories
	listing := idx.Files()
	assert.Len(t, listing, len(files)-1)
	assert.Contains(t, listing, "README.txt")
	assert.NotContains(t, listing, "archive/")
	assert.Len(t, idx.Entries(), 5)
}

func TestIndex_TickerAndCIKAgree(t *testing.T) {
	reg := scenarioRegistry()
	idx := edgar.NewIndex(openZip(t, scenarioFiles()...), reg, edgar.KeepLast)

	for _, cik := range reg.CIKs() {
		ticker, ok := reg.TickerForCIK(cik)
		require.True(t, ok)

		byTicker, err := idx.FilenameForTicker(ticker)
		require.NoError(t, err)
		byCIK, err := idx.FilenameForCIK(cik)
		require.NoError(t, err)
		assert.Equal(t, byCIK, byTicker, "ticker %s", ticker)
	}

	for _, entry := range idx.Entries() {
		assert.Equal(t, entry.Ticker != "", entry.Listed())
		if !entry.Listed() {
			assert.True(t, slices.Contains(idx.Unlisted(), entry.CIK))
		}
	}
}

func TestIndex_ReadEntry(t *testing.T) {
	idx := edgar.NewIndex(openZip(t,
		zipFile{"CIK0000001750.json", factsJSON(1750, "AAR CORP")},
		zipFile{"CIK0000001800.json", `{"cik": 1800, "facts": `},
	), scenarioRegistry(), edgar.KeepLast)

	data, err := idx.ReadEntry("CIK0000001750.json")
	require.NoError(t, err)
	assert.JSONEq(t, factsJSON(1750, "AAR CORP"), string(data))

	_, err = idx.ReadEntry("CIK0000001800.json")
	assert.ErrorIs(t, err, edgar.ErrCorruptArchive)

	_, err = idx.ReadEntry("CIK0000009999.json")
	assert.ErrorIs(t, err, edgar.ErrNotFound)
}

func TestIndex_DuplicatePolicy(t *testing.T) {
	files := []zipFile{
		{"CIK0000001750.json", factsJSON(1750, "AAR CORP (old)")},
		{"CIK0000002034.json", factsJSON(2034, "UNLISTED (old)")},
		{"CIK0000001750.json", factsJSON(1750, "AAR CORP")},
		{"CIK0000002034.json", factsJSON(2034, "UNLISTED")},
	}

	t.Run("keep last", func(t *testing.T) {
		idx := edgar.NewIndex(openZip(t, files...), scenarioRegistry(), edgar.KeepLast)
		assert.Equal(t, edgar.KeepLast, idx.Policy())

		names, err := idx.FilenamesForCIK("0000001750")
		require.NoError(t, err)
		assert.Len(t, names, 1)

		entry, err := idx.EntryForTicker("AIR")
		require.NoError(t, err)
		data, err := idx.Read(entry)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"AAR CORP"`)

		assert.Equal(t, []string{"0000002034"}, idx.Unlisted())
		assert.Len(t, idx.Entries(), 2)
	})

	t.Run("keep all", func(t *testing.T) {
		idx := edgar.NewIndex(openZip(t, files...), scenarioRegistry(), edgar.KeepAll)
		assert.Equal(t, "keep-all", idx.Policy().String())

		names, err := idx.FilenamesForCIK("0000001750")
		require.NoError(t, err)
		assert.Equal(t, []string{"CIK0000001750.json", "CIK0000001750.json"}, names)

		// Single-entry lookups return the last one seen
		entry, err := idx.EntryForCIK("1750")
		require.NoError(t, err)
		data, err := idx.Read(entry)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"AAR CORP"`)

		// Each unlisted CIK is reported once
		assert.Equal(t, []string{"0000002034"}, idx.Unlisted())
		assert.Len(t, idx.Entries(), 4)
	})
}

func TestIndex_UnlistedIsACopy(t *testing.T) {
	idx := edgar.NewIndex(openZip(t, scenarioFiles()...), scenarioRegistry(), edgar.KeepLast)
	unlisted := idx.Unlisted()
	unlisted[0] = "mutated"
	assert.Equal(t, []string{"0000002034"}, idx.Unlisted())
}

func TestIndex_ReturnedEntriesAreCopies(t *testing.T) {
	idx := edgar.NewIndex(openZip(t, scenarioFiles()...), scenarioRegistry(), edgar.KeepLast)

	entry, err := idx.EntryForTicker("AIR")
	require.NoError(t, err)
	entry.Filename = "CIK0000009999.json"
	entry.Ticker = ""

	byCIK, err := idx.EntryForCIK("1750")
	require.NoError(t, err)
	byCIK.Filename = "CIK0000009998.json"

	for _, e := range idx.Entries() {
		e.Ticker = "ZZZZ"
	}

	name, err := idx.FilenameForTicker("AIR")
	require.NoError(t, err)
	assert.Equal(t, "CIK0000001750.json", name)

	name, err = idx.FilenameForCIK("0000001750")
	require.NoError(t, err)
	assert.Equal(t, "CIK0000001750.json", name)

	fresh, err := idx.EntryForTicker("AIR")
	require.NoError(t, err)
	assert.True(t, fresh.Listed())
	assert.Equal(t, "AIR", fresh.Ticker)

	_, err = idx.FilenameForTicker("ZZZZ")
	assert.ErrorIs(t, err, edgar.ErrNotFound)

	// A mutated copy still reads the entry it was taken from
	data, err := idx.Read(entry)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"AAR CORP"`)
}
