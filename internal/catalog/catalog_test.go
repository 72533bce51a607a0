package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCatalog(t *testing.T) (*Catalog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, path
}

func TestOpen_AppliesMigrations(t *testing.T) {
	c, _ := openTestCatalog(t)

	version, dirty, err := c.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	for _, table := range []string{"runs", "fits"} {
		var n int
		err := c.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "table %s", table)
	}
}

func TestOpen_InMemory(t *testing.T) {
	c, err := Open(":memory:")
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.RecordRun(&Run{Path: "a.dat", Cycles: 1, Lines: 256}))
	runs, err := c.Runs(0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRecordRun_RoundTrip(t *testing.T) {
	c, path := openTestCatalog(t)

	base := time.Date(2026, 3, 14, 15, 9, 26, 535000000, time.UTC)
	first := &Run{
		SessionID: "s1", Path: "first.dat", Cycles: 2, Lines: 512,
		Frequency: 2.5, Amplitude: 400, Skipped: 17,
		StartedAt: base, FinishedAt: base.Add(3 * time.Second),
	}
	second := &Run{
		SessionID: "s1", Path: "second.dat", Cycles: 1, Lines: 256,
		Frequency: 1.25, Amplitude: 380,
		StartedAt: base.Add(time.Minute), FinishedAt: base.Add(time.Minute + time.Second),
	}
	require.NoError(t, c.RecordRun(first))
	require.NoError(t, c.RecordRun(second))

	_, err := uuid.Parse(first.ID)
	assert.NoError(t, err, "RecordRun assigns a uuid")
	assert.NotEqual(t, first.ID, second.ID)

	runs, err := c.Runs(0)
	require.NoError(t, err)
	if diff := cmp.Diff([]Run{*second, *first}, runs); diff != "" {
		t.Errorf("Runs mismatch (-want +got):\n%s", diff)
	}

	limited, err := c.Runs(1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "second.dat", limited[0].Path)

	// reopening keeps the rows and does not re-run migrations
	require.NoError(t, c.Close())
	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	runs, err = reopened.Runs(0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRecordRun_KeepsExplicitID(t *testing.T) {
	c, _ := openTestCatalog(t)
	r := &Run{ID: "fixed", Path: "x.dat"}
	require.NoError(t, c.RecordRun(r))
	assert.Equal(t, "fixed", r.ID)

	assert.Error(t, c.RecordRun(&Run{ID: "fixed", Path: "y.dat"}), "duplicate id")
}

func TestRecordFit_RoundTrip(t *testing.T) {
	c, _ := openTestCatalog(t)

	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	f := &FitRecord{
		DataPath:   "damped_undriven.dat",
		Points:     1200,
		Params:     [4]float64{0.61, 0.3, 0.25, 11.02},
		Variances:  [4]float64{1e-6, 2e-6, 3e-7, 4e-8},
		SSR:        0.012,
		Iterations: 9,
		CreatedAt:  created,
	}
	require.NoError(t, c.RecordFit(f))
	require.NoError(t, c.RecordFit(&FitRecord{DataPath: "older.dat", CreatedAt: created.Add(-time.Hour)}))

	fits, err := c.Fits(0)
	require.NoError(t, err)
	require.Len(t, fits, 2)
	if diff := cmp.Diff(*f, fits[0]); diff != "" {
		t.Errorf("FitRecord mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "older.dat", fits[1].DataPath)
}
