package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRepo(t *testing.T) ReportRepository {
	t.Helper()
	db, err := NewConnection(&Config{
		Path: filepath.Join(t.TempDir(), "reports_test.db"),
	}, pterm.DefaultLogger.WithLevel(pterm.LogLevelFatal))
	require.NoError(t, err)
	return NewReportRepository(db)
}

func testReport(id, root string, generatedAt time.Time) *Report {
	return &Report{
		ID:            id,
		Root:          root,
		SignatureHash: "hash-" + id,
		GeneratedAt:   generatedAt,
		FilesProcessed: 3,
		EntriesParsed:  120,
		Issues: []ReportIssue{
			{Rank: 0, Signature: "pattern:disk-failure", Category: "Storage", Severity: 4, OccurrenceCount: 9},
			{Rank: 1, Signature: "source:Net#42", Category: "Uncategorized", Severity: 3, OccurrenceCount: 4},
		},
	}
}

func TestReportRepository_SaveAndFindLatest(t *testing.T) {
	repo := testRepo(t)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.Save(testReport("11111111-1111-1111-1111-111111111111", "/logs", now.Add(-time.Hour))))
	require.NoError(t, repo.Save(testReport("22222222-2222-2222-2222-222222222222", "/logs", now)))

	latest, err := repo.FindLatestByRoot("/logs")
	require.NoError(t, err)
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", latest.ID)
	assert.Equal(t, "hash-22222222-2222-2222-2222-222222222222", latest.SignatureHash)

	require.Len(t, latest.Issues, 2)
	assert.Equal(t, "pattern:disk-failure", latest.Issues[0].Signature)
	assert.Equal(t, "source:Net#42", latest.Issues[1].Signature)
}

func TestReportRepository_FindLatest_NotFound(t *testing.T) {
	repo := testRepo(t)
	_, err := repo.FindLatestByRoot("/nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReportRepository_Roots(t *testing.T) {
	repo := testRepo(t)
	now := time.Now()

	require.NoError(t, repo.Save(testReport("11111111-1111-1111-1111-111111111111", "/logs/a", now)))
	require.NoError(t, repo.Save(testReport("22222222-2222-2222-2222-222222222222", "/logs/a", now.Add(time.Minute))))
	require.NoError(t, repo.Save(testReport("33333333-3333-3333-3333-333333333333", "/logs/b", now)))

	roots, err := repo.Roots()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/logs/a", "/logs/b"}, roots)
}

func TestReportRepository_DeleteOlderThan(t *testing.T) {
	repo := testRepo(t)
	now := time.Now().UTC()

	require.NoError(t, repo.Save(testReport("11111111-1111-1111-1111-111111111111", "/logs", now.AddDate(0, 0, -90))))
	require.NoError(t, repo.Save(testReport("22222222-2222-2222-2222-222222222222", "/logs", now)))

	deleted, err := repo.DeleteOlderThan(now.AddDate(0, 0, -60))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	latest, err := repo.FindLatestByRoot("/logs")
	require.NoError(t, err)
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", latest.ID)
	// Issue rows of the deleted report are gone too.
	assert.Len(t, latest.Issues, 2)

	deleted, err = repo.DeleteOlderThan(now.AddDate(0, 0, -60))
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
