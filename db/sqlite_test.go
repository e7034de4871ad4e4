package db

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brettboylen/reddit-collector/models"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	database, err := NewDatabase(filepath.Join(t.TempDir(), "runs.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestSaveRun(t *testing.T) {
	database := newTestDatabase(t)

	flair := "News"
	created := time.Date(2025, 8, 2, 9, 30, 0, 0, time.UTC)
	posts := []models.Post{
		{Subreddit: "alpha", SearchKeyword: "x", ID: "p1", Title: "one", Author: "a", CreatedAt: created, Score: 3, UpvoteRatio: 0.5, FlairText: &flair, Permalink: "https://reddit.com/p1"},
		{Subreddit: "alpha", SearchKeyword: "x", ID: "p2", Title: "two", Author: "b", CreatedAt: created, IsSelf: true, Permalink: "https://reddit.com/p2"},
	}
	comments := []models.Comment{
		{PostID: "p1", ID: "c1", Author: "a", Body: "hi", CreatedAt: created, Permalink: "https://reddit.com/c1"},
	}
	summary := models.RunSummary{
		PostsFile:  "study_posts_20251003_140509.csv",
		StartTime:  created,
		FinishTime: created.Add(time.Minute),
	}

	runID, err := database.SaveRun(summary, "study", posts, comments)
	require.NoError(t, err)

	got, err := database.GetPostsByRun(runID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, "News", *got[0].FlairText)
	assert.Nil(t, got[1].FlairText)
	assert.True(t, got[1].IsSelf)
	assert.True(t, created.Equal(got[0].CreatedAt))

	count, err := database.CountComments(runID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// a second run keeps its own rows
	secondID, err := database.SaveRun(summary, "study", posts[:1], nil)
	require.NoError(t, err)
	assert.NotEqual(t, runID, secondID)

	got, err = database.GetPostsByRun(secondID)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSaveRunRejectsDuplicatePosts(t *testing.T) {
	database := newTestDatabase(t)

	posts := []models.Post{
		{ID: "p1", Title: "one", Author: "a", Permalink: "x"},
		{ID: "p1", Title: "one", Author: "a", Permalink: "x"},
	}

	_, err := database.SaveRun(models.RunSummary{PostsFile: "f"}, "study", posts, nil)
	require.Error(t, err)

	// the failed run is rolled back entirely
	got, err := database.GetPostsByRun(1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewDatabaseUnopenablePath(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	// a directory cannot be opened as a database file
	database, err := NewDatabase(t.TempDir(), log)
	require.Error(t, err)
	assert.Nil(t, database)
}
