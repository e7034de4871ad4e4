package utils

import (
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func validStudy() StudyConfig {
	return StudyConfig{
		Subreddits:   []string{"golang"},
		Keywords:     []string{"generics"},
		Limit:        100,
		Sort:         "relevance",
		TimeFilter:   "all",
		OutputPrefix: "study",
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_ENV_VAR", "test-value")

	value := getEnv("TEST_ENV_VAR", "default-value")
	assert.Equal(t, "test-value", value)

	value = getEnv("NON_EXISTENT_VAR", "default-value")
	assert.Equal(t, "default-value", value)
}

func TestGetEnvAsInt(t *testing.T) {
	t.Setenv("TEST_INT_VAR", "42")
	t.Setenv("TEST_INVALID_INT_VAR", "not-an-int")

	assert.Equal(t, 42, getEnvAsInt("TEST_INT_VAR", 10))
	assert.Equal(t, 10, getEnvAsInt("TEST_INVALID_INT_VAR", 10))
	assert.Equal(t, 10, getEnvAsInt("NON_EXISTENT_VAR", 10))
}

func TestGetEnvAsBool(t *testing.T) {
	t.Setenv("TEST_BOOL_VAR", "false")
	t.Setenv("TEST_INVALID_BOOL_VAR", "maybe")

	assert.False(t, getEnvAsBool("TEST_BOOL_VAR", true))
	assert.True(t, getEnvAsBool("TEST_INVALID_BOOL_VAR", true))
	assert.True(t, getEnvAsBool("NON_EXISTENT_VAR", true))
}

func TestGetEnvAsTime(t *testing.T) {
	t.Setenv("TEST_DATE", "2025-08-01")
	t.Setenv("TEST_RFC3339", "2025-09-30T23:59:59Z")
	t.Setenv("TEST_EMPTY_DATE", "")
	t.Setenv("TEST_BAD_DATE", "08/01/2025")

	got, err := getEnvAsTime("TEST_DATE", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), *got)

	got, err = getEnvAsTime("TEST_RFC3339", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 9, 30, 23, 59, 59, 0, time.UTC), *got)

	got, err = getEnvAsTime("TEST_EMPTY_DATE", "2025-01-01")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = getEnvAsTime("TEST_BAD_DATE", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_BAD_DATE")
}

func TestValidateConfig(t *testing.T) {
	validConfig := &Config{
		Reddit: RedditConfig{UserAgent: "agent"},
		Study:  validStudy(),
	}
	assert.NoError(t, validateConfig(validConfig))

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "empty user agent",
			mutate:  func(c *Config) { c.Reddit.UserAgent = "" },
			wantErr: "REDDIT_USER_AGENT",
		},
		{
			name:    "no subreddits",
			mutate:  func(c *Config) { c.Study.Subreddits = []string{} },
			wantErr: "STUDY_SUBREDDITS",
		},
		{
			name:    "no keywords",
			mutate:  func(c *Config) { c.Study.Keywords = nil },
			wantErr: "STUDY_KEYWORDS",
		},
		{
			name:    "zero limit",
			mutate:  func(c *Config) { c.Study.Limit = 0 },
			wantErr: "STUDY_LIMIT",
		},
		{
			name:    "unknown sort",
			mutate:  func(c *Config) { c.Study.Sort = "controversial" },
			wantErr: "STUDY_SORT",
		},
		{
			name:    "unknown time filter",
			mutate:  func(c *Config) { c.Study.TimeFilter = "decade" },
			wantErr: "STUDY_TIME_FILTER",
		},
		{
			name:    "negative comment limit",
			mutate:  func(c *Config) { c.Study.CommentLimit = -1 },
			wantErr: "STUDY_COMMENT_LIMIT",
		},
		{
			name: "end before start",
			mutate: func(c *Config) {
				start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
				end := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
				c.Study.StartDate = &start
				c.Study.EndDate = &end
			},
			wantErr: "STUDY_END_DATE",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			config := &Config{
				Reddit: RedditConfig{UserAgent: "agent"},
				Study:  validStudy(),
			}
			tc.mutate(config)

			err := validateConfig(config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestInRange(t *testing.T) {
	start := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)
	study := StudyConfig{StartDate: &start, EndDate: &end}

	assert.True(t, study.InRange(start), "lower bound is inclusive")
	assert.True(t, study.InRange(end), "upper bound is inclusive")
	assert.True(t, study.InRange(start.Add(48*time.Hour)))
	assert.False(t, study.InRange(start.Add(-time.Second)))
	assert.False(t, study.InRange(end.Add(time.Second)))

	open := StudyConfig{}
	assert.True(t, open.InRange(time.Unix(0, 0)))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	content := "APP_NAME=Study Collector\n" +
		"REDDIT_CLIENT_ID=id\n" +
		"REDDIT_CLIENT_SECRET=secret\n" +
		"STUDY_SUBREDDITS=golang, rust\n" +
		"STUDY_KEYWORDS=generics,borrow checker\n" +
		"STUDY_START_DATE=\n" +
		"STUDY_END_DATE=\n" +
		"STUDY_SORT=NEW\n" +
		"STUDY_COMMENT_LIMIT=50\n" +
		"STUDY_OUTPUT_DIR=" + filepath.Join(dir, "out") + "\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0644))

	// godotenv never overrides existing variables, so clear anything the test sets
	for _, key := range []string{
		"APP_NAME", "APP_VERSION",
		"REDDIT_CLIENT_ID", "REDDIT_CLIENT_SECRET", "REDDIT_USER_AGENT",
		"STUDY_SUBREDDITS", "STUDY_KEYWORDS", "STUDY_START_DATE", "STUDY_END_DATE",
		"STUDY_SORT", "STUDY_COMMENT_LIMIT", "STUDY_OUTPUT_DIR",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	config, err := LoadConfig(envPath, testLogger())
	require.NoError(t, err)

	assert.Equal(t, "Study Collector", config.App.Name)
	assert.Equal(t, "1.0.0", config.App.Version)
	assert.Equal(t, "id", config.Reddit.ClientID)
	assert.Equal(t, DefaultUserAgent, config.Reddit.UserAgent)
	assert.Equal(t, []string{"golang", "rust"}, config.Study.Subreddits)
	assert.Equal(t, []string{"generics", "borrow checker"}, config.Study.Keywords)
	assert.Nil(t, config.Study.StartDate)
	assert.Nil(t, config.Study.EndDate)
	assert.Equal(t, "new", config.Study.Sort)
	assert.Equal(t, 50, config.Study.CommentLimit)
	assert.Equal(t, "ai_boyfriend_study", config.Study.OutputPrefix)
	assert.DirExists(t, filepath.Join(dir, "out"))
}

func TestLoadConfigMissingEnvFile(t *testing.T) {
	t.Setenv("STUDY_SORT", "relevance")

	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"), testLogger())
	require.NoError(t, err)
	assert.NotEmpty(t, config.Study.Subreddits)
}

func TestParseList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Single subreddit",
			input:    "AskReddit",
			expected: []string{"AskReddit"},
		},
		{
			name:     "Multiple subreddits",
			input:    "AskReddit,news,programming",
			expected: []string{"AskReddit", "news", "programming"},
		},
		{
			name:     "Keywords with inner spaces",
			input:    "AI boyfriend, personality shift",
			expected: []string{"AI boyfriend", "personality shift"},
		},
		{
			name:     "Extra commas",
			input:    ",AskReddit,,news,,programming,",
			expected: []string{"AskReddit", "news", "programming"},
		},
		{
			name:     "Mixed whitespace",
			input:    " AskReddit ,\t news\n, programming ",
			expected: []string{"AskReddit", "news", "programming"},
		},
		{
			name:     "Empty",
			input:    "",
			expected: []string{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := parseList(tc.input)
			if !reflect.DeepEqual(result, tc.expected) {
				t.Errorf("parseList(%q) = %v; want %v", tc.input, result, tc.expected)
			}
		})
	}
}
