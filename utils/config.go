package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// DefaultUserAgent is sent when REDDIT_USER_AGENT is unset
const DefaultUserAgent = "reddit-docker-app"

// dateLayout is accepted for the study date bounds besides RFC3339
const dateLayout = "2006-01-02"

// Config holds all configuration for the application
type Config struct {
	App    AppConfig
	Reddit RedditConfig
	Study  StudyConfig
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name    string
	Version string
}

// RedditConfig holds Reddit API configuration
type RedditConfig struct {
	ClientID             string
	ClientSecret         string
	UserAgent            string
	MaxRequestsPerMinute int
}

// StudyConfig holds the parameters of one collection run.
// It is built once by LoadConfig and must not be modified afterwards.
type StudyConfig struct {
	Subreddits      []string   `validate:"required,min=1,dive,required"`
	Keywords        []string   `validate:"required,min=1,dive,required"`
	StartDate       *time.Time
	EndDate         *time.Time
	Limit           int    `validate:"gt=0"`
	Sort            string `validate:"oneof=relevance hot top new comments"`
	TimeFilter      string `validate:"oneof=all day hour month week year"`
	CollectComments bool
	TopLevelOnly    bool
	// CommentLimit caps the total number of comments across all posts; 0 means no cap
	CommentLimit int    `validate:"gte=0"`
	OutputPrefix string `validate:"required"`
	OutputDir    string
	SQLitePath   string
}

// InRange reports whether t falls inside the inclusive [StartDate, EndDate] window
func (s *StudyConfig) InRange(t time.Time) bool {
	if s.StartDate != nil && t.Before(*s.StartDate) {
		return false
	}
	if s.EndDate != nil && t.After(*s.EndDate) {
		return false
	}
	return true
}

// envVarNames maps StudyConfig fields to the variables that set them, for error messages
var envVarNames = map[string]string{
	"Subreddits":   "STUDY_SUBREDDITS",
	"Keywords":     "STUDY_KEYWORDS",
	"Limit":        "STUDY_LIMIT",
	"Sort":         "STUDY_SORT",
	"TimeFilter":   "STUDY_TIME_FILTER",
	"CommentLimit": "STUDY_COMMENT_LIMIT",
	"OutputPrefix": "STUDY_OUTPUT_PREFIX",
}

// LoadConfig loads configuration from the .env file and the process environment.
// A missing .env file is not an error; the environment alone is enough.
func LoadConfig(envPath string, log *logrus.Logger) (*Config, error) {
	if envPath == "" {
		envPath = ".env"
	}

	if err := godotenv.Load(envPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
		log.WithField("file", envPath).Debug("No .env file found, using process environment")
	}

	startDate, err := getEnvAsTime("STUDY_START_DATE", "2025-08-01")
	if err != nil {
		return nil, err
	}
	endDate, err := getEnvAsTime("STUDY_END_DATE", "2025-09-30")
	if err != nil {
		return nil, err
	}

	config := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "Reddit Collector"),
			Version: getEnv("APP_VERSION", "1.0.0"),
		},
		Reddit: RedditConfig{
			ClientID:             getEnv("REDDIT_CLIENT_ID", ""),
			ClientSecret:         getEnv("REDDIT_CLIENT_SECRET", ""),
			UserAgent:            getEnv("REDDIT_USER_AGENT", DefaultUserAgent),
			MaxRequestsPerMinute: getEnvAsInt("REDDIT_MAX_REQUESTS_PER_MINUTE", 100),
		},
		Study: StudyConfig{
			Subreddits: parseList(getEnv("STUDY_SUBREDDITS",
				"Replika,MyBoyfriendIsAI,CharacterAI,ChatGPT,singularity")),
			Keywords: parseList(getEnv("STUDY_KEYWORDS",
				"AI boyfriend,AI girlfriend,AI partner,lobotomized,nerfed,personality shift,GPT-5,model update")),
			StartDate:       startDate,
			EndDate:         endDate,
			Limit:           getEnvAsInt("STUDY_LIMIT", 100),
			Sort:            strings.ToLower(getEnv("STUDY_SORT", "relevance")),
			TimeFilter:      strings.ToLower(getEnv("STUDY_TIME_FILTER", "all")),
			CollectComments: getEnvAsBool("STUDY_COLLECT_COMMENTS", true),
			TopLevelOnly:    getEnvAsBool("STUDY_TOP_LEVEL_ONLY", true),
			CommentLimit:    getEnvAsInt("STUDY_COMMENT_LIMIT", 0),
			OutputPrefix:    getEnv("STUDY_OUTPUT_PREFIX", "ai_boyfriend_study"),
			OutputDir:       getEnv("STUDY_OUTPUT_DIR", "."),
			SQLitePath:      getEnv("STUDY_SQLITE_PATH", ""),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	log.WithField("file", envPath).Info("Config loaded successfully")
	return config, nil
}

// parseList parses a comma-separated list, dropping empty entries
func parseList(value string) []string {
	parts := strings.Split(value, ",")

	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}

	return items
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsTime parses a date bound. An explicitly empty variable disables the bound.
func getEnvAsTime(key, defaultValue string) (*time.Time, error) {
	value := strings.TrimSpace(getEnv(key, defaultValue))
	if value == "" {
		return nil, nil
	}

	t, err := parseTime(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &t, nil
}

func parseTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD or RFC3339", value)
	}
	return t, nil
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Reddit.UserAgent == "" {
		return fmt.Errorf("REDDIT_USER_AGENT must not be empty")
	}

	validate := validator.New()
	if err := validate.Struct(config.Study); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fe := validationErrors[0]
			name := envVarNames[fe.StructField()]
			if name == "" {
				name = fe.StructField()
			}
			return fmt.Errorf("%s is invalid (rule %q, value %v)", name, fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid study configuration: %w", err)
	}

	study := config.Study
	if study.StartDate != nil && study.EndDate != nil && study.EndDate.Before(*study.StartDate) {
		return fmt.Errorf("STUDY_END_DATE must not be before STUDY_START_DATE")
	}

	// if we are writing into nested directories, create them now
	if study.OutputDir != "" && study.OutputDir != "." {
		if err := os.MkdirAll(study.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if study.SQLitePath != "" {
		dbDir := filepath.Dir(study.SQLitePath)
		if dbDir != "." && dbDir != "" {
			if err := os.MkdirAll(dbDir, 0755); err != nil {
				return fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	return nil
}
