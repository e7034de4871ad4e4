package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/reddit-collector/api"
	"github.com/brettboylen/reddit-collector/collector"
	"github.com/brettboylen/reddit-collector/db"
	"github.com/brettboylen/reddit-collector/export"
	"github.com/brettboylen/reddit-collector/models"
	"github.com/brettboylen/reddit-collector/utils"
)

func main() {
	envPath := flag.String("env", ".env", "Path to .env file")
	logLevel := flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
	flag.Parse()

	log := setupLogger(*logLevel)

	config, err := utils.LoadConfig(*envPath, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	log.WithFields(logrus.Fields{
		"name":    config.App.Name,
		"version": config.App.Version,
	}).Info("Starting Reddit Collector")

	study := &config.Study
	log.WithFields(logrus.Fields{
		"subreddits":       study.Subreddits,
		"keywords":         study.Keywords,
		"start_date":       formatBound(study.StartDate),
		"end_date":         formatBound(study.EndDate),
		"limit":            study.Limit,
		"sort":             study.Sort,
		"time_filter":      study.TimeFilter,
		"collect_comments": study.CollectComments,
		"top_level_only":   study.TopLevelOnly,
		"comment_limit":    study.CommentLimit,
	}).Info("Configuration loaded")

	// stop between requests on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redditAPI := api.NewRedditAPI(
		config.Reddit.ClientID,
		config.Reddit.ClientSecret,
		config.Reddit.UserAgent,
		config.Reddit.MaxRequestsPerMinute,
		log,
	)
	if err := redditAPI.Connect(ctx); err != nil {
		log.WithError(err).Fatal("Failed to authenticate with Reddit")
	}

	if err := run(ctx, redditAPI, study, log); err != nil {
		if collector.IsCanceled(err) {
			log.Warn("Collection interrupted, nothing was saved")
			os.Exit(130)
		}
		log.WithError(err).Fatal("Collection failed")
	}
}

// run collects, exports and summarizes one study
func run(ctx context.Context, client collector.RedditClient, study *utils.StudyConfig, log *logrus.Logger) error {
	summary := models.RunSummary{StartTime: time.Now()}

	result, err := collector.NewCollector(client, study, log).Run(ctx)
	if err != nil {
		return err
	}

	log.Info("=== Saving Data ===")
	exporter := export.NewExporter(study.OutputDir, study.OutputPrefix, log)
	postsFile, commentsFile, err := exporter.Save(result.Posts, result.Comments)
	if err != nil {
		return err
	}

	summary.PostsFile = postsFile
	summary.CommentsFile = commentsFile
	summary.TotalPosts = len(result.Posts)
	summary.TotalComments = len(result.Comments)
	summary.Failures = len(result.Failures)
	summary.FinishTime = time.Now()

	if study.SQLitePath != "" {
		if err := mirrorToDatabase(study, summary, result, log); err != nil {
			// the CSV files are the primary output; a failed mirror does not fail the run
			log.WithError(err).Error("Failed to mirror run to database")
		}
	}

	logSummary(summary, study.CollectComments && result.Comments != nil, result.Failures, log)
	return nil
}

func mirrorToDatabase(study *utils.StudyConfig, summary models.RunSummary, result *collector.RunResult, log *logrus.Logger) error {
	database, err := db.NewDatabase(study.SQLitePath, log)
	if err != nil {
		return err
	}
	defer database.Close()

	_, err = database.SaveRun(summary, study.OutputPrefix, result.Posts, result.Comments)
	return err
}

// logSummary prints the run summary and each recovered failure
func logSummary(summary models.RunSummary, commentsCollected bool, failures []error, log *logrus.Logger) {
	for _, failure := range failures {
		log.WithError(failure).Warn("Item skipped during collection")
	}

	fields := logrus.Fields{
		"total_posts": summary.TotalPosts,
		"posts_file":  summary.PostsFile,
		"failures":    summary.Failures,
		"duration":    summary.FinishTime.Sub(summary.StartTime).Round(time.Second).String(),
	}
	if commentsCollected {
		fields["total_comments"] = summary.TotalComments
		if summary.CommentsFile != "" {
			fields["comments_file"] = summary.CommentsFile
		}
	}

	log.WithFields(fields).Info("=== Collection Summary ===")
	log.Info("Collection complete!")
}

func formatBound(t *time.Time) string {
	if t == nil {
		return "none"
	}
	return t.Format(time.RFC3339)
}

// setupLogger sets up the logger with the specified log level
func setupLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}
