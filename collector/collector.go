package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/reddit-collector/api"
	"github.com/brettboylen/reddit-collector/models"
	"github.com/brettboylen/reddit-collector/utils"
)

// RedditClient is the part of the Reddit API the collector needs
type RedditClient interface {
	SearchSubreddit(ctx context.Context, subreddit string, params api.SearchParams) ([]api.Submission, error)
	FetchComments(ctx context.Context, postID string) (*api.CommentTree, error)
	ResolveMore(ctx context.Context, tree *api.CommentTree) error
}

// CommunityAccessError means a subreddit could not be searched
type CommunityAccessError struct {
	Subreddit string
	Keyword   string
	Err       error
}

func (e *CommunityAccessError) Error() string {
	return fmt.Sprintf("r/%s (keyword %q): %v", e.Subreddit, e.Keyword, e.Err)
}

func (e *CommunityAccessError) Unwrap() error {
	return e.Err
}

// PostFetchError means the comments of a post could not be retrieved
type PostFetchError struct {
	PostID string
	Err    error
}

func (e *PostFetchError) Error() string {
	return fmt.Sprintf("comments of post %s: %v", e.PostID, e.Err)
}

func (e *PostFetchError) Unwrap() error {
	return e.Err
}

// RunResult is everything a run produced
type RunResult struct {
	Posts []models.Post
	// Comments is nil when comment collection was not requested or there were no posts
	Comments []models.Comment
	Failures []error
}

// Collector searches posts and collects their comments for one study
type Collector struct {
	client RedditClient
	study  *utils.StudyConfig
	log    *logrus.Logger
}

// NewCollector creates a new collector. The study configuration is read but never modified.
func NewCollector(client RedditClient, study *utils.StudyConfig, log *logrus.Logger) *Collector {
	return &Collector{
		client: client,
		study:  study,
		log:    log,
	}
}

// Run searches for posts and, if configured, collects their comments
func (c *Collector) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	c.log.Info("=== Starting Data Collection ===")

	posts, failures := c.SearchPosts(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &RunResult{
		Posts:    posts,
		Failures: failures,
	}

	if c.study.CollectComments && len(posts) > 0 {
		c.log.Info("=== Collecting Comments ===")

		postIDs := make([]string, 0, len(posts))
		for _, post := range posts {
			postIDs = append(postIDs, post.ID)
		}

		comments, commentFailures := c.GetComments(ctx, postIDs, c.study.TopLevelOnly, c.study.CommentLimit)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Comments = comments
		result.Failures = append(result.Failures, commentFailures...)
	}

	c.log.WithFields(logrus.Fields{
		"posts":    len(result.Posts),
		"comments": len(result.Comments),
		"failures": len(result.Failures),
		"duration": time.Since(start).Round(time.Millisecond).String(),
	}).Info("Collection finished")

	return result, nil
}

// IsCanceled reports whether err is the result of the run being interrupted
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
