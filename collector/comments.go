package collector

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/reddit-collector/api"
	"github.com/brettboylen/reddit-collector/models"
)

// postCommentsResult is the outcome of collecting one post's comments
type postCommentsResult struct {
	Comments []models.Comment
	Err      error
}

// GetComments collects comments for each post id in order. With topLevelOnly
// only direct replies to the post are kept, otherwise the whole tree is flattened.
//
// limit caps the total across all posts, not each post: once the running total
// reaches it, collection stops and later posts are not fetched. 0 means no cap.
func (c *Collector) GetComments(ctx context.Context, postIDs []string, topLevelOnly bool, limit int) ([]models.Comment, []error) {
	comments := make([]models.Comment, 0)
	var failures []error

	for idx, postID := range postIDs {
		if ctx.Err() != nil {
			break
		}
		if limit > 0 && len(comments) >= limit {
			c.log.WithField("limit", limit).Info("Comment limit reached, skipping remaining posts")
			break
		}

		c.log.WithFields(logrus.Fields{
			"post_id": postID,
			"index":   idx + 1,
			"total":   len(postIDs),
		}).Info("Collecting comments from post")

		remaining := 0
		if limit > 0 {
			remaining = limit - len(comments)
		}

		result := c.commentsForPost(ctx, postID, topLevelOnly, remaining)
		if result.Err != nil {
			c.log.WithError(result.Err).WithField("post_id", postID).Error("Skipping post")
			failures = append(failures, result.Err)
			continue
		}
		comments = append(comments, result.Comments...)
	}

	return comments, failures
}

// commentsForPost fetches and fully expands one post's comment tree, returning
// at most maxComments comments when maxComments is positive
func (c *Collector) commentsForPost(ctx context.Context, postID string, topLevelOnly bool, maxComments int) postCommentsResult {
	tree, err := c.client.FetchComments(ctx, postID)
	if err != nil {
		return postCommentsResult{Err: &PostFetchError{PostID: postID, Err: err}}
	}
	if err := c.client.ResolveMore(ctx, tree); err != nil {
		return postCommentsResult{Err: &PostFetchError{PostID: postID, Err: err}}
	}

	var selected []api.Comment
	if topLevelOnly {
		selected = tree.TopLevel()
	} else {
		selected = tree.List()
	}

	if maxComments > 0 && len(selected) > maxComments {
		selected = selected[:maxComments]
	}

	comments := make([]models.Comment, 0, len(selected))
	for _, comment := range selected {
		comments = append(comments, toComment(postID, comment))
	}

	return postCommentsResult{Comments: comments}
}

func toComment(postID string, c api.Comment) models.Comment {
	return models.Comment{
		PostID:      postID,
		ID:          c.ID,
		Author:      authorOrDeleted(c.Author),
		Body:        c.Body,
		Score:       c.Score,
		CreatedAt:   c.CreatedAt(),
		IsSubmitter: c.IsSubmitter,
		Permalink:   c.FullPermalink(),
	}
}
