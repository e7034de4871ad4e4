package collector

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/reddit-collector/api"
	"github.com/brettboylen/reddit-collector/models"
)

// communityResult is the outcome of searching one subreddit for every keyword.
// Posts holds whatever was gathered before Err, if any.
type communityResult struct {
	Posts []models.Post
	Err   error
}

// SearchPosts searches every configured subreddit for every keyword, in order,
// and returns the matching posts deduplicated by id (first seen wins) together
// with the subreddits that could not be searched.
func (c *Collector) SearchPosts(ctx context.Context) ([]models.Post, []error) {
	var all []models.Post
	var failures []error

	for _, subreddit := range c.study.Subreddits {
		if ctx.Err() != nil {
			break
		}

		result := c.searchCommunity(ctx, subreddit)
		all = append(all, result.Posts...)
		if result.Err != nil {
			c.log.WithError(result.Err).WithField("subreddit", subreddit).Error("Skipping subreddit")
			failures = append(failures, result.Err)
		}
	}

	posts := dedupPosts(all)
	c.log.WithFields(logrus.Fields{
		"collected": len(all),
		"unique":    len(posts),
	}).Info("Total unique posts collected")

	return posts, failures
}

// searchCommunity runs every keyword against one subreddit. The first failing
// keyword ends the search of this subreddit; posts read before the failure are kept.
func (c *Collector) searchCommunity(ctx context.Context, subreddit string) communityResult {
	c.log.WithField("subreddit", subreddit).Info("Searching subreddit")

	var result communityResult
	for _, keyword := range c.study.Keywords {
		c.log.WithFields(logrus.Fields{
			"subreddit": subreddit,
			"keyword":   keyword,
		}).Info("Searching keyword")

		submissions, err := c.client.SearchSubreddit(ctx, subreddit, api.SearchParams{
			Query:      keyword,
			Limit:      c.study.Limit,
			Sort:       c.study.Sort,
			TimeFilter: c.study.TimeFilter,
		})

		matched := 0
		for _, submission := range submissions {
			created := submission.CreatedAt()
			if !c.study.InRange(created) {
				continue
			}
			result.Posts = append(result.Posts, toPost(subreddit, keyword, submission))
			matched++
		}

		c.log.WithFields(logrus.Fields{
			"subreddit": subreddit,
			"keyword":   keyword,
			"returned":  len(submissions),
			"in_range":  matched,
		}).Debug("Keyword search complete")

		if err != nil {
			result.Err = &CommunityAccessError{Subreddit: subreddit, Keyword: keyword, Err: err}
			return result
		}
	}

	return result
}

// dedupPosts keeps the first occurrence of every post id
func dedupPosts(posts []models.Post) []models.Post {
	seen := make(map[string]struct{}, len(posts))
	unique := make([]models.Post, 0, len(posts))
	for _, post := range posts {
		if _, ok := seen[post.ID]; ok {
			continue
		}
		seen[post.ID] = struct{}{}
		unique = append(unique, post)
	}
	return unique
}

func toPost(subreddit, keyword string, s api.Submission) models.Post {
	return models.Post{
		Subreddit:     subreddit,
		SearchKeyword: keyword,
		ID:            s.ID,
		Title:         s.Title,
		Author:        authorOrDeleted(s.Author),
		CreatedAt:     s.CreatedAt(),
		Score:         s.Score,
		UpvoteRatio:   s.UpvoteRatio,
		NumComments:   s.NumComments,
		URL:           s.URL,
		SelfText:      s.SelfText,
		FlairText:     s.LinkFlairText,
		IsSelf:        s.IsSelf,
		Permalink:     s.FullPermalink(),
	}
}

func authorOrDeleted(author string) string {
	if author == "" {
		return models.DeletedAuthor
	}
	return author
}
