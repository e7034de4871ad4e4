package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// SearchParams controls a subreddit keyword search
type SearchParams struct {
	Query      string
	Limit      int
	Sort       string
	TimeFilter string
}

// Submission is a post as returned by a Reddit listing
type Submission struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	Subreddit     string  `json:"subreddit"`
	URL           string  `json:"url"`
	CreatedUTC    float64 `json:"created_utc"`
	Score         int     `json:"score"`
	UpvoteRatio   float64 `json:"upvote_ratio"`
	NumComments   int     `json:"num_comments"`
	SelfText      string  `json:"selftext"`
	LinkFlairText *string `json:"link_flair_text"`
	IsSelf        bool    `json:"is_self"`
	Permalink     string  `json:"permalink"`
}

// CreatedAt returns the creation time in UTC
func (s Submission) CreatedAt() time.Time {
	return epochToTime(s.CreatedUTC)
}

// FullPermalink returns the absolute permalink
func (s Submission) FullPermalink() string {
	return permalinkBaseURL + s.Permalink
}

// submissionListing represents the Reddit API listing structure for posts
type submissionListing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string `json:"after"`
		Before   string `json:"before"`
		Children []struct {
			Kind string     `json:"kind"`
			Data Submission `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// SearchSubreddit searches one subreddit for a keyword, following pagination
// until params.Limit submissions have been read or the listing ends.
// When a later page fails, the submissions read so far are returned with the error.
func (r *RedditAPI) SearchSubreddit(ctx context.Context, subreddit string, params SearchParams) ([]Submission, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = maxPageSize
	}

	results := make([]Submission, 0, limit)
	after := ""

	for len(results) < limit {
		pageSize := limit - len(results)
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}

		query := url.Values{}
		query.Set("q", params.Query)
		query.Set("restrict_sr", "1")
		query.Set("limit", strconv.Itoa(pageSize))
		if params.Sort != "" {
			query.Set("sort", params.Sort)
		}
		if params.TimeFilter != "" {
			query.Set("t", params.TimeFilter)
		}
		if after != "" {
			query.Set("after", after)
		}

		var listing submissionListing
		path := fmt.Sprintf("/r/%s/search", url.PathEscape(subreddit))
		if err := r.getJSON(ctx, path, query, &listing); err != nil {
			return results, fmt.Errorf("search r/%s for %q: %w", subreddit, params.Query, err)
		}

		for _, child := range listing.Data.Children {
			if child.Kind != "t3" {
				continue
			}
			results = append(results, child.Data)
			if len(results) >= limit {
				break
			}
		}

		r.log.WithFields(logrus.Fields{
			"subreddit":  subreddit,
			"query":      params.Query,
			"page_count": len(listing.Data.Children),
			"total":      len(results),
			"next_after": listing.Data.After,
		}).Debug("Fetched search page")

		if listing.Data.After == "" || len(listing.Data.Children) == 0 {
			break
		}
		after = listing.Data.After
	}

	return results, nil
}
