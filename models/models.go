package models

import (
	"time"
)

// DeletedAuthor is recorded when the author account no longer exists
const DeletedAuthor = "[deleted]"

// Post represents a Reddit post matched by a keyword search
type Post struct {
	Subreddit     string    `json:"subreddit"`
	SearchKeyword string    `json:"search_keyword"`
	ID            string    `json:"post_id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	CreatedAt     time.Time `json:"created_utc"`
	Score         int       `json:"score"`
	UpvoteRatio   float64   `json:"upvote_ratio"`
	NumComments   int       `json:"num_comments"`
	URL           string    `json:"url"`
	SelfText      string    `json:"selftext"`
	FlairText     *string   `json:"link_flair_text"`
	IsSelf        bool      `json:"is_self"`
	Permalink     string    `json:"permalink"`
}

// Comment represents a single comment collected from a post
type Comment struct {
	PostID      string    `json:"post_id"`
	ID          string    `json:"comment_id"`
	Author      string    `json:"author"`
	Body        string    `json:"body"`
	Score       int       `json:"score"`
	CreatedAt   time.Time `json:"created_utc"`
	IsSubmitter bool      `json:"is_submitter"`
	Permalink   string    `json:"permalink"`
}

// RunSummary describes the outcome of one collection run
type RunSummary struct {
	TotalPosts    int       `json:"total_posts"`
	TotalComments int       `json:"total_comments"`
	Failures      int       `json:"failures"`
	PostsFile     string    `json:"posts_file"`
	CommentsFile  string    `json:"comments_file,omitempty"`
	StartTime     time.Time `json:"start_time"`
	FinishTime    time.Time `json:"finish_time"`
}
