package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/reddit-collector/models"
)

const (
	// FilenameTimestamp is the layout embedded in output file names
	FilenameTimestamp = "20060102_150405"
	// CellTimestamp is the layout of timestamp cells
	CellTimestamp = "2006-01-02 15:04:05"
)

// PostColumns is the header row of the posts file
var PostColumns = []string{
	"subreddit", "search_keyword", "post_id", "title", "author", "created_utc",
	"score", "upvote_ratio", "num_comments", "url", "selftext", "link_flair_text",
	"is_self", "permalink",
}

// CommentColumns is the header row of the comments file
var CommentColumns = []string{
	"post_id", "comment_id", "author", "body", "score", "created_utc",
	"is_submitter", "permalink",
}

// Exporter writes collected posts and comments to timestamped CSV files
type Exporter struct {
	dir    string
	prefix string
	now    func() time.Time
	log    *logrus.Logger
}

// NewExporter creates an exporter writing <dir>/<prefix>_{posts,comments}_<timestamp>.csv
func NewExporter(dir, prefix string, log *logrus.Logger) *Exporter {
	if dir == "" {
		dir = "."
	}
	return &Exporter{
		dir:    dir,
		prefix: prefix,
		now:    time.Now,
		log:    log,
	}
}

// Save writes the posts file and, when there are comments, the comments file.
// It returns the paths written; commentsFile is empty when no comments file was written.
func (e *Exporter) Save(posts []models.Post, comments []models.Comment) (postsFile, commentsFile string, err error) {
	timestamp := e.now().Format(FilenameTimestamp)

	postsFile = filepath.Join(e.dir, fmt.Sprintf("%s_posts_%s.csv", e.prefix, timestamp))
	if err := writeCSV(postsFile, PostColumns, postRows(posts)); err != nil {
		return "", "", fmt.Errorf("failed to write posts: %w", err)
	}
	e.log.WithFields(logrus.Fields{
		"file": postsFile,
		"rows": len(posts),
	}).Info("Posts saved")

	if len(comments) == 0 {
		return postsFile, "", nil
	}

	commentsFile = filepath.Join(e.dir, fmt.Sprintf("%s_comments_%s.csv", e.prefix, timestamp))
	if err := writeCSV(commentsFile, CommentColumns, commentRows(comments)); err != nil {
		return postsFile, "", fmt.Errorf("failed to write comments: %w", err)
	}
	e.log.WithFields(logrus.Fields{
		"file": commentsFile,
		"rows": len(comments),
	}).Info("Comments saved")

	return postsFile, commentsFile, nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func postRows(posts []models.Post) [][]string {
	rows := make([][]string, 0, len(posts))
	for _, p := range posts {
		flair := ""
		if p.FlairText != nil {
			flair = *p.FlairText
		}
		rows = append(rows, []string{
			p.Subreddit,
			p.SearchKeyword,
			p.ID,
			p.Title,
			p.Author,
			p.CreatedAt.UTC().Format(CellTimestamp),
			strconv.Itoa(p.Score),
			strconv.FormatFloat(p.UpvoteRatio, 'f', -1, 64),
			strconv.Itoa(p.NumComments),
			p.URL,
			p.SelfText,
			flair,
			strconv.FormatBool(p.IsSelf),
			p.Permalink,
		})
	}
	return rows
}

func commentRows(comments []models.Comment) [][]string {
	rows := make([][]string, 0, len(comments))
	for _, c := range comments {
		rows = append(rows, []string{
			c.PostID,
			c.ID,
			c.Author,
			c.Body,
			strconv.Itoa(c.Score),
			c.CreatedAt.UTC().Format(CellTimestamp),
			strconv.FormatBool(c.IsSubmitter),
			c.Permalink,
		})
	}
	return rows
}
