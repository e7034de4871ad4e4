package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brettboylen/reddit-collector/models"
)

// ReadPosts reads a posts file written by Save
func ReadPosts(path string) ([]models.Post, error) {
	rows, err := readCSV(path, PostColumns)
	if err != nil {
		return nil, err
	}

	posts := make([]models.Post, 0, len(rows))
	for i, row := range rows {
		var p models.Post
		var err error

		p.Subreddit = row[0]
		p.SearchKeyword = row[1]
		p.ID = row[2]
		p.Title = row[3]
		p.Author = row[4]
		if p.CreatedAt, err = time.Parse(CellTimestamp, row[5]); err != nil {
			return nil, rowError(path, i, "created_utc", err)
		}
		if p.Score, err = strconv.Atoi(row[6]); err != nil {
			return nil, rowError(path, i, "score", err)
		}
		if p.UpvoteRatio, err = strconv.ParseFloat(row[7], 64); err != nil {
			return nil, rowError(path, i, "upvote_ratio", err)
		}
		if p.NumComments, err = strconv.Atoi(row[8]); err != nil {
			return nil, rowError(path, i, "num_comments", err)
		}
		p.URL = row[9]
		p.SelfText = row[10]
		if row[11] != "" {
			flair := row[11]
			p.FlairText = &flair
		}
		if p.IsSelf, err = strconv.ParseBool(row[12]); err != nil {
			return nil, rowError(path, i, "is_self", err)
		}
		p.Permalink = row[13]

		posts = append(posts, p)
	}

	return posts, nil
}

// ReadComments reads a comments file written by Save
func ReadComments(path string) ([]models.Comment, error) {
	rows, err := readCSV(path, CommentColumns)
	if err != nil {
		return nil, err
	}

	comments := make([]models.Comment, 0, len(rows))
	for i, row := range rows {
		var c models.Comment
		var err error

		c.PostID = row[0]
		c.ID = row[1]
		c.Author = row[2]
		c.Body = row[3]
		if c.Score, err = strconv.Atoi(row[4]); err != nil {
			return nil, rowError(path, i, "score", err)
		}
		if c.CreatedAt, err = time.Parse(CellTimestamp, row[5]); err != nil {
			return nil, rowError(path, i, "created_utc", err)
		}
		if c.IsSubmitter, err = strconv.ParseBool(row[6]); err != nil {
			return nil, rowError(path, i, "is_submitter", err)
		}
		c.Permalink = row[7]

		comments = append(comments, c)
	}

	return comments, nil
}

// readCSV returns the data rows of a file after checking its header
func readCSV(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: missing header row", path)
	}
	for i, name := range header {
		if records[0][i] != name {
			return nil, fmt.Errorf("%s: column %d is %q, want %q", path, i, records[0][i], name)
		}
	}

	return records[1:], nil
}

func rowError(path string, row int, column string, err error) error {
	return fmt.Errorf("%s row %d: invalid %s: %w", path, row+1, column, err)
}
