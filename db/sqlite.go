package db

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/brettboylen/reddit-collector/models"
)

// Database mirrors the tables of collection runs into a SQLite file
type Database struct {
	db    *sql.DB
	mutex sync.RWMutex
	log   *logrus.Logger
}

// NewDatabase creates a new SQLite database connection
func NewDatabase(dbPath string, log *logrus.Logger) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{
		db:  db,
		log: log,
	}

	if err := database.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return database, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.db.Close()
}

// initTables creates the necessary tables if they don't exist.
// Every run gets its own rows keyed by run_id, so repeated runs never overwrite each other.
func (d *Database) initTables() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	query := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		output_prefix TEXT NOT NULL,
		posts_file TEXT NOT NULL,
		comments_file TEXT,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS posts (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		subreddit TEXT NOT NULL,
		search_keyword TEXT NOT NULL,
		post_id TEXT NOT NULL,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		created_utc TIMESTAMP NOT NULL,
		score INTEGER NOT NULL,
		upvote_ratio REAL NOT NULL,
		num_comments INTEGER NOT NULL,
		url TEXT,
		selftext TEXT,
		link_flair_text TEXT,
		is_self BOOLEAN NOT NULL,
		permalink TEXT NOT NULL,
		PRIMARY KEY (run_id, post_id)
	);
	CREATE TABLE IF NOT EXISTS comments (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		post_id TEXT NOT NULL,
		comment_id TEXT NOT NULL,
		author TEXT NOT NULL,
		body TEXT,
		score INTEGER NOT NULL,
		created_utc TIMESTAMP NOT NULL,
		is_submitter BOOLEAN NOT NULL,
		permalink TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(run_id, post_id);
	`

	_, err := d.db.Exec(query)
	return err
}

// SaveRun stores one run with its posts and comments in a single transaction and
// returns the new run id
func (d *Database) SaveRun(summary models.RunSummary, prefix string, posts []models.Post, comments []models.Comment) (int64, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO runs (output_prefix, posts_file, comments_file, started_at, finished_at) VALUES (?, ?, ?, ?, ?)`,
		prefix, summary.PostsFile, summary.CommentsFile, summary.StartTime.UTC(), summary.FinishTime.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	postStmt, err := tx.Prepare(`
	INSERT INTO posts (
		run_id, subreddit, search_keyword, post_id, title, author, created_utc,
		score, upvote_ratio, num_comments, url, selftext, link_flair_text, is_self, permalink
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare post insert: %w", err)
	}
	defer postStmt.Close()

	for _, post := range posts {
		_, err := postStmt.Exec(
			runID, post.Subreddit, post.SearchKeyword, post.ID, post.Title, post.Author,
			post.CreatedAt.UTC(), post.Score, post.UpvoteRatio, post.NumComments, post.URL,
			post.SelfText, post.FlairText, post.IsSelf, post.Permalink,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to save post %s: %w", post.ID, err)
		}
	}

	commentStmt, err := tx.Prepare(`
	INSERT INTO comments (
		run_id, post_id, comment_id, author, body, score, created_utc, is_submitter, permalink
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare comment insert: %w", err)
	}
	defer commentStmt.Close()

	for _, comment := range comments {
		_, err := commentStmt.Exec(
			runID, comment.PostID, comment.ID, comment.Author, comment.Body, comment.Score,
			comment.CreatedAt.UTC(), comment.IsSubmitter, comment.Permalink,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to save comment %s: %w", comment.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}

	d.log.WithFields(logrus.Fields{
		"run_id":   runID,
		"posts":    len(posts),
		"comments": len(comments),
	}).Info("Run mirrored to database")

	return runID, nil
}

// GetPostsByRun returns the posts of one run in insertion order
func (d *Database) GetPostsByRun(runID int64) ([]models.Post, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	query := `
	SELECT subreddit, search_keyword, post_id, title, author, created_utc,
		score, upvote_ratio, num_comments, url, selftext, link_flair_text, is_self, permalink
	FROM posts
	WHERE run_id = ?
	ORDER BY rowid
	`

	rows, err := d.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts for run %d: %w", runID, err)
	}
	defer rows.Close()

	posts := make([]models.Post, 0)
	for rows.Next() {
		var post models.Post
		var flair sql.NullString
		var createdAt time.Time

		err := rows.Scan(
			&post.Subreddit, &post.SearchKeyword, &post.ID, &post.Title, &post.Author,
			&createdAt, &post.Score, &post.UpvoteRatio, &post.NumComments, &post.URL,
			&post.SelfText, &flair, &post.IsSelf, &post.Permalink,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}

		post.CreatedAt = createdAt.UTC()
		if flair.Valid {
			post.FlairText = &flair.String
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return posts, nil
}

// CountComments returns the number of comments stored for a run
func (d *Database) CountComments(runID int64) (int, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM comments WHERE run_id = ?", runID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}

	return count, nil
}
