package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	postPrefix       = "t3_"
	commentPrefix    = "t1_"
	moreChildrenMax  = 100 // ids accepted by one /api/morechildren call
	commentTreeLimit = 500
)

// Comment is a single comment as returned by the Reddit API
type Comment struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ParentID    string  `json:"parent_id"`
	Author      string  `json:"author"`
	Body        string  `json:"body"`
	Score       int     `json:"score"`
	CreatedUTC  float64 `json:"created_utc"`
	IsSubmitter bool    `json:"is_submitter"`
	Permalink   string  `json:"permalink"`
}

// CreatedAt returns the creation time in UTC
func (c Comment) CreatedAt() time.Time {
	return epochToTime(c.CreatedUTC)
}

// FullPermalink returns the absolute permalink
func (c Comment) FullPermalink() string {
	return permalinkBaseURL + c.Permalink
}

// MoreComments is a "load more comments" placeholder
type MoreComments struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ParentID string   `json:"parent_id"`
	Count    int      `json:"count"`
	Children []string `json:"children"`
}

// isContinueThread reports whether the placeholder is a "continue this thread" link,
// which carries no child ids and must be resolved by fetching the parent's subtree.
func (m MoreComments) isContinueThread() bool {
	return len(m.Children) == 0
}

// CommentNode is a comment and its direct replies
type CommentNode struct {
	Comment Comment
	Replies []*CommentNode
}

// CommentTree holds a post's comments as a forest of top-level comments.
// Unresolved placeholders are kept in More until ResolveMore expands them.
type CommentTree struct {
	PostID string
	Roots  []*CommentNode
	More   []MoreComments

	nodes   map[string]*CommentNode
	orphans map[string][]*CommentNode
}

// NewCommentTree creates an empty tree for a post
func NewCommentTree(postID string) *CommentTree {
	return &CommentTree{
		PostID:  postID,
		nodes:   make(map[string]*CommentNode),
		orphans: make(map[string][]*CommentNode),
	}
}

// Add attaches a comment under its parent. Adding a comment that is already
// in the tree returns the existing node. Comments whose parent has not been
// seen yet are held back and attached once the parent arrives.
func (t *CommentTree) Add(c Comment) *CommentNode {
	name := c.Name
	if name == "" {
		name = commentPrefix + c.ID
	}
	if node, ok := t.nodes[name]; ok {
		return node
	}

	node := &CommentNode{Comment: c}
	t.nodes[name] = node

	switch {
	case strings.HasPrefix(c.ParentID, postPrefix) || c.ParentID == "":
		t.Roots = append(t.Roots, node)
	case t.nodes[c.ParentID] != nil:
		parent := t.nodes[c.ParentID]
		parent.Replies = append(parent.Replies, node)
	default:
		t.orphans[c.ParentID] = append(t.orphans[c.ParentID], node)
	}

	if waiting, ok := t.orphans[name]; ok {
		node.Replies = append(node.Replies, waiting...)
		delete(t.orphans, name)
	}

	return node
}

// AddMore records an unresolved placeholder
func (t *CommentTree) AddMore(m MoreComments) {
	t.More = append(t.More, m)
}

// Len returns the number of comments reachable from the post. Replies still
// waiting for their parent are not counted.
func (t *CommentTree) Len() int {
	count := 0
	queue := append([]*CommentNode(nil), t.Roots...)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		count++
		queue = append(queue, node.Replies...)
	}
	return count
}

// TopLevel returns the comments replying directly to the post
func (t *CommentTree) TopLevel() []Comment {
	comments := make([]Comment, 0, len(t.Roots))
	for _, node := range t.Roots {
		comments = append(comments, node.Comment)
	}
	return comments
}

// List returns every comment in the tree, breadth first
func (t *CommentTree) List() []Comment {
	comments := make([]Comment, 0, len(t.nodes))
	queue := append([]*CommentNode(nil), t.Roots...)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		comments = append(comments, node.Comment)
		queue = append(queue, node.Replies...)
	}
	return comments
}

// thing is a generic listing child: a comment (t1), a post (t3) or a placeholder (more)
type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type thingListing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

// commentData adds the polymorphic replies field; reddit sends "" when there are none
type commentData struct {
	Comment
	Replies json.RawMessage `json:"replies"`
}

// addThings walks listing children into the tree, descending into replies
func (t *CommentTree) addThings(things []thing) error {
	for _, th := range things {
		switch th.Kind {
		case "t1":
			var data commentData
			if err := json.Unmarshal(th.Data, &data); err != nil {
				return fmt.Errorf("failed to decode comment: %w", err)
			}
			t.Add(data.Comment)

			replies := bytes.TrimSpace(data.Replies)
			if len(replies) == 0 || replies[0] != '{' {
				continue
			}
			var listing thingListing
			if err := json.Unmarshal(replies, &listing); err != nil {
				return fmt.Errorf("failed to decode replies of %s: %w", data.ID, err)
			}
			if err := t.addThings(listing.Data.Children); err != nil {
				return err
			}
		case "more":
			var more MoreComments
			if err := json.Unmarshal(th.Data, &more); err != nil {
				return fmt.Errorf("failed to decode placeholder: %w", err)
			}
			t.AddMore(more)
		}
	}
	return nil
}

// FetchComments fetches the comment tree of a post. Placeholders are left in
// tree.More; call ResolveMore to expand them.
func (r *RedditAPI) FetchComments(ctx context.Context, postID string) (*CommentTree, error) {
	tree := NewCommentTree(postID)
	if err := r.fetchCommentListing(ctx, tree, ""); err != nil {
		return nil, err
	}

	r.log.WithFields(logrus.Fields{
		"post_id":      postID,
		"comments":     tree.Len(),
		"placeholders": len(tree.More),
	}).Debug("Fetched comment tree")

	return tree, nil
}

// fetchCommentListing loads /comments/{post} into the tree, optionally focused on one comment
func (r *RedditAPI) fetchCommentListing(ctx context.Context, tree *CommentTree, focusCommentID string) error {
	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", commentTreeLimit))
	if focusCommentID != "" {
		params.Set("comment", focusCommentID)
	}

	// the response is a two element array: the post listing, then the comment listing
	var listings []thingListing
	path := "/comments/" + url.PathEscape(tree.PostID)
	if err := r.getJSON(ctx, path, params, &listings); err != nil {
		return fmt.Errorf("fetch comments of %s: %w", tree.PostID, err)
	}
	if len(listings) < 2 {
		return fmt.Errorf("fetch comments of %s: unexpected response with %d listings", tree.PostID, len(listings))
	}

	return tree.addThings(listings[1].Data.Children)
}

// ResolveMore expands every placeholder in the tree, including placeholders
// returned while expanding, until none remain.
func (r *RedditAPI) ResolveMore(ctx context.Context, tree *CommentTree) error {
	requested := make(map[string]bool)

	for len(tree.More) > 0 {
		pending := tree.More
		tree.More = nil

		var ids []string
		for _, more := range pending {
			if more.isContinueThread() {
				if err := r.resolveContinueThread(ctx, tree, more, requested); err != nil {
					return err
				}
				continue
			}
			for _, id := range more.Children {
				if !requested[id] {
					requested[id] = true
					ids = append(ids, id)
				}
			}
		}

		for start := 0; start < len(ids); start += moreChildrenMax {
			end := start + moreChildrenMax
			if end > len(ids) {
				end = len(ids)
			}
			if err := r.fetchMoreChildren(ctx, tree, ids[start:end]); err != nil {
				return err
			}
		}
	}

	return nil
}

// resolveContinueThread loads the subtree below a deep comment
func (r *RedditAPI) resolveContinueThread(ctx context.Context, tree *CommentTree, more MoreComments, requested map[string]bool) error {
	if !strings.HasPrefix(more.ParentID, commentPrefix) {
		return nil
	}
	key := "continue:" + more.ParentID
	if requested[key] {
		return nil
	}
	requested[key] = true

	return r.fetchCommentListing(ctx, tree, strings.TrimPrefix(more.ParentID, commentPrefix))
}

// fetchMoreChildren resolves one batch of placeholder ids through /api/morechildren
func (r *RedditAPI) fetchMoreChildren(ctx context.Context, tree *CommentTree, ids []string) error {
	params := url.Values{}
	params.Set("api_type", "json")
	params.Set("link_id", postPrefix+tree.PostID)
	params.Set("children", strings.Join(ids, ","))
	params.Set("limit_children", "false")

	var resp struct {
		JSON struct {
			Errors [][]interface{} `json:"errors"`
			Data   struct {
				Things []thing `json:"things"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := r.getJSON(ctx, "/api/morechildren", params, &resp); err != nil {
		return fmt.Errorf("expand comments of %s: %w", tree.PostID, err)
	}
	if len(resp.JSON.Errors) > 0 {
		return fmt.Errorf("expand comments of %s: %v", tree.PostID, resp.JSON.Errors)
	}

	r.log.WithFields(logrus.Fields{
		"post_id":   tree.PostID,
		"requested": len(ids),
		"returned":  len(resp.JSON.Data.Things),
	}).Debug("Expanded comment placeholders")

	return tree.addThings(resp.JSON.Data.Things)
}
