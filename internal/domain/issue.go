package domain

import "time"

// RawIssue is an issue as fetched from GitHub, before merging and cleaning
type RawIssue struct {
	ID          int64     `json:"id"`
	Number      int       `json:"number"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Labels      []string  `json:"labels"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	User        string    `json:"user"`
	URL         string    `json:"url"`
	CommentsURL string    `json:"comments_url"`
	Comments    int       `json:"comments"`
}

// RawComment is an issue comment as fetched from GitHub
type RawComment struct {
	IssueNumber int       `json:"issue_number"`
	CommentID   int64     `json:"comment_id"`
	User        string    `json:"user"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
	URL         string    `json:"url"`
}
