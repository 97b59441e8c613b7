package models

import "time"

// Post is a feed item. QuotedPost is read-only and assumed acyclic.
type Post struct {
	ID            string    `json:"id"`
	Author        User      `json:"author"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"createdAt"`
	LikesCount    int       `json:"likesCount"`
	CommentsCount int       `json:"commentsCount"`
	SharesCount   int       `json:"sharesCount"`
	RepostsCount  int       `json:"repostsCount"`
	QuotesCount   int       `json:"quotesCount"`
	IsRepost      bool      `json:"isRepost"`
	IsLiked       bool      `json:"isLiked"`
	QuotedPost    *Post     `json:"quotedPost,omitempty"`
	Comments      []Comment `json:"comments,omitempty"`
}

type Comment struct {
	ID        string    `json:"id"`
	Author    User      `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	PostID    string    `json:"postId,omitempty"`
}
