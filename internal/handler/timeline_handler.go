package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/crossfeed/internal/model"
)

// TimelineServiceInterface はタイムラインハンドラーが必要とするサービスインターフェース。
type TimelineServiceInterface interface {
	// BuildTimeline は統一タイムラインを組み立てて返す。
	BuildTimeline(ctx context.Context) ([]model.UnifiedPost, error)
}

// TimelineHandler は統一タイムラインのHTTPハンドラー。
type TimelineHandler struct {
	service TimelineServiceInterface
}

// NewTimelineHandler はTimelineHandlerを生成する。
func NewTimelineHandler(service TimelineServiceInterface) *TimelineHandler {
	return &TimelineHandler{service: service}
}

// identityResponse はユーザー識別子のAPIレスポンス。
type identityResponse struct {
	Value    string `json:"value"`
	Platform string `json:"platform"`
}

// countsResponse は投稿のエンゲージメント数のAPIレスポンス。
type countsResponse struct {
	Likes   int `json:"likes"`
	Reposts int `json:"reposts"`
	Replies int `json:"replies"`
}

// postResponse は統一投稿のAPIレスポンス。
type postResponse struct {
	ID          string           `json:"id"`
	Platform    string           `json:"platform"`
	Author      identityResponse `json:"author"`
	Content     string           `json:"content"`
	CreatedAt   time.Time        `json:"created_at"`
	Counts      countsResponse   `json:"counts"`
	IsLiked     bool             `json:"is_liked"`
	IsReposted  bool             `json:"is_reposted"`
	InReplyToID string           `json:"in_reply_to_id,omitempty"`
	QuotedID    string           `json:"quoted_id,omitempty"`
	Original    *postResponse    `json:"original,omitempty"`
}

// timelineResponse はタイムラインのAPIレスポンス。
type timelineResponse struct {
	Posts []postResponse `json:"posts"`
}

func toPostResponse(post *model.UnifiedPost) postResponse {
	resp := postResponse{
		ID:       post.ID,
		Platform: string(post.Platform),
		Author: identityResponse{
			Value:    post.Author.Value,
			Platform: string(post.Author.Platform),
		},
		Content:   post.Content,
		CreatedAt: post.CreatedAt,
		Counts: countsResponse{
			Likes:   post.Counts.Likes,
			Reposts: post.Counts.Reposts,
			Replies: post.Counts.Replies,
		},
		IsLiked:     post.IsLiked,
		IsReposted:  post.IsReposted,
		InReplyToID: post.InReplyToID,
		QuotedID:    post.QuotedID,
	}
	if post.Original != nil {
		original := toPostResponse(post.Original)
		resp.Original = &original
	}
	return resp
}

// GetTimeline は統一タイムラインを返す。
// GET /api/timeline
func (h *TimelineHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.BuildTimeline(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := timelineResponse{Posts: make([]postResponse, 0, len(posts))}
	for i := range posts {
		resp.Posts = append(resp.Posts, toPostResponse(&posts[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}
