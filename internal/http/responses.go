package http

import (
	"time"

	"pixnest/internal/domain"
)

type PostResponse struct {
	ID        int64  `json:"id"`
	OwnerID   int64  `json:"owner_id"`
	ImageURL  string `json:"image_url"`
	Caption   string `json:"caption"`
	CreatedAt string `json:"created_at"`
}

type FeedItemResponse struct {
	PostResponse
	OwnerUsername string `json:"owner_username"`
	OwnerAvatar   string `json:"owner_avatar"`
}

type UserResponse struct {
	ID          int64          `json:"id"`
	Username    string         `json:"username"`
	Email       string         `json:"email,omitempty"`
	FullName    string         `json:"full_name"`
	Description string         `json:"description"`
	AvatarURL   string         `json:"avatar_url"`
	Posts       []PostResponse `json:"posts"`
	CreatedAt   string         `json:"created_at"`
}

func postToResponse(post domain.Post) PostResponse {
	return PostResponse{
		ID:        post.ID,
		OwnerID:   post.OwnerID,
		ImageURL:  post.Image.URL,
		Caption:   post.Caption,
		CreatedAt: post.CreatedAt.Format(time.RFC3339),
	}
}

func feedItemToResponse(item domain.FeedItem) FeedItemResponse {
	return FeedItemResponse{
		PostResponse:  postToResponse(item.Post),
		OwnerUsername: item.OwnerUsername,
		OwnerAvatar:   item.OwnerAvatar,
	}
}

func userToResponse(user domain.User, posts []domain.Post) UserResponse {
	resp := UserResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		FullName:    user.FullName,
		Description: user.Description,
		AvatarURL:   user.AvatarURL(),
		Posts:       make([]PostResponse, len(posts)),
		CreatedAt:   user.CreatedAt.Format(time.RFC3339),
	}
	for i := range posts {
		resp.Posts[i] = postToResponse(posts[i])
	}
	return resp
}
