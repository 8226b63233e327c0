package handler

import (
	"time"

	"github.com/userhub/user-service/internal/core/domain"
	"github.com/userhub/user-service/internal/core/ports"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

type createUserRequest struct {
	Email       string `json:"email"        validate:"required,email,max=254"`
	DisplayName string `json:"display_name" validate:"required,max=100"`
}

type renameUserRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=100"`
}

type listUsersQuery struct {
	Search string `query:"search"`
	SortBy string `query:"sort_by"`
	Order  string `query:"order"   validate:"omitempty,oneof=asc desc"`
	Page   int    `query:"page"`
	Limit  int    `query:"limit"`
}

type userResponse struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	DisplayName    string     `json:"display_name"`
	ExternalAuthID string     `json:"external_auth_id"`
	Role           string     `json:"role"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
	IsDeleted      bool       `json:"is_deleted"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	Links          userLinks  `json:"_links"`
}

type userLinks struct {
	Self string `json:"self"`
}

type listUsersResponse struct {
	Items      []userResponse `json:"items"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}

func toUserResponse(u *domain.User) any {
	return newUserResponse(u)
}

func newUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:             u.ID,
		Email:          u.Email,
		DisplayName:    u.DisplayName,
		ExternalAuthID: u.ExternalAuthID,
		Role:           string(u.Role),
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
		IsDeleted:      u.IsDeleted,
		DeletedAt:      u.DeletedAt,
		Links:          userLinks{Self: "/v1/users/" + u.ID},
	}
}

func toListResponse(r *ports.ListUsersResult) any {
	items := make([]userResponse, len(r.Items))
	for i, u := range r.Items {
		items[i] = newUserResponse(u)
	}
	return listUsersResponse{
		Items:      items,
		Total:      r.Total,
		Page:       r.Page,
		Limit:      r.Limit,
		TotalPages: r.TotalPages,
	}
}
