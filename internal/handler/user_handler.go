package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/learnhub/internal/middleware"
	"github.com/hitoshi/learnhub/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetProfile(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (*model.User, error)
	LinkedProviders(ctx context.Context, userID string) ([]string, error)
}

// UserHandler はプロフィールのHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// profileUpdateRequest はPATCH /api/users/meのリクエストボディ。
// 省略したフィールドは変更しない。空文字列はクリアを意味する（nameを除く）。
type profileUpdateRequest struct {
	Name             *string `json:"name"`
	Bio              *string `json:"bio"`
	GitHubUsername   *string `json:"githubUsername"`
	TwitterUsername  *string `json:"twitterUsername"`
	LinkedInUsername *string `json:"linkedinUsername"`
	Website          *string `json:"website"`
}

// GetProfile は自分のプロフィールを返す。
// GET /api/users/me
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// linkedProvidersResponse はGET /api/users/me/providersのレスポンス。
type linkedProvidersResponse struct {
	Providers []string `json:"providers"`
}

// LinkedProviders は自分のアカウントに紐付いたサインイン方法を返す。
// GET /api/users/me/providers
func (h *UserHandler) LinkedProviders(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	providers, err := h.service.LinkedProviders(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, linkedProvidersResponse{Providers: providers})
}

// UpdateProfile は自分のプロフィールを部分更新する。
// PATCH /api/users/me
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req profileUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidProfileError("request body must be a JSON object"))
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), userID, model.ProfileUpdate{
		Name:             req.Name,
		Bio:              req.Bio,
		GitHubUsername:   req.GitHubUsername,
		TwitterUsername:  req.TwitterUsername,
		LinkedInUsername: req.LinkedInUsername,
		Website:          req.Website,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}
