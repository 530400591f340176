package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/learnhub/internal/middleware"
	"github.com/hitoshi/learnhub/internal/model"
)

// maxBodyBytes はリクエストボディの上限。フォームとプロフィール編集には十分な大きさ。
const maxBodyBytes = 64 << 10

// userResponse はプロフィールのJSONレスポンス。
type userResponse struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	Image            string    `json:"image"`
	Bio              string    `json:"bio"`
	GitHubUsername   string    `json:"githubUsername"`
	TwitterUsername  string    `json:"twitterUsername"`
	LinkedInUsername string    `json:"linkedinUsername"`
	Website          string    `json:"website"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		Image:            u.Image,
		Bio:              u.Bio,
		GitHubUsername:   u.GitHubUsername,
		TwitterUsername:  u.TwitterUsername,
		LinkedInUsername: u.LinkedInUsername,
		Website:          u.Website,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

// currentUserResponse はGET /auth/meのレスポンス。
type currentUserResponse struct {
	User     userResponse       `json:"user"`
	Progress map[string]float64 `json:"progress"`
	Stats    model.Stats        `json:"stats"`
}

func toCurrentUserResponse(cu *model.CurrentUser) currentUserResponse {
	return currentUserResponse{
		User:     toUserResponse(cu.User),
		Progress: cu.Progress,
		Stats:    cu.Stats,
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// toAuthResult はサインイン処理の結果を統一フォーマットに変換する。
// 失敗時のメッセージはAPIErrorのユーザー向けメッセージのみで、原因の詳細は含めない。
func toAuthResult(userID string, err error) (int, model.AuthResult) {
	if err == nil {
		return http.StatusOK, model.AuthResult{Success: true, UserID: userID}
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("unexpected sign-in error", slog.String("error", err.Error()))
		apiErr = model.NewStoreUnavailableError(err)
	}
	return middleware.StatusCode(apiErr), model.AuthResult{Success: false, Message: apiErr.Message}
}

// isJSONRequest はContent-Typeがapplication/jsonかどうかを返す。
func isJSONRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// decodeJSON はJSONボディをdstに読み込む。未知のフィールドは拒否する。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// formBool はHTMLフォームのチェックボックス値を真偽値として解釈する。
func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	default:
		return false
	}
}
