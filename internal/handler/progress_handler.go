package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/learnhub/internal/middleware"
	"github.com/hitoshi/learnhub/internal/model"
)

// ProgressServiceInterface は進捗ハンドラーが必要とするサービスインターフェース。
type ProgressServiceInterface interface {
	Record(ctx context.Context, userID, skill string, percent float64) (*model.Progress, error)
	Summary(ctx context.Context, userID string) (map[string]float64, model.Stats, error)
}

// ProgressHandler は学習進捗のHTTPハンドラー。
type ProgressHandler struct {
	service ProgressServiceInterface
}

// NewProgressHandler はProgressHandlerを生成する。
func NewProgressHandler(service ProgressServiceInterface) *ProgressHandler {
	return &ProgressHandler{service: service}
}

type progressResponse struct {
	Skill     string    `json:"skill"`
	Percent   float64   `json:"percent"`
	Completed bool      `json:"completed"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type progressSummaryResponse struct {
	Progress map[string]float64 `json:"progress"`
	Stats    model.Stats        `json:"stats"`
}

// recordProgressRequest はPUT /api/progress/{skill}のリクエストボディ。
// percentの省略は0と区別するためポインタで受ける。
// 値は小数第2位に丸めて保存され、レスポンスには丸め後の値が返る。
type recordProgressRequest struct {
	Percent *float64 `json:"percent"`
}

// List は自分の進捗と導出指標を返す。
// GET /api/progress
func (h *ProgressHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	progress, stats, err := h.service.Summary(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progressSummaryResponse{Progress: progress, Stats: stats})
}

// Record はスキルの進捗率を記録する。
// PUT /api/progress/{skill}
func (h *ProgressHandler) Record(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req recordProgressRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Percent == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidProgressError("percent is required"))
		return
	}

	saved, err := h.service.Record(r.Context(), userID, chi.URLParam(r, "skill"), *req.Percent)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{
		Skill:     saved.Skill,
		Percent:   saved.Percent,
		Completed: saved.Completed,
		UpdatedAt: saved.UpdatedAt,
	})
}
