package progress

import (
	"context"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/repository"
)

// skillPattern はスキルキーとして許可する形式（小文字英数字とハイフン）。
var skillPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// Service は進捗の記録と参照を提供する。
type Service struct {
	repo repository.ProgressRepository
	calc Calculator
}

// NewService はServiceを生成する。
func NewService(repo repository.ProgressRepository, calc Calculator) *Service {
	return &Service{repo: repo, calc: calc}
}

// Calculator はServiceが使う換算係数を返す。
func (s *Service) Calculator() Calculator { return s.calc }

// Record はスキルの進捗率を記録する。
// 進捗率は0〜100でなければならず、小数点以下2桁に丸めた値が100のときに完了となる。
func (s *Service) Record(ctx context.Context, userID, skill string, percent float64) (*model.Progress, error) {
	skill = strings.ToLower(strings.TrimSpace(skill))
	if !skillPattern.MatchString(skill) {
		return nil, model.NewInvalidProgressError("skill must be a lowercase key")
	}
	if math.IsNaN(percent) || percent < 0 || percent > 100 {
		return nil, model.NewInvalidProgressError("percent must be between 0 and 100")
	}
	// progress.percentの精度（小数点以下2桁）に揃える
	percent = math.Round(percent*100) / 100

	saved, err := s.repo.Upsert(ctx, &model.Progress{
		UserID:    userID,
		Skill:     skill,
		Percent:   percent,
		Completed: percent == 100,
	})
	if err != nil {
		slog.Error("failed to record progress",
			slog.String("user_id", userID),
			slog.String("skill", skill),
			slog.String("error", err.Error()),
		)
		return nil, model.NewStoreUnavailableError(err)
	}
	return saved, nil
}

// List はユーザーの進捗をスキル名順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Progress, error) {
	records, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}
	return records, nil
}

// Summary はユーザーの進捗マップと導出された指標を返す。
func (s *Service) Summary(ctx context.Context, userID string) (map[string]float64, model.Stats, error) {
	records, err := s.List(ctx, userID)
	if err != nil {
		return nil, model.Stats{}, err
	}
	m := model.ProgressMap(records)
	return m, s.calc.DeriveStats(m), nil
}
