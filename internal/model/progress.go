package model

import "time"

// Progress はユーザーのスキルごとの学習進捗を表す。
// Percentは0〜100の範囲で、書き込み時に検証される。
// 保存は小数第2位まで（NUMERIC(5,2)）で、12.3456は12.35として読み出される。
type Progress struct {
	UserID    string
	Skill     string
	Percent   float64
	Completed bool
	UpdatedAt time.Time
}

// Stats は進捗から導出されるゲーミフィケーション指標。
type Stats struct {
	XP    int `json:"xp"`
	Level int `json:"level"`
}

// CurrentUser はリクエストごとに解決される「現在のユーザー」の合成ビュー。
type CurrentUser struct {
	User     *User
	Progress map[string]float64
	Stats    Stats
}

// ProgressMap は進捗レコードをスキル名→進捗率のマップに変換する。
// 同一スキルが複数ある場合は後勝ち。
func ProgressMap(records []*Progress) map[string]float64 {
	m := make(map[string]float64, len(records))
	for _, r := range records {
		m[r.Skill] = r.Percent
	}
	return m
}
