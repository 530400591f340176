// Package progress はスキル別の学習進捗と、そこから導出されるXP・レベルを扱う。
package progress

import (
	"math"

	"github.com/hitoshi/learnhub/internal/model"
)

// 既定の換算係数。進捗1%あたり10XP、1000XPごとに1レベル上がる。
const (
	DefaultXPPerPercent = 10
	DefaultXPPerLevel   = 1000
)

// Calculator は進捗率からXPとレベルを導出する。
type Calculator struct {
	XPPerPercent float64
	XPPerLevel   int
}

// DefaultCalculator は既定の係数を持つCalculatorを返す。
func DefaultCalculator() Calculator {
	return Calculator{XPPerPercent: DefaultXPPerPercent, XPPerLevel: DefaultXPPerLevel}
}

// DeriveStats は進捗率の合計からXPとレベルを計算する。
//
//	xp    = floor(sum(percent) * XPPerPercent)
//	level = floor(xp / XPPerLevel) + 1
//
// 副作用はなく、空の入力に対しては {0, 1} を返す。
// 入力値の範囲は検査しない（書き込み時にService.Recordが保証する）。
// 進捗率は小数第2位までで保存されるため、合計は1/100%単位の整数で取る。
// 0.7+0.1のような値でも二進小数の誤差で1XP落ちることはない。
func (c Calculator) DeriveStats(progress map[string]float64) model.Stats {
	var hundredths int64
	for _, percent := range progress {
		hundredths += int64(math.Round(percent * 100))
	}

	xp := int(math.Floor(float64(hundredths) * c.XPPerPercent / 100))
	perLevel := c.XPPerLevel
	if perLevel <= 0 {
		perLevel = DefaultXPPerLevel
	}
	level := int(math.Floor(float64(xp)/float64(perLevel))) + 1

	return model.Stats{XP: xp, Level: level}
}
