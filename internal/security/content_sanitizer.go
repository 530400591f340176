// Package security はユーザー入力の無害化を提供する。
//
// プロフィールのテキスト項目はHTMLとして解釈されないプレーンテキストとして保存する。
// bluemondayのStrictPolicyで全てのタグを除去し、scriptやstyleの中身も捨てる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー入力からマークアップを取り除くインターフェース。
type TextSanitizer interface {
	// PlainText は全てのHTMLタグを除去し、前後の空白を取り除いた文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	PlainText(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので1つを共有する。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// PlainText は全てのHTMLタグを除去する。
func (s *textSanitizer) PlainText(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
