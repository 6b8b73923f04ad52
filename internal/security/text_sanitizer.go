package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は利用者由来・外部IdP由来の文字列をプレーンテキストへ正規化する。
type TextSanitizer interface {
	// PlainText はHTMLタグを全て除去し、連続する空白を1つにまとめた文字列を返す。
	// 文字参照はデコードされる。空入力には空文字列を返す。
	PlainText(raw string) string
}

// textSanitizer はbluemondayのStrictPolicyを用いたTextSanitizerの実装。
// bluemonday.Policyはスレッドセーフである。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// PlainText はHTMLタグを除去したプレーンテキストを返す。
func (s *textSanitizer) PlainText(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	return strings.Join(strings.Fields(html.UnescapeString(stripped)), " ")
}
