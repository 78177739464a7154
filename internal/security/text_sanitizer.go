package security

import "github.com/microcosm-cc/bluemonday"

// TextSanitizerService は表示テキストのサニタイズ機能のインターフェースを定義する。
// 献立の料理名はスプレッドシート側の入力をそのまま運んでくるため、
// 画面へ渡す前にマークアップを一切含まないプレーンテキストへ落とす。
type TextSanitizerService interface {
	// SanitizeText は入力からHTMLタグを全て除去したテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは全てのタグと属性を除去し、テキストのみを通過させる。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText は入力からHTMLタグを全て除去したテキストを返す。
func (s *textSanitizer) SanitizeText(raw string) string {
	return s.policy.Sanitize(raw)
}
