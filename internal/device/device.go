// Package device は実行環境（モバイル/非モバイル）の判定と、
// 環境に依存するポリシー値の導出を提供する。
// transportのタイムアウトとsessionのライフサイクルポリシーは
// 散在する条件分岐ではなく、ここで導出したProfileを構築時に受け取る。
package device

import (
	"strings"
	"time"
)

// mobileMarkers はクライアント識別文字列によるモバイル判定に使う部分文字列。
var mobileMarkers = []string{"Android", "iPhone", "iPad", "iPod", "Mobile"}

// Profile は実行環境から導出したポリシー値の集合。
type Profile struct {
	Mobile bool
}

// Detect はクライアントの識別文字列（User-Agent）からProfileを導出する。
func Detect(userAgent string) Profile {
	for _, m := range mobileMarkers {
		if strings.Contains(userAgent, m) {
			return Profile{Mobile: true}
		}
	}
	return Profile{}
}

// CallTimeout は1回のリモート呼び出しのタイムアウトを返す。
// モバイル回線は遅延が大きいため長めにとる。
func (p Profile) CallTimeout() time.Duration {
	if p.Mobile {
		return 20 * time.Second
	}
	return 15 * time.Second
}

// HideGrace はページ非表示からセッション破棄までの猶予を返す。
// 0は即時破棄を意味する。モバイルではタブ切り替えによる瞬間的な
// 非表示が頻発するため猶予を設ける。
func (p Profile) HideGrace() time.Duration {
	if p.Mobile {
		return 5 * time.Second
	}
	return 0
}
