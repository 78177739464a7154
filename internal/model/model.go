// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"sync"
	"time"
)

// Identity はログイン中のユーザーを表す。
// プロセス内に同時に存在できるIdentityは最大1つ（sessionパッケージが保証する）。
type Identity struct {
	UserID    string
	UserName  string
	LoginTime time.Time
}

// MenuRow は献立表の1日分の行を表す。
// 一度取得した行はイミュータブルとして扱い、Dateで識別する。
type MenuRow struct {
	Date      time.Time // 時刻成分を持たない（現地時間の0時）
	DayOfWeek string
	Main      string
	Side1     string
	Side2     string
	Soup      string
	// Editable がfalseの行はサーバー側のチェック期限を過ぎている。
	// ローカル状態にかかわらず非対話として扱い、書き込みを発行してはならない。
	Editable bool
}

// WireDate は行の日付をAPIの日付表記に変換する。
func (m MenuRow) WireDate() string {
	return FormatWireDate(m.Date)
}

// FormatWireDate は日付をAPIの日付表記（ゼロ埋めなしのYYYY/M/D）に変換する。
func FormatWireDate(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d", t.Year(), int(t.Month()), t.Day())
}

// ParseWireDate はAPIの日付表記をパースし、時刻成分を持たない日付を返す。
func ParseWireDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006/1/2", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("日付の解析に失敗しました: %w", err)
	}
	return t, nil
}

// Midnight は時刻成分を落とした現地時間の日付を返す。
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// CallResult はリモート呼び出し1回分の結果を表すタグ付きユニオン。
// OKがtrueのときのみPayloadが有効で、falseのときのみErrorMessageが有効。
// transport層はどの失敗経路でもpanicせず、必ずこの形で解決する。
type CallResult struct {
	OK           bool
	Payload      map[string]any
	ErrorMessage string
}

// CheckStates は現在ロード中の月のチェック状態（日付→bool）を保持する。
// 現在のIdentityと表示中の月にスコープされ、リロードをまたいで永続化しない。
// 未取得の日付はfalseとして扱う。
// 楽観的更新と再取得の両経路から書き込まれるため、値の上書きは冪等。
type CheckStates struct {
	mu     sync.RWMutex
	states map[string]bool
}

// NewCheckStates は空のCheckStatesを生成する。
func NewCheckStates() *CheckStates {
	return &CheckStates{states: make(map[string]bool)}
}

// Set は日付のチェック状態を設定する。
func (c *CheckStates) Set(date time.Time, checked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[FormatWireDate(date)] = checked
}

// Get は日付のチェック状態を返す。未取得の日付はfalse。
func (c *CheckStates) Get(date time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.states[FormatWireDate(date)]
}

// Reset は全エントリを破棄する。月の切り替え時に呼ぶ。
func (c *CheckStates) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = make(map[string]bool)
}

// MenuTable は現在表示中の月の行を日付表記で引けるようにしたもの。
// チェック切り替え時に対象行（特にEditable）を参照するために使う。
type MenuTable struct {
	mu   sync.RWMutex
	rows map[string]MenuRow
}

// NewMenuTable は空のMenuTableを生成する。
func NewMenuTable() *MenuTable {
	return &MenuTable{rows: make(map[string]MenuRow)}
}

// Put は行を登録する。同じ日付の行は上書きされる。
func (t *MenuTable) Put(row MenuRow) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[row.WireDate()] = row
}

// Get は日付表記で行を返す。
func (t *MenuTable) Get(wireDate string) (MenuRow, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	row, ok := t.rows[wireDate]
	return row, ok
}

// Reset は全行を破棄する。月の切り替え時に呼ぶ。
func (t *MenuTable) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = make(map[string]MenuRow)
}
