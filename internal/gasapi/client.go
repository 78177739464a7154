// Package gasapi はスケジュール管理サービスの5つの操作の型付きファサードを提供する。
//
// 各操作はactionパラメータを固定し、transport.Callerへ委譲する。
// どの操作も呼び出し元へpanicを伝播させず、失敗はmodel.APIErrorとして返す。
// 呼び出し元は分類（network / malformed / application / validation）で分岐する。
package gasapi

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/hitoshi/kondate/internal/model"
	"github.com/hitoshi/kondate/internal/security"
	"github.com/hitoshi/kondate/internal/transport"
)

// Service はスケジュール管理サービスの操作のインターフェース。
// ハンドラーとローダーはこのインターフェース（の部分集合）に依存する。
type Service interface {
	// Authenticate はIDとパスワードで認証し、表示名を返す。
	Authenticate(ctx context.Context, id, password string) (string, error)
	// ListSchedule は指定した月の献立行を返す。
	ListSchedule(ctx context.Context, year, month int) ([]model.MenuRow, error)
	// ReadCheckState は指定日のチェック状態を返す。
	ReadCheckState(ctx context.Context, date time.Time, userName string) (bool, error)
	// WriteCheckState は指定日のチェック状態を書き込み、確定値を返す。
	WriteCheckState(ctx context.Context, date time.Time, userName string, checked bool) (bool, error)
	// ReadProfile はユーザーIDから表示名を返す。
	ReadProfile(ctx context.Context, id string) (string, error)
}

// Client はServiceの実装。
type Client struct {
	caller    transport.Caller
	sanitizer security.TextSanitizerService
	logger    *slog.Logger
	encoders  []passwordEncoder
}

// NewClient はClientを生成する。
func NewClient(caller transport.Caller, sanitizer security.TextSanitizerService, logger *slog.Logger) *Client {
	return &Client{
		caller:    caller,
		sanitizer: sanitizer,
		logger:    logger,
		encoders:  passwordEncoders,
	}
}

// Authenticate はIDとパスワードで認証し、表示名を返す。
// パスワードは送信前に可逆エンコードする（password.go参照）。
func (c *Client) Authenticate(ctx context.Context, id, password string) (string, error) {
	encoded, scheme := c.encodePassword(password)

	payload, err := c.call(ctx, map[string]string{
		"action":   "login",
		"id":       id,
		"password": encoded,
		"encoded":  scheme,
	})
	if err != nil {
		return "", err
	}

	userName, ok := payload["userName"].(string)
	if !ok || userName == "" {
		// 認証成功なのに表示名がない応答はそのままセッションに載せられない
		return "", model.NewMalformedResponseError()
	}
	return userName, nil
}

// ListSchedule は指定した月の献立行を返す。
// 日付を解釈できない行は警告ログを出してスキップする。
func (c *Client) ListSchedule(ctx context.Context, year, month int) ([]model.MenuRow, error) {
	payload, err := c.call(ctx, map[string]string{
		"action": "getRecipes",
		"year":   strconv.Itoa(year),
		"month":  strconv.Itoa(month),
	})
	if err != nil {
		return nil, err
	}

	raw, ok := payload["recipes"].([]any)
	if !ok {
		return nil, model.NewMalformedResponseError()
	}

	rows := make([]model.MenuRow, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		row, err := c.parseRow(entry)
		if err != nil {
			c.logger.Warn("献立行の解釈に失敗したためスキップします",
				slog.String("error", err.Error()),
			)
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// ReadCheckState は指定日のチェック状態を返す。
func (c *Client) ReadCheckState(ctx context.Context, date time.Time, userName string) (bool, error) {
	payload, err := c.call(ctx, map[string]string{
		"action":   "getCheckState",
		"date":     model.FormatWireDate(date),
		"userName": userName,
	})
	if err != nil {
		return false, err
	}

	checked, _ := payload["checked"].(bool)
	return checked, nil
}

// WriteCheckState は指定日のチェック状態を書き込み、サーバーが確定した値を返す。
func (c *Client) WriteCheckState(ctx context.Context, date time.Time, userName string, checked bool) (bool, error) {
	payload, err := c.call(ctx, map[string]string{
		"action":   "updateCheck",
		"date":     model.FormatWireDate(date),
		"userName": userName,
		"checked":  strconv.FormatBool(checked),
	})
	if err != nil {
		return false, err
	}

	confirmed, ok := payload["checked"].(bool)
	if !ok {
		// 確定値が読めない応答は書き込んだ値をそのまま確定とする。
		confirmed = checked
	}
	return confirmed, nil
}

// ReadProfile はユーザーIDから表示名を返す。
func (c *Client) ReadProfile(ctx context.Context, id string) (string, error) {
	payload, err := c.call(ctx, map[string]string{
		"action": "getUserData",
		"id":     id,
	})
	if err != nil {
		return "", err
	}

	userName, ok := payload["userName"].(string)
	if !ok || userName == "" {
		return "", model.NewMalformedResponseError()
	}
	return userName, nil
}

// call はtransportを呼び出し、共通応答形（success / error）を検証する。
// 失敗はすべてmodel.APIErrorへ分類して返す。
func (c *Client) call(ctx context.Context, params map[string]string) (map[string]any, error) {
	result := c.caller.Call(ctx, params)
	if !result.OK {
		if result.ErrorMessage == transport.MsgMalformed {
			return nil, model.NewMalformedResponseError()
		}
		return nil, model.NewNetworkFailureError(result.ErrorMessage)
	}

	success, ok := result.Payload["success"].(bool)
	if !ok {
		return nil, model.NewMalformedResponseError()
	}
	if !success {
		message, _ := result.Payload["error"].(string)
		return nil, model.NewApplicationFailureError(message)
	}

	return result.Payload, nil
}

// parseRow はAPIの行表現をMenuRowへ変換する。
// 料理名はスプレッドシート由来の入力であるため、サニタイズしてから保持する。
func (c *Client) parseRow(entry map[string]any) (model.MenuRow, error) {
	dateStr, _ := entry["date"].(string)
	date, err := model.ParseWireDate(dateStr)
	if err != nil {
		return model.MenuRow{}, err
	}

	str := func(key string) string {
		v, _ := entry[key].(string)
		return c.sanitizer.SanitizeText(v)
	}
	editable, _ := entry["isEditable"].(bool)

	return model.MenuRow{
		Date:      date,
		DayOfWeek: str("dayOfWeek"),
		Main:      str("main"),
		Side1:     str("side1"),
		Side2:     str("side2"),
		Soup:      str("soup"),
		Editable:  editable,
	}, nil
}
