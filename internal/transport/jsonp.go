// Package transport はリモートエンドポイントへの1回分の論理呼び出しを提供する。
//
// バックエンドはクロスオリジンのPOSTを受け取れないスプレッドシート系の
// スクリプトサービスであるため、呼び出しはGETクエリとJSONP形式の応答で行う。
// 1回の論理呼び出しの内訳（JSONP本試行、タイムアウト、応答不可視フォールバック）は
// 呼び出し元からは見えない。
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/kondate/internal/metrics"
	"github.com/hitoshi/kondate/internal/model"
)

// 呼び出し失敗時にCallResultへ載せるメッセージ。
// gasapi層はこのメッセージでエラー分類を行う。
const (
	MsgTimeout    = "サーバーとの通信がタイムアウトしました。"
	MsgNetwork    = "サーバーとの通信に失敗しました。"
	MsgMalformed  = "サーバーの応答を解釈できませんでした。"
	MsgUnreadable = "サーバーの応答を読み取れませんでした。"
)

// errMalformedBody は応答本文がコールバック呼び出しとして解釈できないことを表す。
// 通信自体は成立しているため、フォールバックの対象にはしない。
var errMalformedBody = errors.New("malformed response body")

// maxResponseBytes は応答本文の読み取り上限。
const maxResponseBytes = 1 << 20

// Caller は1回分の論理的なリモート呼び出しを実行する。
// どの失敗経路でもpanicせず、必ずCallResultとして解決する。
type Caller interface {
	Call(ctx context.Context, params map[string]string) model.CallResult
}

// Config はJSONPCallerの設定。
type Config struct {
	// Endpoint は呼び出し先のURL。
	Endpoint string
	// CallTimeout は1回の論理呼び出し全体のタイムアウト。
	CallTimeout time.Duration
}

// JSONPCaller はJSONP方式のCaller実装。
// 呼び出しごとに一意なコールバック名で受け口を登録し、
// タイムアウトタイマーと応答の競争で解決する。
type JSONPCaller struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
	pending  *pendingCalls
	logger   *slog.Logger
	recorder metrics.CallRecorder
}

// NewJSONPCaller はJSONPCallerを生成する。
// clientにはsecurityパッケージの保護機能付きクライアントを渡す。
func NewJSONPCaller(cfg Config, client *http.Client, logger *slog.Logger, recorder metrics.CallRecorder) *JSONPCaller {
	return &JSONPCaller{
		endpoint: cfg.Endpoint,
		timeout:  cfg.CallTimeout,
		client:   client,
		pending:  newPendingCalls(),
		logger:   logger,
		recorder: recorder,
	}
}

// Call は1回分の論理呼び出しを実行する。
//
//  1. パラメータをクエリ文字列に直列化する（空値は省略）。
//  2. 一意なコールバック名の受け口を登録し、callbackパラメータ付きでGETする。
//  3. タイムアウト到達時は受け口を解除して失敗として解決する。
//     解除後に届いた応答は観測可能な効果を持たない。
//  4. 読み込みエラー時は1回だけ応答不可視のプローブにフォールバックする。
//     プローブは応答を読まないため、到達の確認にしかならない。
//  5. 応答本文がコールバック呼び出し（またはJSONオブジェクト）として
//     解釈できればOK、できなければ形式不正として解決する。
func (c *JSONPCaller) Call(ctx context.Context, params map[string]string) model.CallResult {
	start := time.Now()
	action := params["action"]

	name := newCallbackName()
	ch := c.pending.register(name)

	loadCtx, cancelLoad := context.WithCancel(ctx)
	defer cancelLoad()

	loadErr := make(chan error, 1)
	go c.load(loadCtx, name, params, loadErr)

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case payload := <-ch:
		c.recorder.RecordCallSuccess(action)
		c.recorder.RecordCallLatency(action, time.Since(start))
		return model.CallResult{OK: true, Payload: payload}

	case err := <-loadErr:
		c.pending.deregister(name)
		c.recorder.RecordCallLatency(action, time.Since(start))
		if errors.Is(err, errMalformedBody) {
			c.logger.Warn("応答本文の形式が不正です",
				slog.String("action", action),
			)
			c.recorder.RecordCallFailure(action, "malformed")
			return model.CallResult{ErrorMessage: MsgMalformed}
		}
		// 読み込みエラー: 応答不可視のプローブへ1回だけフォールバックする。
		c.logger.Warn("JSONP読み込みに失敗したためフォールバックします",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		c.recorder.RecordFallback(action)
		return c.fallbackProbe(ctx, action, params)

	case <-timer.C:
		// 受け口を先に解除してから解決する。遅延応答はno-opになる。
		c.pending.deregister(name)
		c.logger.Warn("リモート呼び出しがタイムアウトしました",
			slog.String("action", action),
			slog.Duration("timeout", c.timeout),
		)
		c.recorder.RecordCallFailure(action, "timeout")
		c.recorder.RecordCallLatency(action, time.Since(start))
		return model.CallResult{ErrorMessage: MsgTimeout}

	case <-ctx.Done():
		c.pending.deregister(name)
		c.recorder.RecordCallFailure(action, "network")
		return model.CallResult{ErrorMessage: MsgNetwork}
	}
}

// load はJSONP応答を取得し、本文を解釈して受け口へ配信する。
// 通信・ステータス異常はloadErrへ、形式不正はerrMalformedBodyとして通知する。
func (c *JSONPCaller) load(ctx context.Context, name string, params map[string]string, loadErr chan<- error) {
	reqURL := c.buildURL(params, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		loadErr <- fmt.Errorf("リクエスト作成に失敗: %w", err)
		return
	}

	resp, err := c.client.Do(req)
	if err != nil {
		loadErr <- fmt.Errorf("リクエスト実行に失敗: %w", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		loadErr <- fmt.Errorf("ステータス %d が返されました", resp.StatusCode)
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		loadErr <- fmt.Errorf("応答本文の読み取りに失敗: %w", err)
		return
	}

	payload, err := parseJSONPBody(name, body)
	if err != nil {
		loadErr <- errMalformedBody
		return
	}

	// 受け口が解除済み（タイムアウト後）の場合は何も起きない。
	c.pending.resolve(name, payload)
}

// fallbackProbe は応答不可視のプローブを実行する。
// callbackパラメータを外した同一エンドポイントへのGETで、応答本文は読まずに捨てる。
// 応答を読めない以上、結果は常に失敗だが、リクエスト自体はサーバーへ届く。
func (c *JSONPCaller) fallbackProbe(ctx context.Context, action string, params map[string]string) model.CallResult {
	reqURL := c.buildURL(params, "")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		c.recorder.RecordCallFailure(action, "network")
		return model.CallResult{ErrorMessage: MsgNetwork}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("フォールバックプローブにも失敗しました",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		c.recorder.RecordCallFailure(action, "network")
		return model.CallResult{ErrorMessage: MsgNetwork}
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	resp.Body.Close()

	c.recorder.RecordCallFailure(action, "unreadable")
	return model.CallResult{ErrorMessage: MsgUnreadable}
}

// buildURL はパラメータをクエリ文字列へ直列化したリクエストURLを構築する。
// 空値のパラメータは省略する。callbackNameが空の場合はcallbackパラメータを付けない。
func (c *JSONPCaller) buildURL(params map[string]string, callbackName string) string {
	q := url.Values{}
	for k, v := range params {
		if v == "" {
			continue
		}
		q.Set(k, v)
	}
	if callbackName != "" {
		q.Set("callback", callbackName)
	}

	sep := "?"
	if strings.Contains(c.endpoint, "?") {
		sep = "&"
	}
	return c.endpoint + sep + q.Encode()
}

// parseJSONPBody は応答本文をコールバック呼び出しとして解釈し、
// 中身のJSONオブジェクトを返す。
// callbackパラメータを無視して素のJSONを返す実装もあるため、
// 本文がJSONオブジェクトそのものの場合も受け付ける。
func parseJSONPBody(name string, body []byte) (map[string]any, error) {
	s := strings.TrimSpace(string(body))
	s = strings.TrimSuffix(s, ";")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, name+"(") && strings.HasSuffix(s, ")") {
		s = s[len(name)+1 : len(s)-1]
	} else if !strings.HasPrefix(s, "{") {
		return nil, fmt.Errorf("コールバック呼び出しとして解釈できません")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(s), &payload); err != nil {
		return nil, fmt.Errorf("応答JSONのパースに失敗しました: %w", err)
	}
	if payload == nil {
		return nil, fmt.Errorf("応答がオブジェクトではありません")
	}
	return payload, nil
}
