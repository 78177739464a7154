package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/kondate/internal/model"
	"github.com/hitoshi/kondate/internal/row"
	"github.com/hitoshi/kondate/internal/schedule"
)

// ScheduleLoaderInterface は献立ハンドラーが必要とするローダーのインターフェース。
type ScheduleLoaderInterface interface {
	Load(ctx context.Context, year, month int, userName string, sink schedule.RowSink) error
}

// ToggleController は献立ハンドラーが必要とするチェック切り替えのインターフェース。
type ToggleController interface {
	Toggle(ctx context.Context, view row.View, menuRow model.MenuRow, userName string, checked bool) error
}

// MenuHandler は献立表示とチェック操作のHTTPハンドラー。
type MenuHandler struct {
	loader     ScheduleLoaderInterface
	controller ToggleController
	sessions   SessionManager
	table      *model.MenuTable
	states     *model.CheckStates
}

// NewMenuHandler はMenuHandlerを生成する。
func NewMenuHandler(loader ScheduleLoaderInterface, controller ToggleController, sessions SessionManager, table *model.MenuTable, states *model.CheckStates) *MenuHandler {
	return &MenuHandler{
		loader:     loader,
		controller: controller,
		sessions:   sessions,
		table:      table,
		states:     states,
	}
}

// menuRowLine はNDJSONストリームの行エントリ。
type menuRowLine struct {
	Type      string `json:"type"`
	Date      string `json:"date"`
	DayOfWeek string `json:"dayOfWeek"`
	Main      string `json:"main"`
	Side1     string `json:"side1"`
	Side2     string `json:"side2"`
	Soup      string `json:"soup"`
	Editable  bool   `json:"editable"`
	Checked   bool   `json:"checked"`
}

// focusLine は最初に表示された行へのフォーカス誘導エントリ。
type focusLine struct {
	Type string `json:"type"`
	Date string `json:"date"`
}

// emptyLine は表示できる行が無いことを示すエントリ。
type emptyLine struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// streamSink はロード済みの行をNDJSONとして書き出しつつ、
// 後続のチェック操作のためにテーブルと状態を記録する。
type streamSink struct {
	enc     *json.Encoder
	flusher http.Flusher
	table   *model.MenuTable
	states  *model.CheckStates
}

func (s *streamSink) EmitRow(row model.MenuRow, checked bool) {
	s.table.Put(row)
	s.states.Set(row.Date, checked)
	s.enc.Encode(menuRowLine{
		Type:      "row",
		Date:      row.WireDate(),
		DayOfWeek: row.DayOfWeek,
		Main:      row.Main,
		Side1:     row.Side1,
		Side2:     row.Side2,
		Soup:      row.Soup,
		Editable:  row.Editable,
		Checked:   checked,
	})
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

func (s *streamSink) FocusFirst(row model.MenuRow) {
	s.enc.Encode(focusLine{
		Type: "focus",
		Date: row.WireDate(),
	})
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

// ListMenus は指定月の献立をNDJSONで段階的に配信する。
// GET /api/menus?year=2025&month=9
func (h *MenuHandler) ListMenus(w http.ResponseWriter, r *http.Request) {
	// スケジュール画面の到達とみなし、遷移中フラグを解除する
	h.sessions.EndRedirect()

	identity := h.sessions.GetIdentity()
	if identity == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	year, month, apiErr := parseYearMonth(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	// 月替わりのロードでは前月の行を参照させない
	h.table.Reset()
	h.states.Reset()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-store")

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	sink := &streamSink{
		enc:     enc,
		flusher: flusher,
		table:   h.table,
		states:  h.states,
	}

	if err := h.loader.Load(r.Context(), year, month, identity.UserName, sink); err != nil {
		// ストリーム開始後はステータスを変更できないため、空状態の行で通知する
		enc.Encode(emptyLine{
			Type:    "empty",
			Message: errorMessageOf(err),
		})
		if flusher != nil {
			flusher.Flush()
		}
		return
	}
}

// checkRequest はチェック切り替えリクエストのボディ。
type checkRequest struct {
	Date    string `json:"date"`
	Checked bool   `json:"checked"`
}

// checkResponse はチェック切り替え成功時のレスポンス。
type checkResponse struct {
	Success bool   `json:"success"`
	Date    string `json:"date"`
	Checked bool   `json:"checked"`
	Message string `json:"message"`
}

// responseView はrow.Viewの実装。1回の切り替え操作の最終的な
// 表示状態を記録し、HTTPレスポンスへ変換する。
type responseView struct {
	checked bool
	message string
}

func (v *responseView) SetChecked(checked bool)        { v.checked = checked }
func (v *responseView) SetControlEnabled(enabled bool) {}
func (v *responseView) ShowSuccess(message string)     { v.message = message }
func (v *responseView) ShowError(message string)       { v.message = message }

// ToggleCheck は指定行の利用チェックを切り替える。
// POST /api/checks
func (h *MenuHandler) ToggleCheck(w http.ResponseWriter, r *http.Request) {
	identity := h.sessions.GetIdentity()
	if identity == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}
	if req.Date == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationFailureError("date", "日付を指定してください。"))
		return
	}

	menuRow, ok := h.table.Get(req.Date)
	if !ok {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewMenuNotFoundError(req.Date))
		return
	}

	view := &responseView{}
	if err := h.controller.Toggle(r.Context(), view, menuRow, identity.UserName, req.Checked); err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Info("利用チェックを切り替えました",
		slog.String("date", req.Date),
		slog.Bool("checked", view.checked),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(checkResponse{
		Success: true,
		Date:    req.Date,
		Checked: view.checked,
		Message: view.message,
	})
}

// parseYearMonth はクエリパラメータから年月を取り出す。
// 省略時は現在の年月を使う。エラーには不正だったパラメータのフィールド名を載せる。
func parseYearMonth(r *http.Request) (int, int, *model.APIError) {
	now := time.Now()
	year := now.Year()
	month := int(now.Month())

	if v := r.URL.Query().Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 2000 || n > 2100 {
			return 0, 0, model.NewValidationFailureError("year", "年の指定が不正です。")
		}
		year = n
	}
	if v := r.URL.Query().Get("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 12 {
			return 0, 0, model.NewValidationFailureError("month", "月の指定が不正です。")
		}
		month = n
	}
	return year, month, nil
}
