// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/kondate/internal/model"
	"github.com/hitoshi/kondate/internal/session"
)

// AuthServiceInterface は認証ハンドラーが必要とするリモート操作のインターフェース。
type AuthServiceInterface interface {
	// Authenticate はIDとパスワードで認証し、表示名を返す。
	Authenticate(ctx context.Context, id, password string) (string, error)
	// ReadProfile はユーザーIDから表示名を返す。
	ReadProfile(ctx context.Context, id string) (string, error)
}

// SessionManager は認証ハンドラーが必要とするセッション操作のインターフェース。
// session.Storeの部分集合として定義する。
type SessionManager interface {
	Login(userID, userName string)
	Logout()
	GetIdentity() *model.Identity
	HandleEvent(ev session.LifecycleEvent)
	BeginRedirect()
	EndRedirect()
}

// AuthHandler はログイン関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	sessions SessionManager
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, sessions SessionManager) *AuthHandler {
	return &AuthHandler{
		service:  service,
		sessions: sessions,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

// loginResponse はログイン成功時のレスポンス。
type loginResponse struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// identityResponse は現在のログイン情報のレスポンス。
type identityResponse struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	LoginTime string `json:"loginTime"`
}

// sessionEventRequest はページライフサイクルイベント通知のボディ。
type sessionEventRequest struct {
	Event string `json:"event"`
}

// Login は認証を行い、成功時にセッションを確立する。
// POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if req.ID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationFailureError("id", "IDを入力してください。"))
		return
	}
	if req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationFailureError("password", "パスワードを入力してください。"))
		return
	}

	userName, err := h.service.Authenticate(r.Context(), req.ID, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 画面遷移の間にhidden/unloadイベントでセッションが破棄されないよう、
	// 遷移中フラグを立ててから保存する。
	h.sessions.BeginRedirect()
	h.sessions.Login(req.ID, userName)

	slog.Info("ログインしました", slog.String("user_id", req.ID))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{
		UserID:   req.ID,
		UserName: userName,
	})
}

// Logout はセッションを破棄する。
// POST /api/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout()
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログイン情報を返す。未ログインの場合は401を返す。
// GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	// 遷移先ページの到達とみなし、遷移中フラグを解除する
	h.sessions.EndRedirect()

	identity := h.sessions.GetIdentity()
	if identity == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(identityResponse{
		UserID:    identity.UserID,
		UserName:  identity.UserName,
		LoginTime: identity.LoginTime.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// SessionEvent はページライフサイクルイベントの通知を処理する。
// POST /api/session/event
func (h *AuthHandler) SessionEvent(w http.ResponseWriter, r *http.Request) {
	var req sessionEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	ev, ok := session.ParseLifecycleEvent(req.Event)
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationFailureError("event", "不明なイベントです。"))
		return
	}

	h.sessions.HandleEvent(ev)
	w.WriteHeader(http.StatusNoContent)
}
