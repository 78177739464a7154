package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/kondate/internal/model"
	"github.com/hitoshi/kondate/internal/session"
)

// fakeAuthService はAuthServiceInterfaceのフェイク。
type fakeAuthService struct {
	userName string
	authErr  error
}

func (f *fakeAuthService) Authenticate(ctx context.Context, id, password string) (string, error) {
	if f.authErr != nil {
		return "", f.authErr
	}
	return f.userName, nil
}

func (f *fakeAuthService) ReadProfile(ctx context.Context, id string) (string, error) {
	return f.userName, nil
}

// fakeSessionManager はSessionManagerのフェイク。操作履歴を記録する。
type fakeSessionManager struct {
	identity *model.Identity
	ops      []string
	events   []session.LifecycleEvent
}

func (f *fakeSessionManager) Login(userID, userName string) {
	f.ops = append(f.ops, "login")
	f.identity = &model.Identity{UserID: userID, UserName: userName, LoginTime: time.Now()}
}

func (f *fakeSessionManager) Logout() {
	f.ops = append(f.ops, "logout")
	f.identity = nil
}

func (f *fakeSessionManager) GetIdentity() *model.Identity {
	return f.identity
}

func (f *fakeSessionManager) HandleEvent(ev session.LifecycleEvent) {
	f.events = append(f.events, ev)
}

func (f *fakeSessionManager) BeginRedirect() { f.ops = append(f.ops, "beginRedirect") }
func (f *fakeSessionManager) EndRedirect()   { f.ops = append(f.ops, "endRedirect") }

func TestLogin_Success(t *testing.T) {
	sessions := &fakeSessionManager{}
	h := NewAuthHandler(&fakeAuthService{userName: "太郎"}, sessions)

	body := strings.NewReader(`{"id":"user1","password":"pass123"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/login", body)
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp["userName"] != "太郎" {
		t.Errorf("userName = %q", resp["userName"])
	}

	// 遷移中フラグを立ててから保存する順序
	want := []string{"beginRedirect", "login"}
	if len(sessions.ops) != 2 || sessions.ops[0] != want[0] || sessions.ops[1] != want[1] {
		t.Errorf("ops = %v, want %v", sessions.ops, want)
	}
}

func TestLogin_MissingID(t *testing.T) {
	sessions := &fakeSessionManager{}
	h := NewAuthHandler(&fakeAuthService{userName: "太郎"}, sessions)

	body := strings.NewReader(`{"id":"","password":"pass123"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/login", body)
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var resp apiErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	// フォーカスすべきフィールドを知らせる
	if resp.Field != "id" {
		t.Errorf("Field = %q, want id", resp.Field)
	}
	if len(sessions.ops) != 0 {
		t.Errorf("no session operations expected, got %v", sessions.ops)
	}
}

func TestLogin_MissingPassword(t *testing.T) {
	h := NewAuthHandler(&fakeAuthService{}, &fakeSessionManager{})

	body := strings.NewReader(`{"id":"user1","password":""}`)
	req := httptest.NewRequest(http.MethodPost, "/api/login", body)
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var resp apiErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Field != "password" {
		t.Errorf("Field = %q, want password", resp.Field)
	}
}

func TestLogin_AuthFailure(t *testing.T) {
	sessions := &fakeSessionManager{}
	h := NewAuthHandler(&fakeAuthService{
		authErr: model.NewApplicationFailureError("IDまたはパスワードが違います"),
	}, sessions)

	body := strings.NewReader(`{"id":"user1","password":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/login", body)
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if len(sessions.ops) != 0 {
		t.Errorf("failed login should not touch the session, ops = %v", sessions.ops)
	}
}

func TestLogin_NetworkFailureReturns502(t *testing.T) {
	h := NewAuthHandler(&fakeAuthService{
		authErr: model.NewNetworkFailureError("サーバーとの通信がタイムアウトしました。"),
	}, &fakeSessionManager{})

	body := strings.NewReader(`{"id":"user1","password":"pass123"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/login", body)
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestLogout_ClearsSession(t *testing.T) {
	sessions := &fakeSessionManager{identity: &model.Identity{UserID: "user1"}}
	h := NewAuthHandler(&fakeAuthService{}, sessions)

	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if sessions.identity != nil {
		t.Error("session should be cleared")
	}
}

func TestMe_Unauthorized(t *testing.T) {
	h := NewAuthHandler(&fakeAuthService{}, &fakeSessionManager{})

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestMe_ReturnsIdentityAndEndsRedirect(t *testing.T) {
	sessions := &fakeSessionManager{identity: &model.Identity{
		UserID:    "user1",
		UserName:  "太郎",
		LoginTime: time.Date(2025, 9, 10, 8, 0, 0, 0, time.Local),
	}}
	h := NewAuthHandler(&fakeAuthService{}, sessions)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp["userId"] != "user1" || resp["userName"] != "太郎" {
		t.Errorf("resp = %v", resp)
	}

	// 到達確認で遷移中フラグが解除される
	if len(sessions.ops) != 1 || sessions.ops[0] != "endRedirect" {
		t.Errorf("ops = %v, want [endRedirect]", sessions.ops)
	}
}

func TestSessionEvent_ForwardsToStore(t *testing.T) {
	sessions := &fakeSessionManager{}
	h := NewAuthHandler(&fakeAuthService{}, sessions)

	body := strings.NewReader(`{"event":"hidden"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/session/event", body)
	rec := httptest.NewRecorder()
	h.SessionEvent(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(sessions.events) != 1 || sessions.events[0] != session.EventHidden {
		t.Errorf("events = %v", sessions.events)
	}
}

func TestSessionEvent_UnknownEvent(t *testing.T) {
	sessions := &fakeSessionManager{}
	h := NewAuthHandler(&fakeAuthService{}, sessions)

	body := strings.NewReader(`{"event":"reload"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/session/event", body)
	rec := httptest.NewRecorder()
	h.SessionEvent(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(sessions.events) != 0 {
		t.Errorf("unknown event should not reach the store, got %v", sessions.events)
	}
}
