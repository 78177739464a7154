package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/kondate/internal/middleware"
	"github.com/hitoshi/kondate/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	Logger            *slog.Logger

	// 認証・セッション
	AuthService AuthServiceInterface
	Sessions    SessionManager

	// 献立
	Loader     ScheduleLoaderInterface
	Controller ToggleController
	Table      *model.MenuTable
	States     *model.CheckStates

	// メトリクス
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware → CORSMiddleware → SessionMiddleware
//
// ログイン前に到達する必要のあるルート（/api/login等）はSessionMiddlewareの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.Sessions)
	menuHandler := NewMenuHandler(deps.Loader, deps.Controller, deps.Sessions, deps.Table, deps.States)

	// --- ログイン不要のルート ---

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
		// ライフサイクルイベントはログアウト直前にも届くため認証を要求しない
		r.Post("/session/event", authHandler.SessionEvent)
	})

	// --- ログインが必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Sessions))

		r.Get("/api/menus", menuHandler.ListMenus)
		r.Post("/api/checks", menuHandler.ToggleCheck)
	})

	return r
}
