// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/kondate/internal/config"
	"github.com/hitoshi/kondate/internal/device"
	"github.com/hitoshi/kondate/internal/gasapi"
	"github.com/hitoshi/kondate/internal/handler"
	"github.com/hitoshi/kondate/internal/logger"
	"github.com/hitoshi/kondate/internal/metrics"
	"github.com/hitoshi/kondate/internal/model"
	"github.com/hitoshi/kondate/internal/row"
	"github.com/hitoshi/kondate/internal/schedule"
	"github.com/hitoshi/kondate/internal/security"
	"github.com/hitoshi/kondate/internal/session"
	"github.com/hitoshi/kondate/internal/transport"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	return runServe(cfg)
}

// runServe はAPIサーバーモードで起動する。
// リモートエンドポイントを検証し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. リモートエンドポイントの検証
	guard := security.NewOutboundGuard()
	if err := guard.ValidateEndpoint(cfg.GASAPIURL); err != nil {
		return fmt.Errorf("invalid GAS endpoint: %w", err)
	}

	// 2. デバイスポリシーの導出
	profile := device.Detect(cfg.UserAgent)
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = profile.CallTimeout()
	}

	slog.Info("device profile resolved",
		slog.Bool("mobile", profile.Mobile),
		slog.Duration("call_timeout", callTimeout),
		slog.Duration("hide_grace", profile.HideGrace()),
	)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. トランスポートとリモートサービスの初期化
	// SafeClient自体のタイムアウトは論理呼び出しのタイムアウトより長めに取り、
	// 打ち切りの判定をトランスポート層に寄せる
	httpClient := guard.NewSafeClient(callTimeout + 5*time.Second)
	caller := transport.NewJSONPCaller(transport.Config{
		Endpoint:    cfg.GASAPIURL,
		CallTimeout: callTimeout,
	}, httpClient, slog.Default(), collector)

	sanitizer := security.NewTextSanitizer()
	gasClient := gasapi.NewClient(caller, sanitizer, slog.Default())

	// 5. セッションストアの初期化
	storage := session.NewFileStorage(cfg.SessionFile)
	sessions := session.NewStore(storage, session.Policy{
		HideGrace: profile.HideGrace(),
	}, cfg.SessionMaxAge, slog.Default())

	// 6. ローダーとコントローラの初期化
	loader := schedule.NewLoader(gasClient, slog.Default(), collector, schedule.Config{
		PrefetchParallel: cfg.PrefetchParallel,
		FetchInterval:    cfg.CheckFetchInterval,
	})

	table := model.NewMenuTable()
	states := model.NewCheckStates()
	controller := row.NewController(gasClient, states, slog.Default())

	// 7. ルーターの構築
	deps := &handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Logger:            slog.Default(),

		AuthService: gasClient,
		Sessions:    sessions,

		Loader:     loader,
		Controller: controller,
		Table:      table,
		States:     states,

		MetricsHandler: metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
		// /api/menus はNDJSONストリーミングのため、書き込みタイムアウトは
		// 月全体のロード時間を見込んで長めに取る
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	// プロセス終了はページ破棄と同等に扱い、セッションを破棄する
	sessions.HandleEvent(session.EventTerminate)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
