package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/kondate/internal/model"
)

// LifecycleEvent はページから届くライフサイクル通知。
type LifecycleEvent string

const (
	// EventHidden はページが非表示になったことを表す（タブ切り替え・最小化）。
	EventHidden LifecycleEvent = "hidden"
	// EventVisible はページが再び表示されたことを表す。
	EventVisible LifecycleEvent = "visible"
	// EventUnload はページ離脱・ナビゲーションを表す。
	EventUnload LifecycleEvent = "unload"
	// EventTerminate はアプリ終了の確定通知を表す。単なる非表示と区別される。
	EventTerminate LifecycleEvent = "terminate"
)

// ParseLifecycleEvent は文字列をLifecycleEventへ変換する。
func ParseLifecycleEvent(s string) (LifecycleEvent, bool) {
	switch LifecycleEvent(s) {
	case EventHidden, EventVisible, EventUnload, EventTerminate:
		return LifecycleEvent(s), true
	default:
		return "", false
	}
}

// Policy はセッション破棄のライフサイクルポリシー。
// 構築時にdevice.Profileから導出した値を渡す（分岐の散在を避ける）。
type Policy struct {
	// HideGrace はEventHiddenから破棄までの猶予。0は即時破棄。
	HideGrace time.Duration
}

// Store はプロセス全体で1つのログインセッションを管理する。
// 同時に保持できるIdentityは高々1つ。
// 有効期限の検査はGetIdentityの副作用として行う。
type Store struct {
	mu      sync.Mutex
	storage Storage
	policy  Policy
	maxAge  time.Duration
	logger  *slog.Logger
	now     func() time.Time

	identity    *model.Identity
	redirecting bool
	graceTimer  *time.Timer
}

// NewStore はStoreを生成する。maxAgeはセッションの有効期間（通常24時間）。
func NewStore(storage Storage, policy Policy, maxAge time.Duration, logger *slog.Logger) *Store {
	return &Store{
		storage: storage,
		policy:  policy,
		maxAge:  maxAge,
		logger:  logger,
		now:     time.Now,
	}
}

// Login は認証成功後のIdentityを現在時刻で保存する。
func (s *Store) Login(userID, userName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.identity = &model.Identity{
		UserID:    userID,
		UserName:  userName,
		LoginTime: now,
	}

	rec := &Record{
		UserID:    userID,
		UserName:  userName,
		LoginTime: now.Format(time.RFC3339),
	}
	if err := s.storage.Save(rec); err != nil {
		s.logger.Error("セッションレコードの保存に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("ログインしました", slog.String("user_id", userID))
}

// Logout はセッションを明示的に破棄する。
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked("logout")
}

// GetIdentity は現在のIdentityを返す。
// 有効期限（maxAge超過）の検査を副作用として行い、
// 期限切れの場合はストレージごと破棄してnilを返す。
func (s *Store) GetIdentity() *model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity == nil {
		s.loadLocked()
	}
	if s.identity == nil {
		return nil
	}

	if s.now().Sub(s.identity.LoginTime) > s.maxAge {
		s.clearLocked("expired")
		return nil
	}

	identity := *s.identity
	return &identity
}

// HandleEvent はページのライフサイクル通知を処理する。
// リダイレクト中は破棄トリガーを抑止する（ログイン直後の遷移で
// 作ったばかりのセッションを壊さないため）。
func (s *Store) HandleEvent(ev LifecycleEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.redirecting && ev != EventVisible {
		s.logger.Info("リダイレクト中のためライフサイクル通知を無視します",
			slog.String("event", string(ev)),
		)
		return
	}

	switch ev {
	case EventHidden:
		if s.policy.HideGrace <= 0 {
			s.clearLocked("page hidden")
			return
		}
		// 猶予タイマーを開始する。再表示でキャンセルされる。
		s.stopGraceTimerLocked()
		s.graceTimer = time.AfterFunc(s.policy.HideGrace, s.onGraceExpired)
		s.logger.Info("非表示の猶予タイマーを開始しました",
			slog.Duration("grace", s.policy.HideGrace),
		)

	case EventVisible:
		s.stopGraceTimerLocked()

	case EventUnload, EventTerminate:
		s.clearLocked(string(ev))
	}
}

// BeginRedirect はプログラムによる画面遷移の開始を宣言し、
// 遷移中に届く破棄トリガーを抑止する。
func (s *Store) BeginRedirect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirecting = true
}

// EndRedirect は画面遷移の完了を宣言し、抑止を解除する。
func (s *Store) EndRedirect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirecting = false
}

// onGraceExpired は猶予タイマー満了時にセッションを破棄する。
func (s *Store) onGraceExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 満了とキャンセルの競合: タイマーが既に破棄されていれば何もしない。
	if s.graceTimer == nil || s.redirecting {
		return
	}
	s.graceTimer = nil
	s.clearLocked("hide grace expired")
}

// loadLocked はストレージからレコードを読み込みメモリへ反映する。
// 解析できないレコードは破棄する。
func (s *Store) loadLocked() {
	rec, err := s.storage.Load()
	if err != nil {
		s.logger.Warn("セッションレコードを読み込めないため破棄します",
			slog.String("error", err.Error()),
		)
		s.clearLocked("corrupt record")
		return
	}
	if rec == nil {
		return
	}

	loginTime, err := time.Parse(time.RFC3339, rec.LoginTime)
	if err != nil {
		s.logger.Warn("セッションレコードの時刻を解釈できないため破棄します",
			slog.String("login_time", rec.LoginTime),
		)
		s.clearLocked("corrupt record")
		return
	}

	s.identity = &model.Identity{
		UserID:    rec.UserID,
		UserName:  rec.UserName,
		LoginTime: loginTime,
	}
}

// clearLocked はIdentityとストレージのレコードを破棄する。
func (s *Store) clearLocked(reason string) {
	s.stopGraceTimerLocked()

	if s.identity != nil {
		s.logger.Info("セッションを破棄しました",
			slog.String("user_id", s.identity.UserID),
			slog.String("reason", reason),
		)
	}
	s.identity = nil

	if err := s.storage.Clear(); err != nil {
		s.logger.Error("セッションレコードの削除に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// stopGraceTimerLocked は進行中の猶予タイマーを止める。
func (s *Store) stopGraceTimerLocked() {
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
}
