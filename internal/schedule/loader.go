// Package schedule は月間献立の段階的ロードを提供する。
//
// 行は一括ではなく、準備できたものから表示側のコールバックへ順次渡す。
// 初日（今日）の行を最速で操作可能にしつつ、バックエンドへの同時負荷を
// 抑えるため、ロードは2フェーズで行う:
//
//   - フェーズA（上限付き並列）: 先頭min(3, N)行のチェック状態を同時に取得し、
//     全件の完了を待ってから日付昇順で送出する。
//   - フェーズB（逐次）: 残りの行を1件ずつ、取得間隔を空けながら取得・送出する。
//
// どちらのフェーズでも個別行の取得失敗はchecked=falseへの劣化に留め、
// ロード全体を中断しない。
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/kondate/internal/metrics"
	"github.com/hitoshi/kondate/internal/model"
)

// MenuService はローダーが必要とするリモート操作のインターフェース。
type MenuService interface {
	ListSchedule(ctx context.Context, year, month int) ([]model.MenuRow, error)
	ReadCheckState(ctx context.Context, date time.Time, userName string) (bool, error)
}

// RowSink はロード済みの行を受け取る表示側のコールバック。
type RowSink interface {
	// EmitRow は1行分の献立とチェック状態を受け取る。
	// 呼び出し順は日付昇順であることが保証される。
	EmitRow(row model.MenuRow, checked bool)
	// FocusFirst は最初に操作可能になった行へのスクロール・フォーカス誘導。
	// 1回のロードにつき最大1回、最初の送出の直後に呼ばれる。
	FocusFirst(row model.MenuRow)
}

// Config はローダーの設定。
type Config struct {
	// PrefetchParallel はフェーズAの同時取得数の上限。
	PrefetchParallel int
	// FetchInterval はフェーズBの取得間隔。
	FetchInterval time.Duration
	// Today は基準日を返す。未設定の場合はtime.Nowを使う。テスト用に差し替え可能。
	Today func() time.Time
}

// Loader は月間献立の段階的ロードを実行する。
type Loader struct {
	svc      MenuService
	logger   *slog.Logger
	recorder metrics.CallRecorder
	cfg      Config
}

// NewLoader はLoaderを生成する。
func NewLoader(svc MenuService, logger *slog.Logger, recorder metrics.CallRecorder, cfg Config) *Loader {
	if cfg.PrefetchParallel <= 0 {
		cfg.PrefetchParallel = 3
	}
	if cfg.FetchInterval <= 0 {
		cfg.FetchInterval = 100 * time.Millisecond
	}
	if cfg.Today == nil {
		cfg.Today = time.Now
	}
	return &Loader{
		svc:      svc,
		logger:   logger,
		recorder: recorder,
		cfg:      cfg,
	}
}

// Load は指定した月の行をロードし、sinkへ順次送出する。
//
// 今日より前の行は送出しない。一覧の取得に失敗した場合はエラーを返し、
// 呼び出し元が空状態を表示する。フィルタ後に行が無い場合はエラーなしで
// 何も送出しない。
func (l *Loader) Load(ctx context.Context, year, month int, userName string, sink RowSink) error {
	rows, err := l.svc.ListSchedule(ctx, year, month)
	if err != nil {
		l.logger.Error("献立一覧の取得に失敗しました",
			slog.Int("year", year),
			slog.Int("month", month),
			slog.String("error", err.Error()),
		)
		return err
	}

	today := model.Midnight(l.cfg.Today())
	upcoming := make([]model.MenuRow, 0, len(rows))
	for _, row := range rows {
		if !row.Date.Before(today) {
			upcoming = append(upcoming, row)
		}
	}
	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].Date.Before(upcoming[j].Date)
	})

	l.logger.Info("献立をロードします",
		slog.Int("year", year),
		slog.Int("month", month),
		slog.Int("total", len(rows)),
		slog.Int("upcoming", len(upcoming)),
	)

	if len(upcoming) == 0 {
		return nil
	}

	// フェーズA: 先頭行を並列取得し、全件の完了を待ってから日付順に送出する。
	head := min(l.cfg.PrefetchParallel, len(upcoming))
	checked := make([]bool, head)

	var wg sync.WaitGroup
	for i := 0; i < head; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			checked[i] = l.fetchChecked(ctx, upcoming[i], userName)
		}(i)
	}
	wg.Wait()

	// 完了順ではなく日付昇順で送出する。
	for i := 0; i < head; i++ {
		sink.EmitRow(upcoming[i], checked[i])
		l.recorder.RecordRowEmitted("parallel")
		if i == 0 {
			sink.FocusFirst(upcoming[0])
		}
	}

	// フェーズB: 残りを逐次取得する。取得のたびに間隔を空けることで
	// バックエンドへの負荷を粗く絞る。
	limiter := rate.NewLimiter(rate.Every(l.cfg.FetchInterval), 1)
	limiter.Allow() // 初期トークンを消費し、最初の取得にも間隔を課す

	for _, row := range upcoming[head:] {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("ロードが中断されました: %w", err)
		}
		sink.EmitRow(row, l.fetchChecked(ctx, row, userName))
		l.recorder.RecordRowEmitted("sequential")
	}

	return nil
}

// fetchChecked は1行分のチェック状態を取得する。
// 失敗した場合はfalseへ劣化させ、ロードは継続する。
func (l *Loader) fetchChecked(ctx context.Context, row model.MenuRow, userName string) bool {
	checked, err := l.svc.ReadCheckState(ctx, row.Date, userName)
	if err != nil {
		l.logger.Warn("チェック状態の取得に失敗したためfalseとして扱います",
			slog.String("date", row.WireDate()),
			slog.String("error", err.Error()),
		)
		l.recorder.RecordRowDegraded()
		return false
	}
	return checked
}
