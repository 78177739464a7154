// Package row は献立行の利用チェック操作を提供する。
//
// チェックの切り替えは楽観的に表示へ反映し、サーバー書き込みの失敗時には
// 元の状態へ巻き戻す。操作中はコントロールを無効化し、結果に関わらず
// 必ず再有効化する。
package row

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/kondate/internal/model"
)

// CheckWriter はチェック状態のサーバー書き込みのインターフェース。
type CheckWriter interface {
	WriteCheckState(ctx context.Context, date time.Time, userName string, checked bool) (bool, error)
}

// View は1回の切り替え操作が反映される表示側のインターフェース。
type View interface {
	SetChecked(checked bool)
	SetControlEnabled(enabled bool)
	ShowSuccess(message string)
	ShowError(message string)
}

// Controller は利用チェックの切り替えを実行する。
type Controller struct {
	writer CheckWriter
	states *model.CheckStates
	logger *slog.Logger
}

// NewController はControllerを生成する。
func NewController(writer CheckWriter, states *model.CheckStates, logger *slog.Logger) *Controller {
	return &Controller{
		writer: writer,
		states: states,
		logger: logger,
	}
}

// Toggle は指定行のチェック状態をcheckedへ切り替える。
//
// 編集不可の行は書き込みを行わずエラーを返す。書き込みに失敗した場合は
// 表示を元の状態へ戻し、エラーメッセージを表示したうえでエラーを返す。
func (c *Controller) Toggle(ctx context.Context, view View, row model.MenuRow, userName string, checked bool) error {
	if !row.Editable {
		c.logger.Warn("編集不可の行への操作を拒否しました",
			slog.String("date", row.WireDate()),
		)
		return model.NewRowNotEditableError(row.WireDate())
	}

	prev := c.states.Get(row.Date)

	// 楽観的に表示を更新し、書き込み中はコントロールを無効化する。
	view.SetChecked(checked)
	view.SetControlEnabled(false)
	defer view.SetControlEnabled(true)

	confirmed, err := c.writer.WriteCheckState(ctx, row.Date, userName, checked)
	if err != nil {
		c.logger.Error("利用チェックの書き込みに失敗しました",
			slog.String("date", row.WireDate()),
			slog.Bool("checked", checked),
			slog.String("error", err.Error()),
		)
		view.SetChecked(prev)
		view.ShowError(errorMessage(err))
		return err
	}

	c.states.Set(row.Date, confirmed)
	view.SetChecked(confirmed)
	if confirmed {
		view.ShowSuccess("利用チェックを追加しました")
	} else {
		view.ShowSuccess("利用チェックを解除しました")
	}
	return nil
}

func errorMessage(err error) string {
	if apiErr, ok := err.(*model.APIError); ok {
		return apiErr.Message
	}
	return err.Error()
}
