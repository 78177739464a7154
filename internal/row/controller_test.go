package row

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/kondate/internal/model"
)

// fakeWriter はCheckWriterのフェイク。
type fakeWriter struct {
	calls     int
	confirmed bool
	err       error
}

func (f *fakeWriter) WriteCheckState(ctx context.Context, date time.Time, userName string, checked bool) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.confirmed, nil
}

// fakeView は表示操作を順番どおりに記録するView。
type fakeView struct {
	ops []string
}

func (v *fakeView) SetChecked(checked bool) {
	if checked {
		v.ops = append(v.ops, "checked:true")
	} else {
		v.ops = append(v.ops, "checked:false")
	}
}

func (v *fakeView) SetControlEnabled(enabled bool) {
	if enabled {
		v.ops = append(v.ops, "enabled:true")
	} else {
		v.ops = append(v.ops, "enabled:false")
	}
}

func (v *fakeView) ShowSuccess(message string) { v.ops = append(v.ops, "success:"+message) }
func (v *fakeView) ShowError(message string)   { v.ops = append(v.ops, "error:"+message) }

func newTestController(writer *fakeWriter, states *model.CheckStates) *Controller {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewController(writer, states, logger)
}

func editableRow() model.MenuRow {
	return model.MenuRow{
		Date:     time.Date(2025, 9, 10, 0, 0, 0, 0, time.Local),
		Main:     "肉じゃが",
		Editable: true,
	}
}

func TestToggle_SuccessAddsCheck(t *testing.T) {
	writer := &fakeWriter{confirmed: true}
	states := model.NewCheckStates()
	c := newTestController(writer, states)

	view := &fakeView{}
	r := editableRow()
	if err := c.Toggle(context.Background(), view, r, "太郎", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"checked:true",  // 楽観的更新
		"enabled:false", // 操作中は無効化
		"checked:true",  // 確定値
		"success:利用チェックを追加しました",
		"enabled:true", // 必ず再有効化
	}
	if len(view.ops) != len(want) {
		t.Fatalf("ops = %v, want %v", view.ops, want)
	}
	for i := range want {
		if view.ops[i] != want[i] {
			t.Errorf("ops[%d] = %q, want %q", i, view.ops[i], want[i])
		}
	}

	if !states.Get(r.Date) {
		t.Error("state should be recorded on success")
	}
}

func TestToggle_SuccessRemovesCheck(t *testing.T) {
	writer := &fakeWriter{confirmed: false}
	states := model.NewCheckStates()
	r := editableRow()
	states.Set(r.Date, true)
	c := newTestController(writer, states)

	view := &fakeView{}
	if err := c.Toggle(context.Background(), view, r, "太郎", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last := view.ops[len(view.ops)-2]
	if last != "success:利用チェックを解除しました" {
		t.Errorf("expected removal message, ops = %v", view.ops)
	}
	if states.Get(r.Date) {
		t.Error("state should be false after removal")
	}
}

func TestToggle_FailureRevertsAndReenables(t *testing.T) {
	writer := &fakeWriter{err: model.NewNetworkFailureError("サーバーとの通信に失敗しました。")}
	states := model.NewCheckStates()
	r := editableRow()
	// 元の状態はチェック済み
	states.Set(r.Date, true)
	c := newTestController(writer, states)

	view := &fakeView{}
	err := c.Toggle(context.Background(), view, r, "太郎", false)
	if err == nil {
		t.Fatal("expected error")
	}

	want := []string{
		"checked:false", // 楽観的更新
		"enabled:false",
		"checked:true", // 元の状態へ巻き戻し
		"error:サーバーとの通信に失敗しました。",
		"enabled:true", // 失敗時も必ず再有効化
	}
	if len(view.ops) != len(want) {
		t.Fatalf("ops = %v, want %v", view.ops, want)
	}
	for i := range want {
		if view.ops[i] != want[i] {
			t.Errorf("ops[%d] = %q, want %q", i, view.ops[i], want[i])
		}
	}

	// 巻き戻し後も記録された状態は変わらない
	if !states.Get(r.Date) {
		t.Error("recorded state should remain true after rollback")
	}
}

func TestToggle_RefusesNonEditableRow(t *testing.T) {
	writer := &fakeWriter{}
	states := model.NewCheckStates()
	c := newTestController(writer, states)

	r := editableRow()
	r.Editable = false

	view := &fakeView{}
	err := c.Toggle(context.Background(), view, r, "太郎", true)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeRowNotEditable {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeRowNotEditable)
	}

	// サーバー書き込みも表示更新も行わない
	if writer.calls != 0 {
		t.Errorf("writer calls = %d, want 0", writer.calls)
	}
	if len(view.ops) != 0 {
		t.Errorf("view ops = %v, want none", view.ops)
	}
}
