package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: network, malformed, application, validation, auth, system
	Action   string // ユーザー向け対処方法
	Field    string // validationカテゴリでフォーカスすべき入力フィールド名
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNetworkFailure     = "NETWORK_FAILURE"
	ErrCodeMalformedResponse  = "MALFORMED_RESPONSE"
	ErrCodeApplicationFailure = "APPLICATION_FAILURE"
	ErrCodeValidationFailure  = "VALIDATION_FAILURE"
	ErrCodeRowNotEditable     = "ROW_NOT_EDITABLE"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeMenuNotFound       = "MENU_NOT_FOUND"
)

// NewNetworkFailureError は通信失敗（到達不能・タイムアウト）エラーを生成する。
// reasonにはtransport層が解決したエラーメッセージを渡す。
func NewNetworkFailureError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeNetworkFailure,
		Message:  reason,
		Category: "network",
		Action:   "通信環境を確認し、しばらく待ってから再度お試しください。",
	}
}

// NewMalformedResponseError は応答の形式不正エラーを生成する。
func NewMalformedResponseError() *APIError {
	return &APIError{
		Code:     ErrCodeMalformedResponse,
		Message:  "サーバーの応答を解釈できませんでした。",
		Category: "malformed",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewApplicationFailureError はバックエンドがsuccess:falseを返した場合のエラーを生成する。
// messageが空の場合は汎用メッセージを使う。
func NewApplicationFailureError(message string) *APIError {
	if message == "" {
		message = "処理に失敗しました。"
	}
	return &APIError{
		Code:     ErrCodeApplicationFailure,
		Message:  message,
		Category: "application",
		Action:   "入力内容を確認し、再度お試しください。",
	}
}

// NewValidationFailureError は呼び出し前のクライアント側検証エラーを生成する。
// fieldはフォーカスすべき入力フィールド名。
func NewValidationFailureError(field, message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailure,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
		Field:    field,
	}
}

// NewRowNotEditableError はチェック期限切れの行への書き込み拒否エラーを生成する。
func NewRowNotEditableError(wireDate string) *APIError {
	return &APIError{
		Code:     ErrCodeRowNotEditable,
		Message:  fmt.Sprintf("チェック期限を過ぎているため変更できません: %s", wireDate),
		Category: "validation",
		Action:   "期限内の日付のみ変更できます。",
	}
}

// NewUnauthorizedError は未ログイン状態でのアクセスエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "ログインしていません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewMenuNotFoundError は表示中の月に存在しない日付への操作エラーを生成する。
func NewMenuNotFoundError(wireDate string) *APIError {
	return &APIError{
		Code:     ErrCodeMenuNotFound,
		Message:  fmt.Sprintf("指定された日付の献立が見つかりません: %s", wireDate),
		Category: "validation",
		Action:   "献立を再読み込みしてください。",
	}
}
