// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// エラーカテゴリ。
const (
	// CategoryValidation は入力不備。ユーザーに再入力を促す。
	CategoryValidation = "validation"
	// CategoryAuth は認証失敗（資格情報の誤り、IdPでの同意拒否）。自動リトライしない。
	CategoryAuth = "auth"
	// CategoryDependency はDBやIdPへの到達不能・タイムアウト。ログに記録し、再試行を案内する。
	CategoryDependency = "dependency"
	// CategorySystem はその他の内部エラー。
	CategorySystem = "system"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, auth, dependency, system
	Action   string // ユーザー向け対処方法

	cause error
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因となったエラーを返す。
func (e *APIError) Unwrap() error {
	return e.cause
}

// 定義済みエラーコード
const (
	ErrCodeMissingFields      = "MISSING_FIELDS"
	ErrCodeTermsNotAccepted   = "TERMS_NOT_ACCEPTED"
	ErrCodeInvalidSignup      = "INVALID_SIGNUP"
	ErrCodeAccountExists      = "ACCOUNT_EXISTS"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnknownProvider    = "UNKNOWN_PROVIDER"
	ErrCodeProviderDenied     = "PROVIDER_DENIED"
	ErrCodeProviderFailed     = "PROVIDER_FAILED"
	ErrCodeStoreUnavailable   = "STORE_UNAVAILABLE"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeInvalidProfile     = "INVALID_PROFILE"
	ErrCodeInvalidProgress    = "INVALID_PROGRESS"
)

// IsCategory はエラーチェーン中のAPIErrorが指定カテゴリかどうかを返す。
func IsCategory(err error, category string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category == category
	}
	return false
}

// NewMissingFieldsError は必須項目未入力エラーを生成する。
func NewMissingFieldsError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingFields,
		Message:  message,
		Category: CategoryValidation,
		Action:   "未入力の項目を入力してください。",
	}
}

// NewTermsNotAcceptedError は利用規約未同意エラーを生成する。
func NewTermsNotAcceptedError() *APIError {
	return &APIError{
		Code:     ErrCodeTermsNotAccepted,
		Message:  "You must agree to the terms and conditions",
		Category: CategoryValidation,
		Action:   "利用規約に同意してください。",
	}
}

// NewInvalidSignupError はサインアップ入力の形式不備エラーを生成する。
func NewInvalidSignupError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSignup,
		Message:  "Failed to create account. Please try again.",
		Category: CategoryValidation,
		Action:   "有効なメールアドレスと6文字以上のパスワードを入力してください。",
	}
}

// NewAccountExistsError は登録済みメールアドレスでのサインアップエラーを生成する。
func NewAccountExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountExists,
		Message:  "An account with this email already exists",
		Category: CategoryValidation,
		Action:   "ログインするか、別のメールアドレスを使用してください。",
	}
}

// NewInvalidCredentialsError は資格情報不一致エラーを生成する。
// アカウントの有無を区別しないメッセージを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password",
		Category: CategoryAuth,
		Action:   "メールアドレスとパスワードを確認して再度お試しください。",
	}
}

// NewUnknownProviderError は未対応または無効化されたIdPの指定エラーを生成する。
func NewUnknownProviderError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownProvider,
		Message:  fmt.Sprintf("Unsupported sign-in provider: %s", provider),
		Category: CategoryValidation,
		Action:   "利用可能なログイン方法を選択してください。",
	}
}

// NewProviderDeniedError はIdP側で同意が拒否された場合のエラーを生成する。
func NewProviderDeniedError(provider string, cause error) *APIError {
	return &APIError{
		Code:     ErrCodeProviderDenied,
		Message:  fmt.Sprintf("Sign-in with %s was cancelled or denied", provider),
		Category: CategoryAuth,
		Action:   "もう一度ログインを試し、アクセスを許可してください。",
		cause:    cause,
	}
}

// NewProviderFailedError はIdPへの通信失敗・タイムアウトのエラーを生成する。
func NewProviderFailedError(provider string, cause error) *APIError {
	return &APIError{
		Code:     ErrCodeProviderFailed,
		Message:  fmt.Sprintf("Could not reach %s. Please try again.", provider),
		Category: CategoryDependency,
		Action:   "しばらく待ってから再度お試しください。",
		cause:    cause,
	}
}

// NewStoreUnavailableError はデータストア障害のエラーを生成する。
func NewStoreUnavailableError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeStoreUnavailable,
		Message:  "Something went wrong. Please try again.",
		Category: CategoryDependency,
		Action:   "しばらく待ってから再度お試しください。",
		cause:    cause,
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: CategoryAuth,
		Action:   "ログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: CategoryAuth,
		Action:   "ログインし直してください。",
	}
}

// NewInvalidProfileError はプロフィール編集の入力不備エラーを生成する。
func NewInvalidProfileError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProfile,
		Message:  fmt.Sprintf("無効なプロフィール項目です: %s", reason),
		Category: CategoryValidation,
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidProgressError は進捗の値が範囲外などの場合のエラーを生成する。
func NewInvalidProgressError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProgress,
		Message:  fmt.Sprintf("無効な進捗です: %s", reason),
		Category: CategoryValidation,
		Action:   "進捗率は0から100の範囲で指定してください。",
	}
}
