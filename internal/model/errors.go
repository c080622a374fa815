// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrorKind はエラーの分類を表す。
// HTTPステータスコードへの対応付けはハンドラー層で行う。
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindNotFound    ErrorKind = "not_found"
	KindAuth        ErrorKind = "auth"
	KindConflict    ErrorKind = "conflict"
	KindPersistence ErrorKind = "persistence"
	KindInternal    ErrorKind = "internal"
)

// 定義済みエラーコード
const (
	ErrCodeBadRequest        = "BAD_REQUEST"
	ErrCodeMissingFields     = "MISSING_FIELDS"
	ErrCodeEmailNotFound     = "EMAIL_NOT_FOUND"
	ErrCodePasswordMismatch  = "PASSWORD_MISMATCH"
	ErrCodeMissingToken      = "MISSING_TOKEN"
	ErrCodeInvalidToken      = "INVALID_TOKEN"
	ErrCodeExpiredToken      = "EXPIRED_TOKEN"
	ErrCodeRevokedToken      = "REVOKED_TOKEN"
	ErrCodeNotLogged         = "NOT_LOGGED"
	ErrCodeDuplicateEmail    = "DUPLICATE_EMAIL"
	ErrCodePersistenceFailed = "PERSISTENCE_FAILED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// AuthError は認証フローで発生するエラーの統一表現。
// Kindで分類し、Codeでクライアントが判別できるようにする。
type AuthError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error // 原因エラー（レスポンスには含めない）
}

// Error はerrorインターフェースを実装する。
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is はコードが一致するAuthErrorを同一とみなす。
// errors.Is(err, model.NewPasswordMismatchError()) のように比較できる。
func (e *AuthError) Is(target error) bool {
	var t *AuthError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// AsAuthError はerrからAuthErrorを取り出す。
func AsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// NewBadRequestError はリクエストボディが空の場合のエラーを生成する。
func NewBadRequestError() *AuthError {
	return &AuthError{
		Kind:    KindValidation,
		Code:    ErrCodeBadRequest,
		Message: "No data provided in the body request",
	}
}

// NewMissingFieldsError はemailまたはpasswordが欠けている場合のエラーを生成する。
func NewMissingFieldsError() *AuthError {
	return &AuthError{
		Kind:    KindValidation,
		Code:    ErrCodeMissingFields,
		Message: "Miss mandatory informations email or password",
	}
}

// NewEmailNotFoundError はメールアドレスが未登録の場合のエラーを生成する。
func NewEmailNotFoundError() *AuthError {
	return &AuthError{
		Kind:    KindNotFound,
		Code:    ErrCodeEmailNotFound,
		Message: "Email not found",
	}
}

// NewPasswordMismatchError はパスワード不一致のエラーを生成する。
func NewPasswordMismatchError() *AuthError {
	return &AuthError{
		Kind:    KindAuth,
		Code:    ErrCodePasswordMismatch,
		Message: "Password mismatch",
	}
}

// NewMissingTokenError はトークンが提示されなかった場合のエラーを生成する。
func NewMissingTokenError() *AuthError {
	return &AuthError{
		Kind:    KindAuth,
		Code:    ErrCodeMissingToken,
		Message: "No auth token",
	}
}

// NewInvalidTokenError は署名検証などに失敗したトークンのエラーを生成する。
func NewInvalidTokenError(cause error) *AuthError {
	return &AuthError{
		Kind:    KindAuth,
		Code:    ErrCodeInvalidToken,
		Message: "Invalid token",
		Err:     cause,
	}
}

// NewExpiredTokenError は有効期限切れトークンのエラーを生成する。
func NewExpiredTokenError() *AuthError {
	return &AuthError{
		Kind:    KindAuth,
		Code:    ErrCodeExpiredToken,
		Message: "Token expired",
	}
}

// NewRevokedTokenError はログアウト済みトークンのエラーを生成する。
func NewRevokedTokenError() *AuthError {
	return &AuthError{
		Kind:    KindAuth,
		Code:    ErrCodeRevokedToken,
		Message: "Token revoked",
	}
}

// NewNotLoggedError はセッションCookieが無い状態でのログアウトのエラーを生成する。
func NewNotLoggedError() *AuthError {
	return &AuthError{
		Kind:    KindAuth,
		Code:    ErrCodeNotLogged,
		Message: "Identity not logged",
	}
}

// NewDuplicateEmailError はメールアドレス重複のエラーを生成する。
func NewDuplicateEmailError(cause error) *AuthError {
	return &AuthError{
		Kind:    KindConflict,
		Code:    ErrCodeDuplicateEmail,
		Message: "Request failed",
		Err:     cause,
	}
}

// NewPersistenceError はストア層の失敗を表すエラーを生成する。
func NewPersistenceError(cause error) *AuthError {
	return &AuthError{
		Kind:    KindPersistence,
		Code:    ErrCodePersistenceFailed,
		Message: "Request failed",
		Err:     cause,
	}
}

// NewInternalError は分類できない内部エラーを生成する。
func NewInternalError(cause error) *AuthError {
	return &AuthError{
		Kind:    KindInternal,
		Code:    ErrCodeInternal,
		Message: "Request failed",
		Err:     cause,
	}
}
