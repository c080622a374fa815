package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/authgate/internal/model"
)

// MessageSucceeded は成功レスポンスのmessage。
const MessageSucceeded = "Request succeed"

// Envelope はすべてのAPIレスポンスで共通のフォーマット。
// statusは常に書き込んだHTTPステータスコードと一致する。
type Envelope struct {
	Endpoint string     `json:"endpoint"`
	Method   string     `json:"method"`
	Message  string     `json:"message"`
	Err      *ErrorBody `json:"err"`
	Data     any        `json:"data"`
	Status   int        `json:"status"`
}

// ErrorBody はエンベロープのerrに入るエラー分類。
// 原因エラーの詳細はログのみに記録し、レスポンスには含めない。
type ErrorBody struct {
	Code string `json:"code"`
	Kind string `json:"kind"`
}

// WriteEnvelope はエンベロープ形式でレスポンスを書き込む。
func WriteEnvelope(w http.ResponseWriter, r *http.Request, statusCode int, message string, errBody *ErrorBody, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(Envelope{
		Endpoint: r.URL.RequestURI(),
		Method:   r.Method,
		Message:  message,
		Err:      errBody,
		Data:     data,
		Status:   statusCode,
	}); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// WriteSuccess は200とデータをエンベロープ形式で書き込む。
func WriteSuccess(w http.ResponseWriter, r *http.Request, data any) {
	WriteEnvelope(w, r, http.StatusOK, MessageSucceeded, nil, data)
}

// StatusForKind はエラー分類に対応するHTTPステータスコードを返す。
func StatusForKind(kind model.ErrorKind) int {
	switch kind {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindAuth:
		return http.StatusUnauthorized
	case model.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorWriter はエラーをエンベロープ形式で書き込む。
// Legacyがtrueの場合はすべてのエラーを500で返す。
type ErrorWriter struct {
	Legacy bool
}

// StatusFor はエラー分類に対応するHTTPステータスコードを返す。
func (ew ErrorWriter) StatusFor(kind model.ErrorKind) int {
	if ew.Legacy {
		return http.StatusInternalServerError
	}
	return StatusForKind(kind)
}

// Write はerrをエンベロープ形式で書き込む。
// AuthError以外のエラーは内部エラーとして扱う。
func (ew ErrorWriter) Write(w http.ResponseWriter, r *http.Request, err error) {
	authErr, ok := model.AsAuthError(err)
	if !ok {
		authErr = model.NewInternalError(err)
	}

	status := ew.StatusFor(authErr.Kind)
	if StatusForKind(authErr.Kind) >= http.StatusInternalServerError {
		slog.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("code", authErr.Code),
			slog.String("error", authErr.Error()),
		)
	}

	WriteEnvelope(w, r, status, authErr.Message, &ErrorBody{
		Code: authErr.Code,
		Kind: string(authErr.Kind),
	}, nil)
}

// WriteInternalServerError は内部エラーのエンベロープを500で書き込む。
func WriteInternalServerError(w http.ResponseWriter, r *http.Request) {
	WriteEnvelope(w, r, http.StatusInternalServerError, "Request failed", &ErrorBody{
		Code: model.ErrCodeInternal,
		Kind: string(model.KindInternal),
	}, nil)
}
