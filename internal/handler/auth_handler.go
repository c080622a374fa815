// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/hitoshi/authgate/internal/auth"
	"github.com/hitoshi/authgate/internal/middleware"
	"github.com/hitoshi/authgate/internal/model"
)

// DefaultMaxBodyBytes はリクエストボディの上限サイズ（20MiB）。
const DefaultMaxBodyBytes = 20 << 20

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, creds model.Credentials) (*model.Identity, error)
	Login(ctx context.Context, creds model.Credentials) (*auth.LoginResult, error)
	Logout(ctx context.Context, tokenString string) error
}

// CookieSigner はセッションCookie値の署名と検証のインターフェース。
type CookieSigner interface {
	Sign(value string) string
	Unsign(signed string) (string, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieName   string
	CookieMaxAge int // セッションCookieの有効期間（秒）
	CookieSecure bool
	MaxBodyBytes int64
}

// AuthHandler は登録・ログイン・ログアウト・保護ルートのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	cookies CookieSigner
	config  AuthHandlerConfig
	errors  middleware.ErrorWriter
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, cookies CookieSigner, config AuthHandlerConfig, errWriter middleware.ErrorWriter) *AuthHandler {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &AuthHandler{
		service: service,
		cookies: cookies,
		config:  config,
		errors:  errWriter,
	}
}

// identityResponse はidentityのレスポンス表現。パスワードハッシュは含めない。
type identityResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// loginResponse はログイン成功時のdata。
type loginResponse struct {
	User  identityResponse `json:"user"`
	Token string           `json:"token"`
}

// claimsResponse は保護ルートが返す認証済みクレーム。
type claimsResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toIdentityResponse(identity *model.Identity) identityResponse {
	return identityResponse{
		ID:        identity.ID,
		Email:     identity.Email,
		CreatedAt: identity.CreatedAt,
	}
}

// Register は新しいidentityを登録する。
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	creds, err := h.decodeCredentials(w, r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	identity, err := h.service.Register(r.Context(), creds)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	middleware.WriteSuccess(w, r, toIdentityResponse(identity))
}

// Login は認証情報を検証し、トークンを発行してセッションCookieに設定する。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	creds, err := h.decodeCredentials(w, r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	result, err := h.service.Login(r.Context(), creds)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	// 署名付きトークンをHTTP Only Cookieに設定
	http.SetCookie(w, h.sessionCookie(h.cookies.Sign(result.Token), h.config.CookieMaxAge))

	middleware.WriteSuccess(w, r, loginResponse{
		User:  toIdentityResponse(result.Identity),
		Token: result.Token,
	})
}

// Logout はセッションCookieをクリアし、トークンを失効させる。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	// 1. セッションCookieの存在確認
	c, err := r.Cookie(h.config.CookieName)
	if err != nil {
		h.errors.Write(w, r, model.NewNotLoggedError())
		return
	}

	// 2. 検証できるトークンであれば失効リストに登録
	// 失効に失敗してもCookieはクリアする
	if raw, unsignErr := h.cookies.Unsign(c.Value); unsignErr == nil {
		if logoutErr := h.service.Logout(r.Context(), raw); logoutErr != nil {
			slog.Error("failed to revoke token on logout", slog.String("error", logoutErr.Error()))
		}
	} else {
		slog.Warn("logout with unsigned session cookie", slog.String("error", unsignErr.Error()))
	}

	// 3. セッションCookieをクリア
	http.SetCookie(w, h.sessionCookie("", -1))

	middleware.WriteSuccess(w, r, nil)
}

// Protected はトークン認証ミドルウェアが検証したクレームを返す。
// POST /protected
func (h *AuthHandler) Protected(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.errors.Write(w, r, model.NewMissingTokenError())
		return
	}

	resp := claimsResponse{
		ID:    claims.SubjectID(),
		Email: claims.Email,
	}
	if claims.IssuedAt != nil {
		resp.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	resp.ExpiresAt = claims.ExpiresAtTime().UTC()

	middleware.WriteSuccess(w, r, resp)
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.config.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// decodeCredentials はリクエストボディからemailとpasswordを取り出す。
// application/x-www-form-urlencodedとJSONを受け付ける。
// ボディが空・空オブジェクト・不正な形式の場合はBAD_REQUESTを返す。
func (h *AuthHandler) decodeCredentials(w http.ResponseWriter, r *http.Request) (model.Credentials, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil || len(r.PostForm) == 0 {
			return model.Credentials{}, model.NewBadRequestError()
		}
		return model.Credentials{
			Email:    r.PostForm.Get("email"),
			Password: r.PostForm.Get("password"),
		}, nil
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			slog.Warn("request body too large", slog.Int64("limit", maxErr.Limit))
		} else if !errors.Is(err, io.EOF) {
			slog.Debug("failed to decode request body", slog.String("error", err.Error()))
		}
		return model.Credentials{}, model.NewBadRequestError()
	}
	if len(body) == 0 {
		return model.Credentials{}, model.NewBadRequestError()
	}

	email, _ := body["email"].(string)
	password, _ := body["password"].(string)
	return model.Credentials{Email: email, Password: password}, nil
}
