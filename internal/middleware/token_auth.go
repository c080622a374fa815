// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/token"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// claimsContextKey はリクエストコンテキストに検証済みクレームを格納するためのキー。
var claimsContextKey = contextKey("claims")

// Authenticator はトークンの検証に必要なインターフェース。
// auth.Serviceが実装する。
type Authenticator interface {
	Authenticate(ctx context.Context, tokenString string) (*token.Claims, error)
}

// CookieUnsigner は署名付きCookie値の検証インターフェース。
type CookieUnsigner interface {
	Unsign(signed string) (string, error)
}

// TokenAuthConfig はトークン認証ミドルウェアの設定。
type TokenAuthConfig struct {
	CookieName string
	Cookies    CookieUnsigner
	Errors     ErrorWriter
}

// NewTokenAuthMiddleware はAuthorizationヘッダーまたはセッションCookieからトークンを読み取り、
// 検証するミドルウェアを返す。
// 検証済みクレームをリクエストコンテキストに注入する。
// 検証に失敗したリクエストはハンドラーに到達する前にエンベロープ形式で拒否する。
func NewTokenAuthMiddleware(authenticator Authenticator, cfg TokenAuthConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. リクエストからトークンを取得
			raw, err := TokenFromRequest(r, cfg.CookieName, cfg.Cookies)
			if err != nil {
				cfg.Errors.Write(w, r, err)
				return
			}

			// 2. トークンを検証
			claims, err := authenticator.Authenticate(r.Context(), raw)
			if err != nil {
				slog.Debug("token rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				cfg.Errors.Write(w, r, err)
				return
			}

			// 3. 検証済みクレームをコンテキストに注入
			setSubjectID(r.Context(), claims.SubjectID())
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// TokenFromRequest はAuthorization: Bearerヘッダーを優先し、無ければ署名付きセッションCookieからトークンを取り出す。
// どちらも無い場合は空文字を返す。
func TokenFromRequest(r *http.Request, cookieName string, cookies CookieUnsigner) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, value, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return "", model.NewInvalidTokenError(nil)
		}
		return strings.TrimSpace(value), nil
	}

	if cookieName == "" || cookies == nil {
		return "", nil
	}
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return "", nil
	}
	value, err := cookies.Unsign(cookie.Value)
	if err != nil {
		return "", model.NewInvalidTokenError(err)
	}
	return value, nil
}

// ClaimsFromContext はリクエストコンテキストから検証済みクレームを取得する。
// トークン認証ミドルウェアを通過したリクエストでのみ有効。
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*token.Claims)
	return claims, ok && claims != nil
}

// ContextWithClaims はコンテキストにクレームを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}
