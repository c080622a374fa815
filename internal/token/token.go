// Package token はJWTアクセストークンの発行と検証を提供する。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/authgate/internal/model"
)

// Issuer はトークンのissクレームに設定する値。
const Issuer = "authgate"

var (
	// ErrMissing はトークン文字列が空の場合に返る。
	ErrMissing = errors.New("token is empty")
	// ErrExpired は有効期限切れのトークンに対して返る。
	ErrExpired = errors.New("token is expired")
	// ErrInvalid は署名不一致や形式不正などのトークンに対して返る。
	ErrInvalid = errors.New("token is invalid")
)

// Claims はトークンに含めるクレーム。
// パスワードハッシュなどの秘密情報は含めない。
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// SubjectID はクレームのsub（identity ID）を返す。
func (c *Claims) SubjectID() string {
	return c.Subject
}

// ExpiresAtTime は有効期限を返す。expが無い場合はゼロ値を返す。
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Manager はHS256で署名したトークンを発行・検証する。
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	newID  func() string
}

// Option はManagerの設定を変更する。
type Option func(*Manager)

// WithClock は現在時刻の取得関数を差し替える。テストで使用する。
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithIDGenerator はjtiの生成関数を差し替える。テストで使用する。
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		m.newID = gen
	}
}

// NewManager はManagerを生成する。
func NewManager(secret string, ttl time.Duration, opts ...Option) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive: %s", ttl)
	}
	m := &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL はトークンの有効期間を返す。
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue はidentityに対するトークンを発行する。
// 署名済みトークン文字列と、埋め込んだクレームを返す。
func (m *Manager) Issue(identity *model.Identity) (string, *Claims, error) {
	if identity == nil || identity.ID == "" {
		return "", nil, errors.New("identity id is required to issue a token")
	}

	now := m.now().Truncate(time.Second)
	claims := &Claims{
		Email: identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   identity.ID,
			ID:        m.newID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify はトークンの署名と有効期限を検証し、クレームを返す。
// 返すエラーはErrMissing、ErrExpired、ErrInvalidのいずれかをラップする。
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissing
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(_ *jwt.Token) (interface{}, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing sub or jti claim", ErrInvalid)
	}
	return claims, nil
}
