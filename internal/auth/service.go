// Package auth はパスワード認証フロー（登録・ログイン・ログアウト・トークン検証）を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/repository"
	"github.com/hitoshi/authgate/internal/token"
)

// 認証イベント名（メトリクスのeventラベル）
const (
	EventRegister = "register"
	EventLogin    = "login"
	EventLogout   = "logout"
	EventVerify   = "verify"
)

// OutcomeSuccess は成功時のoutcomeラベル。失敗時はエラーコードを使う。
const OutcomeSuccess = "success"

// TokenManager はトークンの発行と検証のインターフェース。
type TokenManager interface {
	Issue(identity *model.Identity) (string, *token.Claims, error)
	Verify(tokenString string) (*token.Claims, error)
}

// Recorder は認証フローのメトリクス記録インターフェース。
type Recorder interface {
	RecordAuthEvent(event, outcome string)
	ObservePasswordHash(duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordAuthEvent(string, string)     {}
func (noopRecorder) ObservePasswordHash(time.Duration) {}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	StoreTimeout time.Duration // ストア呼び出し1回あたりのタイムアウト
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Identity *model.Identity
	Token    string
	Claims   *token.Claims
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	identities  repository.IdentityRepository
	revocations repository.RevocationRepository
	hasher      PasswordHasher
	tokens      TokenManager
	recorder    Recorder
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。recorderがnilの場合はメトリクスを記録しない。
func NewService(
	identities repository.IdentityRepository,
	revocations repository.RevocationRepository,
	hasher PasswordHasher,
	tokens TokenManager,
	recorder Recorder,
	config ServiceConfig,
) *Service {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = 5 * time.Second
	}
	return &Service{
		identities:  identities,
		revocations: revocations,
		hasher:      hasher,
		tokens:      tokens,
		recorder:    recorder,
		config:      config,
		now:         time.Now,
	}
}

// Register は新しいidentityを登録する。
// 返すidentityのPasswordHashはハッシュ済みの値で、平文パスワードは保持しない。
func (s *Service) Register(ctx context.Context, creds model.Credentials) (*model.Identity, error) {
	identity, err := s.register(ctx, creds)
	s.recordOutcome(EventRegister, err)
	return identity, err
}

func (s *Service) register(ctx context.Context, creds model.Credentials) (*model.Identity, error) {
	// 1. 必須項目の検証
	if err := validateCredentials(creds); err != nil {
		return nil, err
	}

	// 2. パスワードをハッシュ化
	hash, err := s.hash(creds.Password)
	if err != nil {
		return nil, model.NewInternalError(err)
	}

	identity := &model.Identity{
		Email:        creds.Email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}

	// 3. 永続化（メールアドレスの一意性はストアの一意制約で判定する）
	storeCtx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	if err := s.identities.Create(storeCtx, identity); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewDuplicateEmailError(err)
		}
		return nil, model.NewPersistenceError(fmt.Errorf("failed to create identity: %w", err))
	}

	slog.Info("identity registered",
		slog.String("identity_id", identity.ID),
		slog.String("email", identity.Email),
	)
	return identity, nil
}

// Login は認証情報を検証し、トークンを発行する。
func (s *Service) Login(ctx context.Context, creds model.Credentials) (*LoginResult, error) {
	result, err := s.login(ctx, creds)
	s.recordOutcome(EventLogin, err)
	return result, err
}

func (s *Service) login(ctx context.Context, creds model.Credentials) (*LoginResult, error) {
	// 1. 必須項目の検証
	if err := validateCredentials(creds); err != nil {
		return nil, err
	}

	// 2. メールアドレスでidentityを検索
	storeCtx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	identity, err := s.identities.FindByEmail(storeCtx, creds.Email)
	if err != nil {
		return nil, model.NewPersistenceError(fmt.Errorf("failed to find identity: %w", err))
	}
	if identity == nil {
		return nil, model.NewEmailNotFoundError()
	}

	// 3. パスワードを照合
	ok, err := s.hasher.Compare(identity.PasswordHash, creds.Password)
	if err != nil {
		return nil, model.NewInternalError(err)
	}
	if !ok {
		return nil, model.NewPasswordMismatchError()
	}

	// 4. トークンを発行
	signed, claims, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, model.NewInternalError(err)
	}

	slog.Info("identity logged in",
		slog.String("identity_id", identity.ID),
		slog.String("token_id", claims.ID),
	)
	return &LoginResult{Identity: identity, Token: signed, Claims: claims}, nil
}

// Authenticate はトークンを検証し、失効リストに含まれていなければクレームを返す。
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*token.Claims, error) {
	claims, err := s.authenticate(ctx, tokenString)
	s.recordOutcome(EventVerify, err)
	return claims, err
}

func (s *Service) authenticate(ctx context.Context, tokenString string) (*token.Claims, error) {
	// 1. 署名と有効期限の検証
	claims, err := s.tokens.Verify(tokenString)
	if err != nil {
		return nil, mapTokenError(err)
	}

	// 2. 失効リストの確認
	storeCtx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	revoked, err := s.revocations.IsRevoked(storeCtx, claims.ID)
	if err != nil {
		return nil, model.NewPersistenceError(fmt.Errorf("failed to check revocation: %w", err))
	}
	if revoked {
		return nil, model.NewRevokedTokenError()
	}

	return claims, nil
}

// Logout はトークンを有効期限まで失効リストに登録する。
// 検証できないトークン（期限切れ・改ざん）は既に使えないため、何もせずに成功とする。
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	err := s.logout(ctx, tokenString)
	s.recordOutcome(EventLogout, err)
	return err
}

func (s *Service) logout(ctx context.Context, tokenString string) error {
	claims, err := s.tokens.Verify(tokenString)
	if err != nil {
		slog.Debug("logout with unverifiable token, skipping revocation",
			slog.String("error", err.Error()),
		)
		return nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	if err := s.revocations.Revoke(storeCtx, claims.ID, claims.ExpiresAtTime()); err != nil {
		return model.NewPersistenceError(fmt.Errorf("failed to revoke token: %w", err))
	}

	slog.Info("identity logged out",
		slog.String("identity_id", claims.SubjectID()),
		slog.String("token_id", claims.ID),
	)
	return nil
}

func (s *Service) hash(password string) (string, error) {
	start := time.Now()
	defer func() {
		s.recorder.ObservePasswordHash(time.Since(start))
	}()
	return s.hasher.Hash(password)
}

func (s *Service) recordOutcome(event string, err error) {
	if err == nil {
		s.recorder.RecordAuthEvent(event, OutcomeSuccess)
		return
	}
	outcome := model.ErrCodeInternal
	if authErr, ok := model.AsAuthError(err); ok {
		outcome = authErr.Code
	}
	s.recorder.RecordAuthEvent(event, outcome)
	slog.Warn("auth flow failed",
		slog.String("event", event),
		slog.String("code", outcome),
	)
}

// validateCredentials はemailとpasswordが両方指定されているかを検証する。
func validateCredentials(creds model.Credentials) error {
	if creds.Email == "" || creds.Password == "" {
		return model.NewMissingFieldsError()
	}
	return nil
}

// mapTokenError はトークン検証エラーをAuthErrorに変換する。
func mapTokenError(err error) error {
	switch {
	case errors.Is(err, token.ErrMissing):
		return model.NewMissingTokenError()
	case errors.Is(err, token.ErrExpired):
		return model.NewExpiredTokenError()
	default:
		return model.NewInvalidTokenError(err)
	}
}
