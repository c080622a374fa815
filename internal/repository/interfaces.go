// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/authgate/internal/model"
)

// ErrDuplicateEmail は既に登録済みのメールアドレスでidentityを作成しようとした場合に返る。
var ErrDuplicateEmail = errors.New("email already registered")

// IdentityRepository はidentityの永続化インターフェース。
// メールアドレスの一意性はストア側の一意制約で保証する。
type IdentityRepository interface {
	// Create はidentityを作成し、ストアが採番したIDをidentity.IDに設定する。
	// メールアドレスが重複している場合はErrDuplicateEmailをラップしたエラーを返す。
	Create(ctx context.Context, identity *model.Identity) error

	// FindByEmail はメールアドレスでidentityを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Identity, error)
}

// RevocationRepository はログアウト済みトークンIDの永続化インターフェース。
// トークン自体はステートレスなので、有効期限までの間だけ失効リストに保持する。
type RevocationRepository interface {
	// Revoke はトークンIDを失効リストに追加する。冪等。
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error

	// IsRevoked はトークンIDが失効リストに含まれるかを返す。
	IsRevoked(ctx context.Context, tokenID string) (bool, error)

	// DeleteExpired はexpires_atがbeforeより前のエントリを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Pinger はストアの疎通確認インターフェース。
type Pinger interface {
	Ping(ctx context.Context) error
}
