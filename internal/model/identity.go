// Package model はドメインモデルを定義する。
package model

import "time"

// Identity は登録済みの認証主体を表す。
// PasswordHashはクライアントへのレスポンス、ログ、トークンのいずれにも含めない。
type Identity struct {
	ID           string // ストアが採番する不透明なID
	Email        string // 一意
	PasswordHash string
	CreatedAt    time.Time // 作成時に一度だけ設定する
}

// Credentials は登録・ログインリクエストで受け取る認証情報。
type Credentials struct {
	Email    string
	Password string
}
