package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost はbcryptのデフォルトコスト。
const DefaultBcryptCost = bcrypt.DefaultCost

// MaxPasswordBytes はbcryptが扱える入力の最大バイト数。超過分は切り捨てる。
const MaxPasswordBytes = 72

// ErrEmptyPassword は空のパスワードをハッシュしようとした場合に返る。
var ErrEmptyPassword = errors.New("password must not be empty")

// PasswordHasher はパスワードのハッシュ化と照合のインターフェース。
type PasswordHasher interface {
	// Hash は平文パスワードからソルト付きハッシュを生成する。
	Hash(password string) (string, error)
	// Compare はパスワードがハッシュと一致するかを返す。
	// 不一致はエラーではなくfalseで返す。
	Compare(hash, password string) (bool, error)
}

// BcryptHasher はbcryptによるPasswordHasherの実装。
type BcryptHasher struct {
	cost int
}

var _ PasswordHasher = (*BcryptHasher)(nil)

// NewBcryptHasher はBcryptHasherを生成する。
// costがbcryptの許容範囲外の場合はデフォルトコストを使う。
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Cost は使用するbcryptコストを返す。
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// passwordBytes はパスワードを先頭MaxPasswordBytesバイトに切り詰める。
// HashとCompareで同じ規則を使うため、長いパスワードでも登録後にログインできる。
func passwordBytes(password string) []byte {
	b := []byte(password)
	if len(b) > MaxPasswordBytes {
		b = b[:MaxPasswordBytes]
	}
	return b
}

// Hash は平文パスワードをbcryptでハッシュ化する。
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword(passwordBytes(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Compare はパスワードとbcryptハッシュを照合する。
func (h *BcryptHasher) Compare(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), passwordBytes(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("failed to compare password: %w", err)
}
