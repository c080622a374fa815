// Package cookie はセッションCookie値の署名と検証を提供する。
// 署名形式は "s:<value>.<base64(HMAC-SHA256)>" で、既存クライアントが保持しているCookieと互換性がある。
package cookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

const signedPrefix = "s:"

var (
	// ErrNotSigned は署名形式でない値を検証しようとした場合に返る。
	ErrNotSigned = errors.New("cookie value is not signed")
	// ErrBadSignature は署名が一致しない場合に返る。
	ErrBadSignature = errors.New("cookie signature mismatch")
)

// Signer はCookie値にHMAC署名を付与・検証する。
type Signer struct {
	secret []byte
}

// NewSigner はSignerを生成する。
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("cookie secret must not be empty")
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign は値に署名を付与した文字列を返す。
func (s *Signer) Sign(value string) string {
	return signedPrefix + value + "." + s.signature(value)
}

// Unsign は署名付き文字列を検証し、元の値を返す。
func (s *Signer) Unsign(signed string) (string, error) {
	raw, ok := strings.CutPrefix(signed, signedPrefix)
	if !ok {
		return "", ErrNotSigned
	}
	idx := strings.LastIndex(raw, ".")
	if idx < 0 {
		return "", ErrNotSigned
	}
	value, sig := raw[:idx], raw[idx+1:]

	if !hmac.Equal([]byte(sig), []byte(s.signature(value))) {
		return "", ErrBadSignature
	}
	return value, nil
}

func (s *Signer) signature(value string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(value))
	return base64.RawStdEncoding.EncodeToString(mac.Sum(nil))
}
