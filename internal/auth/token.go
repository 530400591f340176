package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/learnhub/internal/model"
)

// ErrInvalidToken はセッショントークンの形式・署名・有効期限が不正な場合に返る。
var ErrInvalidToken = errors.New("invalid session token")

// SessionClaims はセッショントークンのクレーム。
// jtiにセッションID、subにユーザーIDを持つ。
type SessionClaims struct {
	jwt.RegisteredClaims
}

// TokenSigner はセッショントークンをHS256で署名・検証する。
type TokenSigner struct {
	secret []byte
	now    func() time.Time
}

// NewTokenSigner はTokenSignerを生成する。
func NewTokenSigner(secret string) *TokenSigner {
	return &TokenSigner{secret: []byte(secret), now: time.Now}
}

// Sign はセッションを参照する署名付きトークンを発行する。
func (s *TokenSigner) Sign(session *model.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   session.UserID,
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Parse はトークンを検証してクレームを返す。
// 形式不正、署名不一致、HS256以外のアルゴリズム、期限切れはErrInvalidTokenになる。
func (s *TokenSigner) Parse(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing jti or sub", ErrInvalidToken)
	}
	return claims, nil
}
