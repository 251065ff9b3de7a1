// Package token выпускает и проверяет подписанные токены-полномочия,
// привязывающие идентификатор ресурса к сроку действия.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenMissing = errors.New("token is missing")
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

// PurposeRFQ назначение токенов доступа поставщика к RFQ.
// Токен одного назначения не принимается Issuer'ом другого.
const PurposeRFQ = "rfq"

// Claims содержимое токена
type Claims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Issuer подписывает токены одного назначения с фиксированным сроком действия
type Issuer struct {
	secret  []byte
	purpose string
	ttl     time.Duration
	now     func() time.Time
}

// NewIssuer создает Issuer
func NewIssuer(secret, purpose string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret:  []byte(secret),
		purpose: purpose,
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock подменяет часы (для тестов)
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// TTL срок действия выпускаемых токенов
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue выпускает токен для subject
func (i *Issuer) Issue(subject string) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is empty")
	}
	now := i.now()
	claims := Claims{
		Purpose: i.purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify проверяет подпись, назначение и срок действия, возвращает subject
func (i *Issuer) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrTokenMissing
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return i.secret, nil
		},
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if claims.Purpose != i.purpose || claims.Subject == "" {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}
