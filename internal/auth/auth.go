// Package auth проверяет bearer-токены внешнего провайдера идентификации
// и ограничивает доступ к маршрутам по минимальной роли.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnknownRole     = errors.New("unknown role")
)

// Role уровень доступа сотрудника; сравнивается как число
type Role int

const (
	Executive Role = iota
	Manager
	Admin
)

var roleNames = map[Role]string{
	Executive: "executive",
	Manager:   "manager",
	Admin:     "admin",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// ParseRole разбирает название роли из токена
func ParseRole(s string) (Role, error) {
	for role, name := range roleNames {
		if strings.EqualFold(name, s) {
			return role, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// AtLeast сообщает, что роль не ниже min
func (r Role) AtLeast(min Role) bool {
	return r >= min
}

// Actor аутентифицированный сотрудник
type Actor struct {
	UID   string
	Email string
	Role  Role
}

// Claims токена провайдера идентификации
type Claims struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator проверяет токены, подписанные общим с провайдером секретом
type Authenticator struct {
	secret []byte
	leeway time.Duration
	now    func() time.Time
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		leeway: 10 * time.Second,
		now:    time.Now,
	}
}

// WithClock подменяет часы (для тестов)
func (a *Authenticator) WithClock(now func() time.Time) *Authenticator {
	a.now = now
	return a
}

// Authenticate возвращает сотрудника по токену
func (a *Authenticator) Authenticate(tokenString string) (Actor, error) {
	if tokenString == "" {
		return Actor{}, ErrUnauthenticated
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.secret, nil
		},
		jwt.WithTimeFunc(a.now),
		jwt.WithLeeway(a.leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.UID == "" {
		return Actor{}, fmt.Errorf("%w: uid is empty", ErrUnauthenticated)
	}

	role, err := ParseRole(claims.Role)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	return Actor{UID: claims.UID, Email: claims.Email, Role: role}, nil
}

// Sign выпускает токен сотрудника тем же секретом.
// Используется локальным окружением и тестами вместо провайдера.
func (a *Authenticator) Sign(actor Actor, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		UID:   actor.UID,
		Email: actor.Email,
		Role:  actor.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

type contextKey struct{}

// WithActor кладет сотрудника в контекст
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, actor)
}

// ActorFrom достает сотрудника из контекста
func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(contextKey{}).(Actor)
	return actor, ok
}

// BearerToken достает токен из заголовка Authorization
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
