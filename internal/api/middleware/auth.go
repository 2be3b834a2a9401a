package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

// ClaimsKey - ключ контекста с claims аутентифицированного запроса
const ClaimsKey contextKey = "auth_claims"

// RoleAdmin - единственная роль с правом триггерить сканы и исполнение
const RoleAdmin = "admin"

// AuthClaims - полезная нагрузка токена оператора
type AuthClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken выпускает подписанный HS256 токен с ролью admin
//
// Вызывается только обработчиком логина после проверки bcrypt-хеша
// пароля оператора.
func IssueToken(secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AuthClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// JWTAuth проверяет Bearer-токен и кладет claims в контекст запроса
//
// Запрос без валидного токена отклоняется 401 до какой-либо работы
// нижележащих обработчиков. Допускается только HMAC-подпись: токен
// с alg=none или RSA отвергается парсером.
func JWTAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				unauthorized(w)
				return
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims := &AuthClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext извлекает claims, положенные JWTAuth
func ClaimsFromContext(ctx context.Context) (*AuthClaims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*AuthClaims)
	return claims, ok
}

// IsAdmin сообщает, аутентифицирован ли запрос как оператор
func IsAdmin(r *http.Request) bool {
	claims, ok := ClaimsFromContext(r.Context())
	return ok && claims.Role == RoleAdmin
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized"}`))
}
