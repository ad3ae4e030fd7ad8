// Package middleware содержит HTTP middleware интернет-магазина.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mmeshcher/ecommerce-system/internal/model"
	"github.com/mmeshcher/ecommerce-system/internal/token"
)

type contextKey string

const identityKey contextKey = "identity"

// AuthMiddleware проверяет bearer-токен запроса и кладёт личность
// вызывающего в контекст. Токен проверяется по подписи и сроку действия,
// живая запись пользователя не читается.
type AuthMiddleware struct {
	codec *token.Codec
}

// NewAuthMiddleware создаёт middleware аутентификации поверх кодека токенов.
func NewAuthMiddleware(codec *token.Codec) *AuthMiddleware {
	return &AuthMiddleware{codec: codec}
}

// Middleware требует валидный bearer-токен: без него запрос отклоняется
// со статусом 401.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := a.identityFromRequest(r)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *AuthMiddleware) identityFromRequest(r *http.Request) (*model.Identity, bool) {
	header := r.Header.Get("Authorization")

	tokenString, found := strings.CutPrefix(header, "Bearer ")
	if !found || tokenString == "" {
		return nil, false
	}

	identity, err := a.codec.Verify(tokenString)
	if err != nil {
		return nil, false
	}

	return identity, true
}

// GetIdentityFromContext извлекает личность вызывающего из контекста запроса.
func GetIdentityFromContext(ctx context.Context) (*model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*model.Identity)
	return id, ok
}
