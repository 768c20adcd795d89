package auth

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const operatorKey ctxKey = "operator"

func OperatorFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(operatorKey)
	op, ok := v.(string)
	return op, ok
}

func RequireAuth(jwtSvc *JWT) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if h == "" || !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			token := strings.TrimPrefix(h, "Bearer ")

			op, err := jwtSvc.Verify(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), operatorKey, op)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
