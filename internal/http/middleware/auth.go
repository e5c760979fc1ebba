package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hemocz/hemonucleo/internal/auth"
)

type contextKey string

const (
	ContextKeyUsername contextKey = "username"
	contextKeyLogUser  contextKey = "log_username"

	// SessionCookieName é o cookie HttpOnly que carrega o token opaco.
	SessionCookieName = "session_token"
)

func withUsuarioLog(ctx context.Context, holder *usuarioLog) context.Context {
	return context.WithValue(ctx, contextKeyLogUser, holder)
}

// SessionValidator é o contrato mínimo que o gate exige do serviço de sessões.
type SessionValidator interface {
	Validate(ctx context.Context, token string, device *auth.Dispositivo) (auth.TokenStatus, error)
	UsernameOf(ctx context.Context, token string) (string, error)
}

// TokenFromRequest extrai o token do cookie de sessão; na ausência dele,
// aceita Authorization: Bearer.
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// DeviceFromRequest captura IP e User-Agent da requisição.
func DeviceFromRequest(r *http.Request) auth.Dispositivo {
	return auth.Dispositivo{
		IP:        realIPFromRequest(r),
		UserAgent: r.Header.Get("User-Agent"),
	}
}

// Auth valida o token de sessão e injeta o username no contexto. Qualquer
// resultado diferente de válido recebe a mesma resposta 401.
func Auth(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "AUTH", "não autorizado")
				return
			}

			device := DeviceFromRequest(r)
			status, err := sessions.Validate(r.Context(), token, &device)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "INTERNAL", "erro interno")
				return
			}
			if status != auth.TokenValido {
				writeError(w, http.StatusUnauthorized, "AUTH", "não autorizado")
				return
			}

			username, err := sessions.UsernameOf(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "não autorizado")
				return
			}

			if holder, ok := r.Context().Value(contextKeyLogUser).(*usuarioLog); ok {
				holder.username = username
			}

			ctx := context.WithValue(r.Context(), ContextKeyUsername, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUsername recupera o username autenticado do contexto.
func GetUsername(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeyUsername).(string)
	return val
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
