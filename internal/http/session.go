package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/hemocz/hemonucleo/internal/http/middleware"
	"github.com/hemocz/hemonucleo/internal/service"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin autentica por username e senha e grava o cookie de sessão.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}
	if req.Username == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "username e password são obrigatórios", nil)
		return
	}

	device := middleware.DeviceFromRequest(r)
	result, err := h.sessions.Login(r.Context(), req.Username, req.Password, device)
	if err != nil {
		if errors.Is(err, service.ErrCredenciaisInvalidas) {
			WriteError(w, http.StatusUnauthorized, "AUTH", "usuário ou senha inválidos", nil)
			return
		}
		log.Error().Err(err).Msg("login falhou")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		return
	}

	h.setSessionCookie(w, result.Token)
	WriteJSON(w, http.StatusOK, map[string]any{
		"user":       result.Perfil,
		"expires_in": int(result.TTL.Seconds()),
	})
}

// handleLogout revoga a sessão e limpa o cookie. Sempre responde 200: sem
// token ou com token já morto não há o que revelar.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.TokenFromRequest(r); token != "" {
		if err := h.sessions.Revoke(r.Context(), token); err != nil {
			log.Error().Err(err).Msg("logout falhou")
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
			return
		}
	}

	h.clearSessionCookie(w)
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleUserInfo devolve o perfil do titular do token. O front usa esta
// rota para decidir se ainda está logado; como toda leitura que revela
// identidade, fica atrás do gate — sem sessão o 401 vem dele.
func (h *Handler) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	perfil, err := h.sessions.GetUserInfo(r.Context(), middleware.TokenFromRequest(r))
	if err != nil {
		if errors.Is(err, service.ErrNaoAutorizado) {
			WriteError(w, http.StatusUnauthorized, "AUTH", "não autorizado", nil)
			return
		}
		log.Error().Err(err).Msg("user-info falhou")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		return
	}

	WriteJSON(w, http.StatusOK, perfil)
}

// handleMe devolve o perfil do usuário autenticado pelo gate.
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())
	perfil, err := h.sessions.PerfilDe(r.Context(), username)
	if err != nil {
		if errors.Is(err, service.ErrNaoAutorizado) {
			WriteError(w, http.StatusUnauthorized, "AUTH", "não autorizado", nil)
			return
		}
		log.Error().Err(err).Msg("perfil falhou")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		return
	}

	WriteJSON(w, http.StatusOK, perfil)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   !h.devCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !h.devCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
