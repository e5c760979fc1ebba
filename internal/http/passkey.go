package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/hemocz/hemonucleo/internal/http/middleware"
	"github.com/hemocz/hemonucleo/internal/repo"
	"github.com/hemocz/hemonucleo/internal/service"
)

type passkeyFinishRequest struct {
	SessionID  string          `json:"session_id"`
	Credential json.RawMessage `json:"credential"`
}

// handlePasskeyRegisterStart emite o desafio de registro para o usuário logado.
func (h *Handler) handlePasskeyRegisterStart(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())
	user, err := h.queries.GetUsuarioByUsername(r.Context(), username)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "não autorizado", nil)
		return
	}

	sessionID, opts, err := h.passkeys.BeginRegistration(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Msg("passkey: início de registro falhou")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"options":    opts,
	})
}

// handlePasskeyRegisterFinish conclui o registro da credencial.
func (h *Handler) handlePasskeyRegisterFinish(w http.ResponseWriter, r *http.Request) {
	var req passkeyFinishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" || len(req.Credential) == 0 {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	err := h.passkeys.FinishRegistration(r.Context(), req.SessionID, bytes.NewReader(req.Credential))
	if err != nil {
		if errors.Is(err, service.ErrDesafioInvalido) {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "desafio inválido ou expirado", nil)
			return
		}
		log.Error().Err(err).Msg("passkey: registro falhou")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handlePasskeyLoginStart emite o desafio de login para o username informado.
func (h *Handler) handlePasskeyLoginStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "username obrigatório", nil)
		return
	}

	sessionID, opts, err := h.passkeys.BeginLogin(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, service.ErrPasskeyNaoConfigurada) || errors.Is(err, repo.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", "passkey não configurada", nil)
			return
		}
		log.Error().Err(err).Msg("passkey: início de login falhou")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"options":    opts,
	})
}

// handlePasskeyLoginFinish valida a assinatura e emite a sessão como no login
// por senha.
func (h *Handler) handlePasskeyLoginFinish(w http.ResponseWriter, r *http.Request) {
	var req passkeyFinishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" || len(req.Credential) == 0 {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	user, err := h.passkeys.FinishLogin(r.Context(), req.SessionID, bytes.NewReader(req.Credential))
	if err != nil {
		if errors.Is(err, service.ErrDesafioInvalido) {
			WriteError(w, http.StatusUnauthorized, "AUTH", "não autorizado", nil)
			return
		}
		log.Error().Err(err).Msg("passkey: login falhou")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		return
	}

	device := middleware.DeviceFromRequest(r)
	result, err := h.sessions.LoginUsuario(r.Context(), user, device)
	if err != nil {
		log.Error().Err(err).Msg("passkey: emissão de sessão falhou")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		return
	}

	h.setSessionCookie(w, result.Token)
	WriteJSON(w, http.StatusOK, map[string]any{
		"user":       result.Perfil,
		"expires_in": int(result.TTL.Seconds()),
	})
}
